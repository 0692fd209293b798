package bounds

import (
	"fmt"
	"math"
	"time"

	"github.com/vvtv/autopilot/internal/apperr"
	"github.com/vvtv/autopilot/pkg/log"
	"github.com/vvtv/autopilot/pkg/types"
)

// expansionEligibility holds the intermediate result of evaluating whether a
// parameter's bounds are eligible to expand.
type expansionEligibility struct {
	shouldExpand   bool
	stabilityScore float64
	confidence     float64
	reason         string
}

// stabilityScore estimates how consistently a parameter has behaved from its
// change-history variance and success rate.
func stabilityScore(b *types.ParameterBounds) float64 {
	if len(b.History) == 0 {
		return 0.5
	}
	changes := make([]float64, 0, len(b.History))
	for _, c := range b.History {
		d := c.NewValue - c.OldValue
		if d < 0 {
			d = -d
		}
		changes = append(changes, d)
	}
	var meanChange float64
	for _, c := range changes {
		meanChange += c
	}
	meanChange /= float64(len(changes))

	var variance float64
	for _, c := range changes {
		variance += (c - meanChange) * (c - meanChange)
	}
	variance /= float64(len(changes))

	cv := 0.0
	if meanChange > 0 {
		cv = math.Sqrt(variance) / meanChange
	}
	stabilityFromVariance := 1.0 / (1.0 + cv)

	successful, measured := 0, 0
	for _, c := range b.History {
		if c.Outcome == "" {
			continue
		}
		measured++
		if c.Outcome == "success" {
			successful++
		}
	}
	successRate := 0.5
	if measured > 0 {
		successRate = float64(successful) / float64(measured)
	}

	return clamp(stabilityFromVariance*0.6+successRate*0.4, 0, 1)
}

// expansionConfidence mirrors calculate_expansion_confidence.
func expansionConfidence(b *types.ParameterBounds) float64 {
	dataFactor := float64(len(b.History)) / 20.0
	if dataFactor > 1 {
		dataFactor = 1
	}

	performanceConsistency := 0.5
	if len(b.History) >= 5 {
		recent := b.History[len(b.History)-5:]
		var vals []float64
		for _, c := range recent {
			switch c.Outcome {
			case "success":
				vals = append(vals, 1.0)
			case "failure":
				vals = append(vals, 0.0)
			}
		}
		if len(vals) > 0 {
			var mean float64
			for _, v := range vals {
				mean += v
			}
			mean /= float64(len(vals))
			var variance float64
			for _, v := range vals {
				variance += (v - mean) * (v - mean)
			}
			variance /= float64(len(vals))
			performanceConsistency = 1.0 - variance
		}
	}

	rollbackFactor := 1.0
	if b.RollbackCount > 0 {
		rollbackFactor = 1.0 - float64(b.RollbackCount)*0.2
		if rollbackFactor < 0.2 {
			rollbackFactor = 0.2
		}
	}

	return clamp(dataFactor*0.3+performanceConsistency*0.4+rollbackFactor*0.3, 0, 1)
}

// ExpansionStrategy decides how a parameter's added expansion width is split
// between its lower and upper sliding bound.
type ExpansionStrategy string

const (
	// ExpansionSymmetric spends the added width evenly on both sides,
	// keeping the range centered where it already sits.
	ExpansionSymmetric ExpansionStrategy = "symmetric"
	// ExpansionBiasedToCurrent spends most of the added width on whichever
	// side the parameter's current value already leans toward, giving it
	// more room to keep moving in that direction.
	ExpansionBiasedToCurrent ExpansionStrategy = "biased_to_current"
	// ExpansionConservative only spends half the computed rate, widening
	// the range more slowly than the other two strategies.
	ExpansionConservative ExpansionStrategy = "conservative"
)

// expansionStrategyFor picks the expansion strategy by parameter kind: a
// ratio parameter that centers on zero (e.g. plan_selection_bias) benefits
// from following its current drift, while probability and count parameters
// expand conservatively since they feed discrete, user-visible decisions.
func expansionStrategyFor(kind types.ParameterKind) ExpansionStrategy {
	switch kind {
	case types.ParameterKindRatio:
		return ExpansionBiasedToCurrent
	case types.ParameterKindProbability, types.ParameterKindCount:
		return ExpansionConservative
	default:
		return ExpansionSymmetric
	}
}

// apply computes the new sliding bounds for growing b's current range to
// newRange under strategy s.
func (s ExpansionStrategy) apply(b *types.ParameterBounds, newRange float64) (float64, float64) {
	oldMin, oldMax := b.SlidingMin, b.SlidingMax
	added := newRange - (oldMax - oldMin)
	if added < 0 {
		added = 0
	}

	switch s {
	case ExpansionBiasedToCurrent:
		mid := (oldMin + oldMax) / 2
		towardMax := 0.5
		switch {
		case b.CurrentValue > mid:
			towardMax = 0.75
		case b.CurrentValue < mid:
			towardMax = 0.25
		}
		return oldMin - added*(1-towardMax), oldMax + added*towardMax

	case ExpansionConservative:
		added *= 0.5
		return oldMin - added/2, oldMax + added/2

	default: // ExpansionSymmetric
		center := (oldMin + oldMax) / 2
		return center - newRange/2, center + newRange/2
	}
}

func analyzeExpansionEligibility(cfg Config, b *types.ParameterBounds) expansionEligibility {
	stability := stabilityScore(b)
	confidence := expansionConfidence(b)

	meetsStability := b.StabilityDays >= cfg.StabilityDaysForExpansion
	performanceOK := b.PerformanceScore >= 0.6
	cooldownOK := true
	if b.LastExpansion != nil {
		cooldownOK = time.Since(*b.LastExpansion).Hours() >= 3*24
	}
	hasRecentActivity := false
	for _, c := range b.History {
		if time.Since(c.Timestamp).Hours() <= 7*24 {
			hasRecentActivity = true
			break
		}
	}

	shouldExpand := meetsStability && performanceOK && cooldownOK && hasRecentActivity && confidence >= 0.7

	var reason string
	if shouldExpand {
		reason = fmt.Sprintf("stable for %d days, performance %.1f%%, confidence %.1f%%",
			b.StabilityDays, b.PerformanceScore*100, confidence*100)
	} else {
		reason = "expansion blocked: "
		sep := ""
		if !meetsStability {
			reason += fmt.Sprintf("%sinsufficient stability (%d/%d)", sep, b.StabilityDays, cfg.StabilityDaysForExpansion)
			sep = ", "
		}
		if !performanceOK {
			reason += fmt.Sprintf("%slow performance (%.1f%%)", sep, b.PerformanceScore*100)
			sep = ", "
		}
		if !cooldownOK {
			reason += sep + "recent expansion"
			sep = ", "
		}
		if !hasRecentActivity {
			reason += sep + "no recent activity"
			sep = ", "
		}
		if confidence < 0.7 {
			reason += fmt.Sprintf("%slow confidence (%.1f%%)", sep, confidence*100)
		}
	}

	return expansionEligibility{shouldExpand: shouldExpand, stabilityScore: stability, confidence: confidence, reason: reason}
}

// ExpandForStableParameters walks every tracked parameter and expands the
// sliding bounds of those that qualify.
func (m *Manager) ExpandForStableParameters() []types.BoundsAdjustment {
	m.mu.Lock()
	defer m.mu.Unlock()

	logger := log.WithComponent(component)
	var adjustments []types.BoundsAdjustment

	for name, b := range m.bounds {
		elig := analyzeExpansionEligibility(m.cfg, b)
		if !elig.shouldExpand {
			continue
		}

		performanceMultiplier := 0.5 + b.PerformanceScore*0.5
		confidenceMultiplier := 0.3 + elig.confidence*0.7
		stabilityMultiplier := 0.4 + elig.stabilityScore*0.6
		effectiveRate := m.cfg.BaseExpansionRate * performanceMultiplier * confidenceMultiplier * stabilityMultiplier

		currentRange := b.SlidingMax - b.SlidingMin
		newRange := currentRange * (1 + effectiveRate)

		limit := m.limits[name]
		strategy := expansionStrategyFor(limit.Kind)
		lo, hi := strategy.apply(b, newRange)
		newMin, newMax := clampToAbsolute(lo, hi, limit)

		if limit.AbsoluteMax-limit.AbsoluteMin > 0 {
			maxWidth := (limit.AbsoluteMax - limit.AbsoluteMin) * m.cfg.MaxBoundsWidthFraction
			if newMax-newMin > maxWidth {
				c := (newMin + newMax) / 2
				newMin, newMax = c-maxWidth/2, c+maxWidth/2
			}
		}

		oldMin, oldMax := b.SlidingMin, b.SlidingMax
		b.SlidingMin, b.SlidingMax = newMin, newMax
		now := time.Now().UTC()
		b.LastUpdated = now
		b.LastExpansion = &now
		b.TotalAdjustments++

		adj := types.BoundsAdjustment{
			ParameterName: name, Type: types.AdjustmentExpansion,
			OldMin: oldMin, OldMax: oldMax, NewMin: newMin, NewMax: newMax,
			Rate: effectiveRate, Reason: fmt.Sprintf("%s (%s strategy)", elig.reason, strategy), Timestamp: now,
		}
		m.recordAdjustment(adj)
		adjustments = append(adjustments, adj)

		logger.Info().Str("parameter", name).Float64("rate", effectiveRate).Str("strategy", string(strategy)).
			Msg("expanded sliding bounds")
	}

	m.persistLocked()
	return adjustments
}

// ContractAfterRollback records a canary rollback against parameter. Until
// the rollback count reaches rollbackThreshold it only records the event; at
// the threshold it narrows the sliding range around its centre by the
// severity-scaled base rate times a linear backoff of 1 + 0.2 per rollback
// beyond the threshold (capped at 0.8), reduced by up to 30% for a
// well-performing parameter, and then resets the rollback count.
func (m *Manager) ContractAfterRollback(parameter string, severity FailureSeverity) (types.BoundsAdjustment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bounds[parameter]
	if !ok {
		return types.BoundsAdjustment{}, apperr.New(apperr.KindBoundsViolation, component, fmt.Sprintf("unknown parameter %q", parameter))
	}

	b.RollbackCount++
	now := time.Now().UTC()

	baseRate := m.cfg.BaseContractionRate * severity.multiplier()

	backoffMultiplier := 1.0
	if b.RollbackCount >= m.cfg.RollbackThreshold {
		backoffMultiplier = 1.0 + float64(b.RollbackCount-m.cfg.RollbackThreshold)*0.2
	}
	effectiveRate := baseRate * backoffMultiplier
	if effectiveRate > 0.8 {
		effectiveRate = 0.8
	}

	if b.RollbackCount < m.cfg.RollbackThreshold {
		b.LastUpdated = now
		adj := types.BoundsAdjustment{
			ParameterName: parameter, Type: types.AdjustmentAntiWindup,
			OldMin: b.SlidingMin, OldMax: b.SlidingMax, NewMin: b.SlidingMin, NewMax: b.SlidingMax,
			Reason: fmt.Sprintf("rollback recorded (%d/%d), severity %s", b.RollbackCount, m.cfg.RollbackThreshold, severity),
			Timestamp: now,
		}
		m.persistLocked()
		return adj, nil
	}

	performanceFactor := 1.0 - b.PerformanceScore*0.3
	finalRate := effectiveRate * performanceFactor

	oldMin, oldMax := b.SlidingMin, b.SlidingMax
	contractionFactor := 1 - finalRate
	currentRange := oldMax - oldMin
	newRange := currentRange * contractionFactor
	center := (oldMin + oldMax) / 2

	b.SlidingMin, b.SlidingMax = center-newRange/2, center+newRange/2
	b.LastUpdated = now
	b.LastContraction = &now
	b.RollbackCount = 0
	b.TotalAdjustments++

	adj := types.BoundsAdjustment{
		ParameterName: parameter, Type: types.AdjustmentContraction,
		OldMin: oldMin, OldMax: oldMax, NewMin: b.SlidingMin, NewMax: b.SlidingMax,
		Rate: finalRate,
		Reason: fmt.Sprintf("rollback threshold reached (%d), severity %s, backoff %.2fx", m.cfg.RollbackThreshold, severity, backoffMultiplier),
		Timestamp: now,
	}
	m.recordAdjustment(adj)
	m.persistLocked()
	return adj, nil
}

// AntiWindupStrategy decides how the adaptive minimum range is laid out
// around a parameter's sliding bounds when anti-windup protection fires.
type AntiWindupStrategy string

const (
	// AntiWindupCenterExpansion rebuilds the range symmetrically around its
	// existing center — the default, used when a parameter has no rollback
	// history and unremarkable performance.
	AntiWindupCenterExpansion AntiWindupStrategy = "center_expansion"
	// AntiWindupBiasedExpansion, like ExpansionBiasedToCurrent, gives more
	// of the rebuilt range to the side the current value leans toward. Used
	// for a well-performing parameter, where following its drift is safe.
	AntiWindupBiasedExpansion AntiWindupStrategy = "biased_expansion"
	// AntiWindupSafeExpansion recenters on the parameter's current value
	// rather than the old bounds' center, and reserves a small margin, for
	// a parameter with a rollback history where trusting the old center
	// would reintroduce whatever caused the rollback.
	AntiWindupSafeExpansion AntiWindupStrategy = "safe_expansion"
)

// antiWindupStrategyFor picks the anti-windup strategy from a parameter's
// rollback and performance history.
func antiWindupStrategyFor(b *types.ParameterBounds) AntiWindupStrategy {
	switch {
	case b.RollbackCount > 0:
		return AntiWindupSafeExpansion
	case b.PerformanceScore >= 0.7:
		return AntiWindupBiasedExpansion
	default:
		return AntiWindupCenterExpansion
	}
}

// apply lays out minRange around b's current bounds under strategy s.
func (s AntiWindupStrategy) apply(b *types.ParameterBounds, minRange float64) (float64, float64) {
	center := (b.SlidingMin + b.SlidingMax) / 2
	switch s {
	case AntiWindupBiasedExpansion:
		towardMax := 0.5
		switch {
		case b.CurrentValue > center:
			towardMax = 0.7
		case b.CurrentValue < center:
			towardMax = 0.3
		}
		return center - minRange*(1-towardMax), center + minRange*towardMax

	case AntiWindupSafeExpansion:
		margin := minRange * 0.1
		half := (minRange - margin) / 2
		return b.CurrentValue - half, b.CurrentValue + half

	default: // AntiWindupCenterExpansion
		return center - minRange/2, center + minRange/2
	}
}

// averageRecentChangeMagnitude returns the mean absolute size of the last
// (up to 10) recorded changes for b, as a fraction of absoluteRange.
func averageRecentChangeMagnitude(b *types.ParameterBounds, absoluteRange float64) float64 {
	if len(b.History) == 0 || absoluteRange <= 0 {
		return 0
	}
	n := len(b.History)
	if n > 10 {
		n = 10
	}
	recent := b.History[len(b.History)-n:]
	var sum float64
	for _, c := range recent {
		d := c.NewValue - c.OldValue
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return (sum / float64(n)) / absoluteRange
}

// calculateAdaptiveMinRange widens the plain AntiWindupThreshold-derived
// minimum by how much the parameter has recently been moving, how well it
// has performed, and how often it has been rolled back — a parameter that
// keeps getting rolled back needs more breathing room than one that has
// simply sat still.
func calculateAdaptiveMinRange(cfg Config, limit types.Parameter, b *types.ParameterBounds) float64 {
	absoluteRange := limit.AbsoluteMax - limit.AbsoluteMin
	base := absoluteRange * cfg.AntiWindupThreshold

	changeFactor := averageRecentChangeMagnitude(b, absoluteRange)
	performanceFactor := 0.5 + b.PerformanceScore*0.5
	rollbackFactor := 1.0 + float64(b.RollbackCount)*0.15

	adaptive := base * (1 + changeFactor) * performanceFactor * rollbackFactor

	maxAdaptive := absoluteRange * cfg.MaxBoundsWidthFraction
	if adaptive > maxAdaptive {
		adaptive = maxAdaptive
	}
	return adaptive
}

// ApplyAntiWindup widens a parameter's sliding bounds out to an adaptive
// minimum range when they have narrowed below it; bounds already at least
// that wide are left unchanged and nil is returned.
func (m *Manager) ApplyAntiWindup(parameter string) (*types.BoundsAdjustment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.cfg.AntiWindupEnabled {
		return nil, nil
	}
	b, ok := m.bounds[parameter]
	if !ok {
		return nil, apperr.New(apperr.KindBoundsViolation, component, fmt.Sprintf("unknown parameter %q", parameter))
	}
	limit := m.limits[parameter]

	currentRange := b.SlidingMax - b.SlidingMin
	adaptiveMinRange := calculateAdaptiveMinRange(m.cfg, limit, b)
	if currentRange >= adaptiveMinRange {
		return nil, nil
	}

	now := time.Now().UTC()
	oldMin, oldMax := b.SlidingMin, b.SlidingMax
	strategy := antiWindupStrategyFor(b)
	lo, hi := strategy.apply(b, adaptiveMinRange)
	newMin, newMax := clampToAbsolute(lo, hi, limit)

	b.SlidingMin, b.SlidingMax = newMin, newMax
	b.LastUpdated = now
	b.TotalAdjustments++

	adj := types.BoundsAdjustment{
		ParameterName: parameter, Type: types.AdjustmentAntiWindup,
		OldMin: oldMin, OldMax: oldMax, NewMin: newMin, NewMax: newMax,
		Reason: fmt.Sprintf("anti-windup: sliding range collapsed below adaptive minimum (%s strategy)", strategy), Timestamp: now,
	}
	m.recordAdjustment(adj)
	m.persistLocked()
	return &adj, nil
}

// DetectOscillation inspects the last OscillationWindow adjustments for
// parameter looking for an alternating expand/contract pattern.
func (m *Manager) DetectOscillation(parameter string) types.OscillationReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	var recent []types.BoundsAdjustment
	for i := len(m.history) - 1; i >= 0 && len(recent) < m.cfg.OscillationWindow; i-- {
		a := m.history[i]
		if a.ParameterName != parameter {
			continue
		}
		if a.Type == types.AdjustmentExpansion || a.Type == types.AdjustmentContraction {
			recent = append(recent, a)
		}
	}

	if len(recent) < 4 {
		return types.OscillationReport{ParameterName: parameter, IsOscillating: false, Recommendation: types.OscillationContinue}
	}

	expansions, contractions := 0, 0
	alternating := true
	var lastWasExpansion *bool
	for _, a := range recent {
		isExpansion := a.Type == types.AdjustmentExpansion
		if isExpansion {
			expansions++
		} else {
			contractions++
		}
		if lastWasExpansion != nil && *lastWasExpansion == isExpansion {
			alternating = false
		}
		v := isExpansion
		lastWasExpansion = &v
	}

	isOscillating := alternating && expansions > 1 && contractions > 1

	alternationRate := 0.0
	if isOscillating {
		alternationRate = float64(len(recent)) / float64(m.cfg.OscillationWindow)
	}

	var amplitudeSum float64
	for _, a := range recent {
		d := (a.NewMax - a.NewMin) - (a.OldMax - a.OldMin)
		if d < 0 {
			d = -d
		}
		amplitudeSum += d
	}
	amplitude := 0.0
	if len(recent) > 0 {
		amplitude = amplitudeSum / float64(len(recent))
	}

	b := m.bounds[parameter]
	width := 0.0
	if b != nil {
		width = b.SlidingMax - b.SlidingMin
	}

	recommendation := types.OscillationContinue
	if isOscillating {
		switch {
		case alternationRate > 0.6:
			recommendation = types.OscillationPause
		case amplitude > width*m.cfg.OscillationAmplitudeThreshold:
			recommendation = types.OscillationReduceRate
		default:
			recommendation = types.OscillationMonitor
		}
	}

	return types.OscillationReport{
		ParameterName: parameter, IsOscillating: isOscillating,
		AlternationRate: alternationRate, Recommendation: recommendation,
	}
}
