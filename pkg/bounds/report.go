package bounds

import (
	"time"

	"github.com/vvtv/autopilot/pkg/types"
)

// GenerateAdjustmentReport summarizes every tracked parameter's adjustments
// within [start, end], with a per-parameter stability classification.
func (m *Manager) GenerateAdjustmentReport(start, end time.Time) types.AdjustmentReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	byParameter := make(map[string]types.ParameterStabilityReport)

	for name := range m.bounds {
		var expansions, contractions, antiWindups, resets int
		for _, a := range m.history {
			if a.ParameterName != name || a.Timestamp.Before(start) || a.Timestamp.After(end) {
				continue
			}
			switch a.Type {
			case types.AdjustmentExpansion:
				expansions++
			case types.AdjustmentContraction:
				contractions++
			case types.AdjustmentAntiWindup:
				antiWindups++
			case types.AdjustmentReset:
				resets++
			}
		}

		osc := m.detectOscillationLocked(name)
		score := stabilityScore(m.bounds[name])

		class := types.StabilityMostStable
		switch {
		case osc.IsOscillating:
			class = types.StabilityOscillating
		case contractions > expansions && contractions > 2:
			class = types.StabilityNeedsAttention
		case score < 0.4:
			class = types.StabilityLeastStable
		}

		recommendation := types.RecommendExpandBounds
		switch {
		case osc.Recommendation == types.OscillationPause:
			recommendation = types.RecommendInvestigateOscillation
		case osc.Recommendation == types.OscillationReduceRate:
			recommendation = types.RecommendDecreaseExpansionRate
		case contractions > expansions:
			recommendation = types.RecommendIncreaseStabilityPeriod
		case antiWindups > 2:
			recommendation = types.RecommendEnableAntiWindup
		}

		byParameter[name] = types.ParameterStabilityReport{
			ParameterName: name, Expansions: expansions, Contractions: contractions,
			AntiWindups: antiWindups, Resets: resets, StabilityScore: score,
			Class: class, Recommendation: recommendation,
		}
	}

	return types.AdjustmentReport{Start: start, End: end, ByParameter: byParameter}
}

// detectOscillationLocked is the oscillation check used while m.mu is
// already held (GenerateAdjustmentReport holds the lock across all
// parameters, so it cannot call the public, self-locking DetectOscillation).
// It only tests recent adjustments for strict expansion/contraction
// alternation and reports Monitor for an oscillating parameter; it leaves
// AlternationRate at zero and does not make DetectOscillation's rate- and
// amplitude-based ReduceRate/Pause recommendations.
func (m *Manager) detectOscillationLocked(parameter string) types.OscillationReport {
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
		return types.OscillationReport{ParameterName: parameter, Recommendation: types.OscillationContinue}
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
	recommendation := types.OscillationContinue
	if isOscillating {
		recommendation = types.OscillationMonitor
	}
	return types.OscillationReport{ParameterName: parameter, IsOscillating: isOscillating, Recommendation: recommendation}
}
