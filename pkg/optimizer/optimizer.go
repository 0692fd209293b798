/*
Package optimizer implements the parameter optimizer: the component that
turns the metrics analyzer's ranked opportunities into validated,
bounds-respecting parameter changes.
*/
package optimizer

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/vvtv/autopilot/pkg/bounds"
	"github.com/vvtv/autopilot/pkg/log"
	"github.com/vvtv/autopilot/pkg/metrics"
	"github.com/vvtv/autopilot/pkg/types"
)

const component = "optimizer"

// maxOptimizationHistory bounds Optimizer.history.
const maxOptimizationHistory = 1000

// Optimizer proposes ParameterChange values from a MetricsAnalysis's
// opportunities, validates them against the sliding bounds manager and a set
// of business-logic and safety constraints, and tracks prediction accuracy
// across cycles for its adaptive-learning algorithm.
type Optimizer struct {
	mu      sync.Mutex
	cfg     Config
	rnd     *rand.Rand
	current map[string]float64
	history []types.AttemptOutcome
}

// New builds an Optimizer seeded with the known parameters' current values.
func New(cfg Config, params []types.Parameter) *Optimizer {
	current := make(map[string]float64, len(params))
	for _, p := range params {
		current[p.Name] = p.Value
	}
	return &Optimizer{
		cfg:     cfg,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		current: current,
	}
}

// Propose analyzes the metrics analysis's opportunities and returns a
// validated set of parameter changes, along with the comprehensive
// validation result computed for every opportunity considered (including
// ones that were filtered out), for the caller to attach to its audit trail.
func (o *Optimizer) Propose(analysis *types.MetricsAnalysis, boundsMgr *bounds.Manager) ([]types.ParameterChange, []types.ValidationResult) {
	logger := log.WithComponent(component)
	logger.Info().Float64("confidence", analysis.Confidence).Int("opportunities", len(analysis.Opportunities)).
		Msg("starting parameter optimization")

	o.mu.Lock()
	defer o.mu.Unlock()

	var viable []types.OptimizationOpportunity
	for _, op := range analysis.Opportunities {
		if op.Confidence >= o.cfg.MinConfidenceThreshold {
			viable = append(viable, op)
		}
		if len(viable) >= o.cfg.MaxChangesPerCycle {
			break
		}
	}
	if len(viable) == 0 {
		logger.Info().Float64("min_confidence", o.cfg.MinConfidenceThreshold).Msg("no viable optimization opportunities found")
		return nil, nil
	}

	var changes []types.ParameterChange
	var validations []types.ValidationResult
	for _, op := range viable {
		change, validation, ok := o.createParameterChange(op, analysis, boundsMgr)
		validations = append(validations, validation)
		if !ok {
			logger.Debug().Str("parameter", op.Parameter).Msg("opportunity filtered out during validation")
			continue
		}
		logger.Debug().Str("parameter", change.Parameter).Float64("old_value", change.OldValue).
			Float64("new_value", change.NewValue).Float64("confidence", change.Confidence).
			Msg("proposed parameter change")
		metrics.ParameterChangesProposedTotal.WithLabelValues(string(o.selectAlgorithm(change.Parameter, change.Confidence, analysis))).Inc()
		changes = append(changes, change)
	}

	logger.Info().Int("proposed_changes", len(changes)).Msg("completed parameter optimization")
	return changes, validations
}

func (o *Optimizer) createParameterChange(op types.OptimizationOpportunity, analysis *types.MetricsAnalysis, boundsMgr *bounds.Manager) (types.ParameterChange, types.ValidationResult, bool) {
	current, ok := o.current[op.Parameter]
	if !ok {
		current = op.CurrentValue
	}

	optimized := o.applyAlgorithm(op.Parameter, current, op.SuggestedValue, op.Confidence, analysis)

	validation := o.validateChange(op.Parameter, current, optimized, boundsMgr)
	result := types.ValidationResult{
		Parameter: op.Parameter, Check: "optimizer_validation", Passed: validation.IsValid,
		Detail: strings.Join(validation.Errors, "; "), Warnings: validation.Warnings,
		AdjustedValue: validation.AdjustedValue, Confidence: validation.Confidence,
	}
	if !validation.IsValid {
		log.WithComponent(component).Warn().Str("parameter", op.Parameter).Strs("errors", validation.Errors).
			Msg("parameter change validation failed")
		return types.ParameterChange{}, result, false
	}

	final := optimized
	if validation.AdjustedValue != nil {
		final = *validation.AdjustedValue
	}

	impact := calculateExpectedImpact(op.Parameter, current, final, analysis)
	changeType := determineChangeType(op, analysis)
	rationale := buildRationale(op, current, final, impact, analysis)

	return types.ParameterChange{
		Parameter: op.Parameter, OldValue: current, NewValue: final,
		Type: changeType, Confidence: op.Confidence, Impact: impact,
		Rationale: rationale, ProposedAt: time.Now().UTC(),
	}, result, true
}

// applyAlgorithm refines suggestedValue with the algorithm selectAlgorithm
// picks for this parameter/confidence/data-quality combination.
func (o *Optimizer) applyAlgorithm(parameter string, current, suggested, confidence float64, analysis *types.MetricsAnalysis) float64 {
	switch o.selectAlgorithm(parameter, confidence, analysis) {
	case types.AlgorithmConservative:
		maxChangePct := 0.10
		if o.cfg.ConservativeMode {
			maxChangePct = 0.05
		}
		direction := signum(suggested - current)
		maxChange := current * maxChangePct * direction
		return current + maxChange*confidence

	case types.AlgorithmGradient:
		gradient := suggested - current
		step := gradient * o.cfg.LearningRate * confidence
		return current + step

	case types.AlgorithmAdaptive:
		successRate := o.historicalSuccessRate(parameter)
		adaptiveFactor := successRate * o.cfg.MomentumFactor
		change := (suggested - current) * adaptiveFactor * confidence
		return current + change

	case types.AlgorithmBayesian:
		noise := o.cfg.ExplorationFactor * (1.0 - confidence) * (o.rnd.Float64() - 0.5) * 2.0
		return suggested + noise

	default:
		return suggested
	}
}

// selectAlgorithm picks an algorithm by parameter type, confidence, and data
// quality.
func (o *Optimizer) selectAlgorithm(parameter string, confidence float64, analysis *types.MetricsAnalysis) types.Algorithm {
	if o.cfg.ConservativeMode || confidence < 0.7 {
		return types.AlgorithmConservative
	}
	if analysis.DataQuality.HasSufficientData && confidence > 0.8 {
		switch parameter {
		case types.ParamSelectionTemperature:
			return types.AlgorithmBayesian
		case types.ParamSelectionTopK:
			return types.AlgorithmGradient
		case types.ParamCuratorConfidenceThreshold:
			return types.AlgorithmAdaptive
		default:
			return types.AlgorithmConservative
		}
	}
	return types.AlgorithmGradient
}

func (o *Optimizer) historicalSuccessRate(parameter string) float64 {
	var total, successful int
	for _, r := range o.history {
		if r.Parameter != parameter {
			continue
		}
		total++
		if r.Success {
			successful++
		}
	}
	if total == 0 {
		return 0.5
	}
	return float64(successful) / float64(total)
}

func determineChangeType(op types.OptimizationOpportunity, analysis *types.MetricsAnalysis) types.ChangeType {
	switch {
	case op.Confidence > 0.8 && analysis.Confidence > 0.7:
		return types.ChangeOptimization
	case analysis.DataQuality.HasSufficientData:
		return types.ChangeCorrection
	default:
		return types.ChangeExploration
	}
}

func buildRationale(op types.OptimizationOpportunity, current, final float64, impact types.ExpectedImpact, analysis *types.MetricsAnalysis) string {
	changePct := final * 100.0
	if current != 0 {
		changePct = (final - current) / current * 100.0
	}
	direction := "decrease"
	if changePct > 0 {
		direction = "increase"
	}

	dataQuality := "limited"
	if analysis.DataQuality.HasSufficientData {
		dataQuality = "sufficient"
	}

	return fmt.Sprintf(
		"Proposing %.1f%% %s in %s (from %.3f to %.3f). %s Expected entropy change: %.3f. Expected budget impact: %.1f%%. Analysis confidence: %.1f%%, data quality: %s.",
		absf(changePct), direction, op.Parameter, current, final, op.Rationale,
		impact.EntropyDelta, impact.BudgetDelta*100.0, analysis.Confidence*100.0, dataQuality,
	)
}

// RecordAttempt logs a proposed-and-applied change for the adaptive-learning
// algorithm's success-rate lookup.
func (o *Optimizer) RecordAttempt(change types.ParameterChange) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.current[change.Parameter] = change.NewValue
	o.history = append(o.history, types.AttemptOutcome{
		Parameter: change.Parameter, Timestamp: change.ProposedAt, Predicted: change.Impact,
	})
	if len(o.history) > maxOptimizationHistory {
		o.history = o.history[len(o.history)-maxOptimizationHistory:]
	}
}

// UpdateResult backfills the actual outcome of a previously-proposed change.
func (o *Optimizer) UpdateResult(parameter string, proposedAt time.Time, actualImpact float64, success bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.history {
		r := &o.history[i]
		if r.Parameter == parameter && r.Timestamp.Equal(proposedAt) && !r.Closed {
			r.ActualImpact = actualImpact
			r.Success = success
			r.Closed = true
			accuracy := 1.0 - absf(r.Predicted.OverallConfidence-actualImpact)/(absf(actualImpact)+0.1)
			metrics.PredictionAccuracy.WithLabelValues(parameter).Set(maxf(accuracy, 0))
			break
		}
	}
}

// Statistics summarizes the optimizer's track record.
func (o *Optimizer) Statistics() types.OptimizerStatistics {
	o.mu.Lock()
	defer o.mu.Unlock()

	total := len(o.history)
	var successful int
	var accuracySum float64
	var accuracyCount int
	for _, r := range o.history {
		if !r.Closed {
			continue
		}
		if r.Success {
			successful++
		}
		err := absf(r.Predicted.OverallConfidence - r.ActualImpact)
		accuracySum += maxf(1.0-err/(absf(r.ActualImpact)+0.1), 0)
		accuracyCount++
	}

	stats := types.OptimizerStatistics{TotalAttempts: total}
	if total > 0 {
		stats.SuccessRate = float64(successful) / float64(total)
	}
	if accuracyCount > 0 {
		stats.MeanPredictionAccuracy = accuracySum / float64(accuracyCount)
	}
	return stats
}

func signum(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
