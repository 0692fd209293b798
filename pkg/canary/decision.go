package canary

import (
	"time"

	"github.com/vvtv/autopilot/internal/apperr"
	"github.com/vvtv/autopilot/pkg/log"
	"github.com/vvtv/autopilot/pkg/metrics"
	"github.com/vvtv/autopilot/pkg/types"
)

// gateResult is one KPI gate's verdict, folded into the overall decision.
type gateResult struct {
	name       string
	passed     bool
	confidence float64
	detail     string
}

// Evaluate runs every KPI gate over summary and returns the resulting
// decision. It stores the decision as the deployment's LatestDecision but
// does not change its status; callers apply the decision via ExecuteDecision.
func (m *Manager) Evaluate(id string, summary *types.MetricsSummary) (types.CanaryDecision, error) {
	m.mu.Lock()
	d, ok := m.deployments[id]
	m.mu.Unlock()
	if !ok {
		return types.CanaryDecision{}, apperr.New(apperr.KindCanaryFailure, component, "deployment not found: "+id)
	}

	gates := []gateResult{
		m.criticalThresholdGate(summary),
		m.significanceGate(summary),
		m.meaningfulImprovementGate(summary),
		m.sampleAdequacyGate(summary),
	}

	perKPI := kpiImpact(summary)
	gateConfidence := averageConfidence(gates)
	effectConfidence := effectSizeConfidence(summary)
	overall := gateConfidence*0.7 + effectConfidence*0.3

	verdict, rec := determineVerdict(gates, overall, d.ExtensionCount)
	decision := types.CanaryDecision{
		Verdict:        verdict,
		Confidence:     overall,
		Rationale:      rationale(gates, overall),
		PerKPIImpact:   perKPI,
		Recommendation: rec,
		Timestamp:      time.Now().UTC(),
	}

	m.mu.Lock()
	if d, ok := m.deployments[id]; ok {
		d.LatestDecision = &decision
	}
	m.mu.Unlock()

	metrics.CanaryDecisionsTotal.WithLabelValues(string(verdict)).Inc()
	log.WithDeploymentID(id).Info().Str("verdict", string(verdict)).Float64("confidence", overall).
		Msg("evaluated canary deployment")
	return decision, nil
}

// criticalThresholdGate fails the deployment outright if any KPI has moved
// past the configured rollback threshold, regardless of significance.
func (m *Manager) criticalThresholdGate(s *types.MetricsSummary) gateResult {
	th := m.cfg.RollbackThresholds
	violations := 0
	for metric, test := range s.Tests {
		delta := test.CanaryMean - test.ControlMean
		switch metric {
		case types.MetricViewerRetention:
			if -delta*100 > th.MaxRetentionDecreasePP {
				violations++
			}
		case types.MetricVideoVMAF:
			if -delta > th.MaxVMAFDecrease {
				violations++
			}
		case types.MetricErrorRate:
			if delta*100 > th.MaxErrorRateIncreasePP {
				violations++
			}
		case types.MetricLatency:
			if delta > th.MaxLatencyIncreaseMS {
				violations++
			}
		}
	}
	if violations > 0 {
		return gateResult{name: "critical_threshold", passed: false, confidence: 0,
			detail: "one or more KPIs breached a hard rollback threshold"}
	}
	return gateResult{name: "critical_threshold", passed: true, confidence: 1,
		detail: "no KPI breached a hard rollback threshold"}
}

// significanceGate requires at least one KPI test to be statistically
// significant before a promote decision can be made.
func (m *Manager) significanceGate(s *types.MetricsSummary) gateResult {
	significant := 0
	for _, t := range s.Tests {
		if t.IsSignificant {
			significant++
		}
	}
	if significant == 0 {
		return gateResult{name: "statistical_significance", passed: false, confidence: 0.3,
			detail: "no KPI reached statistical significance"}
	}
	return gateResult{name: "statistical_significance", passed: true,
		confidence: float64(significant) / float64(len(s.Tests)),
		detail:     "at least one KPI is statistically significant"}
}

// meaningfulImprovementGate requires the significant KPIs to actually move in
// the direction that counts as an improvement, not merely differ from control.
func (m *Manager) meaningfulImprovementGate(s *types.MetricsSummary) gateResult {
	improved, total := 0, 0
	for _, t := range s.Tests {
		if !t.IsSignificant {
			continue
		}
		total++
		delta := t.CanaryMean - t.ControlMean
		if t.ImprovementDirection == types.TrendIncreasing && delta > 0 {
			improved++
		} else if t.ImprovementDirection == types.TrendDecreasing && delta < 0 {
			improved++
		}
	}
	if total == 0 {
		return gateResult{name: "meaningful_improvement", passed: false, confidence: 0.3,
			detail: "no significant KPI to assess for improvement"}
	}
	ratio := float64(improved) / float64(total)
	return gateResult{name: "meaningful_improvement", passed: ratio >= 0.5, confidence: ratio,
		detail: "significant KPIs moved in the beneficial direction"}
}

// sampleAdequacyGate checks both cohorts cleared the configured minimum.
func (m *Manager) sampleAdequacyGate(s *types.MetricsSummary) gateResult {
	if s.CanarySamples < m.cfg.MinSampleSize || s.ControlSamples < m.cfg.MinSampleSize {
		return gateResult{name: "sample_adequacy", passed: false, confidence: 0.2,
			detail: "one or both cohorts are below the minimum sample size"}
	}
	return gateResult{name: "sample_adequacy", passed: true, confidence: 1,
		detail: "both cohorts cleared the minimum sample size"}
}

func averageConfidence(gates []gateResult) float64 {
	if len(gates) == 0 {
		return 0
	}
	var sum float64
	for _, g := range gates {
		sum += g.confidence
	}
	return sum / float64(len(gates))
}

func effectSizeConfidence(s *types.MetricsSummary) float64 {
	if len(s.Tests) == 0 {
		return 0
	}
	var sum float64
	for _, t := range s.Tests {
		v := t.EffectSize
		if v < 0 {
			v = -v
		}
		if v > 1 {
			v = 1
		}
		sum += v
	}
	return sum / float64(len(s.Tests))
}

func kpiImpact(s *types.MetricsSummary) map[types.MetricName]float64 {
	out := make(map[types.MetricName]float64, len(s.Tests))
	for metric, t := range s.Tests {
		out[metric] = t.CanaryMean - t.ControlMean
	}
	return out
}

// determineVerdict applies the confidence-tiered decision thresholds: a
// critical-gate failure rolls back unconditionally, Proceed requires every
// gate to have passed, and otherwise the blended confidence picks the tier.
func determineVerdict(gates []gateResult, confidence float64, extensions int) (types.DecisionVerdict, types.RecommendationType) {
	allPassed := true
	for _, g := range gates {
		if g.name == "critical_threshold" && !g.passed {
			return types.DecisionRollback, types.RecommendConsiderRollback
		}
		if !g.passed {
			allPassed = false
		}
	}

	switch {
	case allPassed && confidence >= 0.8:
		return types.DecisionProceed, types.RecommendReadyForAnalysis
	case allPassed && confidence >= 0.6:
		return types.DecisionProceed, types.RecommendReadyForAnalysis
	case confidence >= 0.4:
		if extensions >= maxExtensions {
			return types.DecisionInconclusive, types.RecommendManualReview
		}
		return types.DecisionInconclusive, types.RecommendExtendMonitoring
	default:
		return types.DecisionRollback, types.RecommendConsiderRollback
	}
}

// maxExtensions bounds how many times an inconclusive deployment may be
// extended for more data before forcing a manual review.
const maxExtensions = 3

func rationale(gates []gateResult, confidence float64) string {
	msg := "confidence "
	switch {
	case confidence >= 0.8:
		msg += "high: "
	case confidence >= 0.6:
		msg += "moderate: "
	case confidence >= 0.4:
		msg += "low, inconclusive: "
	default:
		msg += "very low: "
	}
	for i, g := range gates {
		if i > 0 {
			msg += "; "
		}
		msg += g.name + "=" + g.detail
	}
	return msg
}
