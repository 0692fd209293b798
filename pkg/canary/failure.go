package canary

import (
	"strconv"
	"time"

	"github.com/vvtv/autopilot/internal/apperr"
	"github.com/vvtv/autopilot/pkg/types"
)

// AnalyzeFailure builds a FailureAnalysis for a deployment that ended
// RolledBack or Failed, classifying the rollback cause and the metric
// regressions observed. It does not attribute the failure to individual
// parameter changes.
func (m *Manager) AnalyzeFailure(id string) (types.FailureAnalysis, error) {
	m.mu.Lock()
	d, ok := m.deployments[id]
	m.mu.Unlock()
	if !ok {
		return types.FailureAnalysis{}, apperr.New(apperr.KindCanaryFailure, component, "deployment not found: "+id)
	}
	if !d.Status.IsTerminal() || d.Status == types.DeploymentCompleted {
		return types.FailureAnalysis{}, apperr.New(apperr.KindCanaryFailure, component,
			"deployment did not fail, nothing to analyze: "+id)
	}

	kind := classifyFailureKind(d)
	causes := rootCauses(d, kind)
	pattern := identifyPattern(d)
	severity := calculateSeverity(d, kind)

	return types.FailureAnalysis{
		DeploymentID:    id,
		Kind:            kind,
		RootCauses:      causes,
		Pattern:         pattern,
		Severity:        severity,
		Recommendations: recommendationsFor(kind, severity),
	}, nil
}

func classifyFailureKind(d *types.ActiveCanaryDeployment) types.FailureKind {
	if d.Status == types.DeploymentFailed && d.LatestDecision != nil && d.LatestDecision.Verdict == types.DecisionInconclusive {
		return types.FailureInsufficientData
	}
	if d.LatestSummary == nil {
		return types.FailureSystemError
	}
	significant := 0
	for _, t := range d.LatestSummary.Tests {
		if t.IsSignificant {
			significant++
		}
	}
	if significant == 0 {
		return types.FailureStatisticalInsignificance
	}
	return types.FailureKPIViolation
}

func rootCauses(d *types.ActiveCanaryDeployment, kind types.FailureKind) []types.RootCause {
	var causes []types.RootCause
	if d.RollbackReason != "" {
		causes = append(causes, types.RootCause{Description: "rollback triggered", Evidence: d.RollbackReason})
	}
	if d.LatestSummary != nil {
		for metric, t := range d.LatestSummary.Tests {
			if !t.IsSignificant {
				continue
			}
			delta := t.CanaryMean - t.ControlMean
			beneficial := (t.ImprovementDirection == types.TrendIncreasing && delta > 0) ||
				(t.ImprovementDirection == types.TrendDecreasing && delta < 0)
			if !beneficial {
				causes = append(causes, types.RootCause{
					Description: string(metric) + " regressed relative to control",
					Evidence:    "p=" + formatFloat(t.PValue) + " effect=" + formatFloat(t.EffectSize),
				})
			}
		}
	}
	if kind == types.FailureInsufficientData && len(causes) == 0 {
		causes = append(causes, types.RootCause{
			Description: "extension budget exhausted without reaching a confident verdict",
			Evidence:    "repeated inconclusive evaluations",
		})
	}
	return causes
}

// identifyPattern classifies the failure's temporal shape: an early
// rollback (well before the planned end time) versus one that only showed up
// near the deadline versus an outright abrupt one.
func identifyPattern(d *types.ActiveCanaryDeployment) types.FailurePattern {
	total := d.EndTime.Sub(d.StartTime)
	if total <= 0 {
		return types.PatternAbruptFailure
	}
	elapsed := time.Since(d.StartTime)
	frac := elapsed.Seconds() / total.Seconds()
	switch {
	case frac < 0.25:
		return types.PatternEarlyKPIViolation
	case frac < 0.75:
		return types.PatternDelayedKPIViolation
	case d.ExtensionCount > 0:
		return types.PatternGradualDegradation
	default:
		return types.PatternAbruptFailure
	}
}

func calculateSeverity(d *types.ActiveCanaryDeployment, kind types.FailureKind) types.Severity {
	if kind == types.FailureSystemError {
		return types.SeverityCritical
	}
	if d.LatestSummary == nil {
		return types.SeverityMedium
	}
	worst := 0.0
	for _, t := range d.LatestSummary.Tests {
		if !t.IsSignificant {
			continue
		}
		delta := t.CanaryMean - t.ControlMean
		beneficial := (t.ImprovementDirection == types.TrendIncreasing && delta > 0) ||
			(t.ImprovementDirection == types.TrendDecreasing && delta < 0)
		if beneficial {
			continue
		}
		mag := delta
		if mag < 0 {
			mag = -mag
		}
		if mag > worst {
			worst = mag
		}
	}
	switch {
	case worst >= 5:
		return types.SeverityCritical
	case worst >= 2:
		return types.SeverityHigh
	case worst >= 0.5:
		return types.SeverityMedium
	default:
		return types.SeverityLow
	}
}

func recommendationsFor(kind types.FailureKind, severity types.Severity) []types.RecommendationType {
	switch kind {
	case types.FailureKPIViolation:
		if severity == types.SeverityCritical || severity == types.SeverityHigh {
			return []types.RecommendationType{types.RecommendConsiderRollback, types.RecommendQualityReview}
		}
		return []types.RecommendationType{types.RecommendParameterAdjustment, types.RecommendQualityReview}
	case types.FailureStatisticalInsignificance:
		return []types.RecommendationType{types.RecommendWaitForSamples, types.RecommendExtendDuration}
	case types.FailureInsufficientData:
		return []types.RecommendationType{types.RecommendExtendDuration, types.RecommendManualReview}
	case types.FailureSystemError:
		return []types.RecommendationType{types.RecommendInfrastructureReview, types.RecommendManualReview}
	default:
		return []types.RecommendationType{types.RecommendManualReview}
	}
}

// GenerateReport produces a human-readable end-of-deployment summary.
func (m *Manager) GenerateReport(id string) (types.DeploymentReport, error) {
	m.mu.Lock()
	d, ok := m.deployments[id]
	m.mu.Unlock()
	if !ok {
		return types.DeploymentReport{}, apperr.New(apperr.KindCanaryFailure, component, "deployment not found: "+id)
	}

	report := types.DeploymentReport{
		DeploymentID:           id,
		StartTime:              d.StartTime,
		EndTime:                d.EndTime,
		PlannedDurationMinutes: int(m.cfg.Duration.Minutes()),
	}
	if d.Status.IsTerminal() {
		report.ActualDurationMinutes = int(time.Since(d.StartTime).Minutes())
	}
	if d.LatestDecision != nil {
		report.Decision = d.LatestDecision.Verdict
		report.Recommendation = d.LatestDecision.Recommendation
	}
	if d.LatestSummary != nil {
		report.StatisticalConfidence = overallConfidence(d.LatestSummary.Tests)
	}
	return report, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 4, 64)
}
