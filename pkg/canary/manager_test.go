package canary

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvtv/autopilot/pkg/timeseries"
	"github.com/vvtv/autopilot/pkg/types"
)

type fakeCollector struct {
	sufficient bool
	sizes      SampleSizes
}

func (f *fakeCollector) Collect(ctx context.Context, start, end time.Time, group types.Group) (GroupMetrics, error) {
	return GroupMetrics{}, nil
}

func (f *fakeCollector) SampleSizes(ctx context.Context, start, end time.Time) (SampleSizes, error) {
	return f.sizes, nil
}

func (f *fakeCollector) HasSufficientSamples(ctx context.Context, start, end time.Time, minSamples int) (bool, error) {
	return f.sufficient, nil
}

func testChanges() []types.ParameterChange {
	return []types.ParameterChange{{Parameter: types.ParamSelectionTemperature, OldValue: 0.85, NewValue: 0.9}}
}

func TestStartDeploymentSetsRunningAndSplitsTraffic(t *testing.T) {
	mgr := New(DefaultConfig(), &fakeCollector{sufficient: true})
	require.NoError(t, mgr.StartDeployment("dep-1", testChanges()))

	d, ok := mgr.Get("dep-1")
	require.True(t, ok)
	assert.Equal(t, types.DeploymentRunning, d.Status)
	assert.Equal(t, 0.2, d.Split.CanaryPct)
}

func TestStartDeploymentRejectsEmptyChanges(t *testing.T) {
	mgr := New(DefaultConfig(), &fakeCollector{sufficient: true})
	err := mgr.StartDeployment("dep-1", nil)
	assert.Error(t, err)
}

func TestStartDeploymentRejectsOverMaxConcurrent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConcurrentDeployments = 1
	mgr := New(cfg, &fakeCollector{sufficient: true})
	require.NoError(t, mgr.StartDeployment("dep-1", testChanges()))

	err := mgr.StartDeployment("dep-2", testChanges())
	assert.Error(t, err)
}

func TestRouteTrafficIsDeterministicForSameKey(t *testing.T) {
	mgr := New(DefaultConfig(), &fakeCollector{sufficient: true})
	require.NoError(t, mgr.StartDeployment("dep-1", testChanges()))

	g1, err := mgr.RouteTraffic("dep-1", "viewer-42")
	require.NoError(t, err)
	g2, err := mgr.RouteTraffic("dep-1", "viewer-42")
	require.NoError(t, err)
	assert.Equal(t, g1, g2)
}

func TestRouteTrafficReturnsControlForTerminalDeployment(t *testing.T) {
	mgr := New(DefaultConfig(), &fakeCollector{sufficient: true})
	require.NoError(t, mgr.StartDeployment("dep-1", testChanges()))
	require.NoError(t, mgr.Rollback("dep-1", "test"))

	g, err := mgr.RouteTraffic("dep-1", "viewer-42")
	require.NoError(t, err)
	assert.Equal(t, types.GroupControl, g)
}

func TestRollbackDecrementsActiveGauge(t *testing.T) {
	mgr := New(DefaultConfig(), &fakeCollector{sufficient: true})
	require.NoError(t, mgr.StartDeployment("dep-1", testChanges()))
	require.NoError(t, mgr.Rollback("dep-1", "kpi regression"))

	d, ok := mgr.Get("dep-1")
	require.True(t, ok)
	assert.Equal(t, types.DeploymentRolledBack, d.Status)
	assert.Equal(t, "kpi regression", d.RollbackReason)
}

func TestCleanupOldRemovesOnlyStaleTerminalDeployments(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RetentionHours = 1
	mgr := New(cfg, &fakeCollector{sufficient: true})
	require.NoError(t, mgr.StartDeployment("dep-1", testChanges()))
	require.NoError(t, mgr.Rollback("dep-1", "test"))

	d := mgr.deployments["dep-1"]
	d.StartTime = time.Now().UTC().Add(-2 * time.Hour)

	removed := mgr.CleanupOld()
	assert.Equal(t, 1, removed)
	_, ok := mgr.Get("dep-1")
	assert.False(t, ok)
}

func seedGroupMetric(t *testing.T, store *timeseries.MemoryStore, metric types.MetricName, group types.Group, values []float64, start time.Time) {
	t.Helper()
	for i, v := range values {
		require.NoError(t, store.Record(context.Background(), metric, timeseries.Point{
			Value: v, Timestamp: start.Add(time.Duration(i) * time.Minute), Group: group,
		}))
	}
}

func TestCollectMetricsReturnsInsufficientDataError(t *testing.T) {
	mgr := New(DefaultConfig(), &fakeCollector{sufficient: false})
	store := timeseries.NewMemoryStore()
	require.NoError(t, mgr.StartDeployment("dep-1", testChanges()))

	_, err := mgr.CollectMetrics(context.Background(), store, "dep-1")
	assert.Error(t, err)
}

func TestCollectMetricsProducesSignificanceTestsPerKPI(t *testing.T) {
	mgr := New(DefaultConfig(), &fakeCollector{sufficient: true, sizes: SampleSizes{Canary: 120, Control: 120, Total: 240}})
	store := timeseries.NewMemoryStore()
	require.NoError(t, mgr.StartDeployment("dep-1", testChanges()))

	// CollectMetrics reads [StartTime, now); backdate the start so the seeded
	// samples fall inside that window instead of in the future.
	mgr.deployments["dep-1"].StartTime = time.Now().UTC().Add(-time.Hour)
	start := mgr.deployments["dep-1"].StartTime
	canaryRetention := make([]float64, 30)
	controlRetention := make([]float64, 30)
	for i := range canaryRetention {
		canaryRetention[i] = 80 + float64(i%3)
		controlRetention[i] = 75 + float64(i%3)
	}
	seedGroupMetric(t, store, types.MetricViewerRetention, types.GroupCanary, canaryRetention, start)
	seedGroupMetric(t, store, types.MetricViewerRetention, types.GroupControl, controlRetention, start)

	summary, err := mgr.CollectMetrics(context.Background(), store, "dep-1")
	require.NoError(t, err)
	require.Contains(t, summary.Tests, types.MetricViewerRetention)
	assert.Greater(t, summary.Tests[types.MetricViewerRetention].CanaryMean, summary.Tests[types.MetricViewerRetention].ControlMean)
}

func buildSummaryWithRetention(canaryMean, controlMean float64, significant bool) *types.MetricsSummary {
	return &types.MetricsSummary{
		CanarySamples: 150, ControlSamples: 150,
		Tests: map[types.MetricName]types.SignificanceTest{
			types.MetricViewerRetention: {
				Metric: types.MetricViewerRetention, CanaryMean: canaryMean, ControlMean: controlMean,
				IsSignificant: significant, EffectSize: 0.6, PValue: 0.01,
				ImprovementDirection: types.TrendIncreasing,
			},
		},
	}
}

func TestEvaluateProceedsWhenSignificantImprovement(t *testing.T) {
	mgr := New(DefaultConfig(), &fakeCollector{sufficient: true})
	require.NoError(t, mgr.StartDeployment("dep-1", testChanges()))

	decision, err := mgr.Evaluate("dep-1", buildSummaryWithRetention(82, 75, true))
	require.NoError(t, err)
	assert.Equal(t, types.DecisionProceed, decision.Verdict)
}

func TestEvaluateRollsBackOnCriticalThresholdBreach(t *testing.T) {
	mgr := New(DefaultConfig(), &fakeCollector{sufficient: true})
	require.NoError(t, mgr.StartDeployment("dep-1", testChanges()))

	summary := &types.MetricsSummary{
		CanarySamples: 150, ControlSamples: 150,
		Tests: map[types.MetricName]types.SignificanceTest{
			types.MetricErrorRate: {
				Metric: types.MetricErrorRate, CanaryMean: 0.05, ControlMean: 0.01,
				IsSignificant: true, EffectSize: 1.2, PValue: 0.001,
				ImprovementDirection: types.TrendDecreasing,
			},
		},
	}
	decision, err := mgr.Evaluate("dep-1", summary)
	require.NoError(t, err)
	assert.Equal(t, types.DecisionRollback, decision.Verdict)
}

func TestEvaluateInconclusiveWithoutSignificance(t *testing.T) {
	mgr := New(DefaultConfig(), &fakeCollector{sufficient: true})
	require.NoError(t, mgr.StartDeployment("dep-1", testChanges()))

	decision, err := mgr.Evaluate("dep-1", buildSummaryWithRetention(76, 75, false))
	require.NoError(t, err)
	assert.Equal(t, types.DecisionInconclusive, decision.Verdict)
}

func TestExecuteDecisionCompletesOnProceed(t *testing.T) {
	mgr := New(DefaultConfig(), &fakeCollector{sufficient: true})
	require.NoError(t, mgr.StartDeployment("dep-1", testChanges()))
	_, err := mgr.Evaluate("dep-1", buildSummaryWithRetention(82, 75, true))
	require.NoError(t, err)

	progression, err := mgr.ExecuteDecision("dep-1")
	require.NoError(t, err)
	assert.Equal(t, types.DeploymentCompleted, progression.NewStatus)
}

func TestExecuteDecisionExtendsOnInconclusive(t *testing.T) {
	mgr := New(DefaultConfig(), &fakeCollector{sufficient: true})
	require.NoError(t, mgr.StartDeployment("dep-1", testChanges()))
	_, err := mgr.Evaluate("dep-1", buildSummaryWithRetention(76, 75, false))
	require.NoError(t, err)

	progression, err := mgr.ExecuteDecision("dep-1")
	require.NoError(t, err)
	assert.Equal(t, "extended_monitoring", progression.ActionTaken)
	assert.Equal(t, 1, mgr.deployments["dep-1"].ExtensionCount)
}

func TestExecuteDecisionEscalatesAfterExtensionBudgetExhausted(t *testing.T) {
	mgr := New(DefaultConfig(), &fakeCollector{sufficient: true})
	require.NoError(t, mgr.StartDeployment("dep-1", testChanges()))
	mgr.deployments["dep-1"].ExtensionCount = maxExtensions

	_, err := mgr.Evaluate("dep-1", buildSummaryWithRetention(76, 75, false))
	require.NoError(t, err)
	progression, err := mgr.ExecuteDecision("dep-1")
	require.NoError(t, err)
	assert.Equal(t, types.DeploymentFailed, progression.NewStatus)
}

func TestManualOverrideForcesRollback(t *testing.T) {
	mgr := New(DefaultConfig(), &fakeCollector{sufficient: true})
	require.NoError(t, mgr.StartDeployment("dep-1", testChanges()))

	require.NoError(t, mgr.ManualOverrideDecision("dep-1", types.DecisionRollback, "operator judgment call"))
	d, ok := mgr.Get("dep-1")
	require.True(t, ok)
	assert.Equal(t, types.DeploymentRolledBack, d.Status)
}

func TestAnalyzeFailureClassifiesKPIViolation(t *testing.T) {
	mgr := New(DefaultConfig(), &fakeCollector{sufficient: true})
	require.NoError(t, mgr.StartDeployment("dep-1", testChanges()))
	mgr.deployments["dep-1"].LatestSummary = &types.MetricsSummary{
		Tests: map[types.MetricName]types.SignificanceTest{
			types.MetricErrorRate: {
				Metric: types.MetricErrorRate, CanaryMean: 0.06, ControlMean: 0.01,
				IsSignificant: true, ImprovementDirection: types.TrendDecreasing,
			},
		},
	}
	require.NoError(t, mgr.Rollback("dep-1", "error rate spike"))

	analysis, err := mgr.AnalyzeFailure("dep-1")
	require.NoError(t, err)
	assert.Equal(t, types.FailureKPIViolation, analysis.Kind)
	assert.NotEmpty(t, analysis.RootCauses)
	assert.NotEmpty(t, analysis.Recommendations)
}

func TestGenerateReportReflectsLatestDecision(t *testing.T) {
	mgr := New(DefaultConfig(), &fakeCollector{sufficient: true})
	require.NoError(t, mgr.StartDeployment("dep-1", testChanges()))
	_, err := mgr.Evaluate("dep-1", buildSummaryWithRetention(82, 75, true))
	require.NoError(t, err)

	report, err := mgr.GenerateReport("dep-1")
	require.NoError(t, err)
	assert.Equal(t, types.DecisionProceed, report.Decision)
}
