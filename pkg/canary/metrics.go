package canary

import (
	"context"
	"time"

	"github.com/vvtv/autopilot/internal/apperr"
	"github.com/vvtv/autopilot/pkg/log"
	"github.com/vvtv/autopilot/pkg/metrics"
	"github.com/vvtv/autopilot/pkg/stats"
	"github.com/vvtv/autopilot/pkg/timeseries"
	"github.com/vvtv/autopilot/pkg/types"
)

// comparedMetrics is the canary decision KPI set: the four business-critical
// metrics the deployment manager gates on before promoting or rolling back.
var comparedMetrics = []struct {
	name      types.MetricName
	direction types.TrendDirection // Increasing means higher is better
}{
	{types.MetricViewerRetention, types.TrendIncreasing},
	{types.MetricVideoVMAF, types.TrendIncreasing},
	{types.MetricErrorRate, types.TrendDecreasing},
	{types.MetricLatency, types.TrendDecreasing},
}

// CollectMetrics pulls canary-vs-control samples for the deployment's
// collection window, runs Welch's t-test per KPI, and returns the resulting
// MetricsSummary.
func (m *Manager) CollectMetrics(ctx context.Context, store timeseries.Store, id string) (*types.MetricsSummary, error) {
	m.mu.Lock()
	d, ok := m.deployments[id]
	if !ok {
		m.mu.Unlock()
		return nil, apperr.New(apperr.KindCanaryFailure, component, "deployment not found: "+id)
	}
	if d.Status != types.DeploymentRunning && d.Status != types.DeploymentCollectingMetrics {
		status := d.Status
		m.mu.Unlock()
		return nil, apperr.New(apperr.KindCanaryFailure, component, "cannot collect metrics for deployment in status "+string(status))
	}
	start, end := d.StartTime, minTime(time.Now().UTC(), d.EndTime)
	m.mu.Unlock()

	sufficient, err := m.collector.HasSufficientSamples(ctx, start, end, m.cfg.MinSampleSize)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindIO, component, "failed to check sample sufficiency")
	}
	if !sufficient {
		return nil, apperr.New(apperr.KindInsufficientData, component, "insufficient canary/control samples")
	}

	sizes, err := m.collector.SampleSizes(ctx, start, end)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindIO, component, "failed to read sample sizes")
	}

	tests := make(map[types.MetricName]types.SignificanceTest, len(comparedMetrics))
	for _, cm := range comparedMetrics {
		canaryPoints, err := store.QueryByGroup(ctx, cm.name, start, end, types.GroupCanary)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.KindIO, component, "failed to query canary samples for "+string(cm.name))
		}
		controlPoints, err := store.QueryByGroup(ctx, cm.name, start, end, types.GroupControl)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.KindIO, component, "failed to query control samples for "+string(cm.name))
		}

		test := types.SignificanceTest{Metric: cm.name, ImprovementDirection: cm.direction}
		result, err := stats.WelchTTest(valuesOf(canaryPoints), valuesOf(controlPoints), 1-m.cfg.ConfidenceThreshold)
		if err == nil {
			test.PValue = result.PValue
			test.CILower, test.CIUpper = result.ConfidenceInterval95[0], result.ConfidenceInterval95[1]
			test.IsSignificant = result.IsSignificant
			test.CanaryMean, test.ControlMean = result.Mean1, result.Mean2
			test.EffectSize = stats.CohensD(valuesOf(canaryPoints), valuesOf(controlPoints))
		}
		tests[cm.name] = test
		metrics.StatisticalTestsTotal.WithLabelValues(string(cm.name)).Inc()
	}

	summary := &types.MetricsSummary{
		DeploymentID: id, WindowStart: start, WindowEnd: end,
		CanarySamples: sizes.Canary, ControlSamples: sizes.Control, Tests: tests,
	}

	m.mu.Lock()
	d = m.deployments[id]
	if d != nil {
		d.LatestSummary = summary
		d.Status = types.DeploymentAnalyzing
	}
	m.mu.Unlock()

	log.WithDeploymentID(id).Debug().Int("canary_samples", sizes.Canary).Int("control_samples", sizes.Control).
		Msg("collected canary deployment metrics")
	return summary, nil
}

// overallConfidence is the minimum of 1-p across every statistically
// significant test, the conservative bound reported as the deployment
// report's overall statistical confidence.
func overallConfidence(tests map[types.MetricName]types.SignificanceTest) float64 {
	min := -1.0
	for _, t := range tests {
		if !t.IsSignificant {
			continue
		}
		c := 1.0 - t.PValue
		if min < 0 || c < min {
			min = c
		}
	}
	if min < 0 {
		return 0
	}
	return min
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
