/*
Package analyzer turns a window of raw business-KPI samples into trend,
stability, and data-quality summaries plus a ranked list of optimization
opportunities.
*/
package analyzer

import (
	"context"
	"time"

	"github.com/vvtv/autopilot/internal/apperr"
	"github.com/vvtv/autopilot/pkg/log"
	"github.com/vvtv/autopilot/pkg/metrics"
	"github.com/vvtv/autopilot/pkg/timeseries"
	"github.com/vvtv/autopilot/pkg/types"
)

const component = "analyzer"

// trackedMetrics is the set of KPIs every analysis cycle pulls and trends.
var trackedMetrics = []types.MetricName{
	types.MetricSelectionEntropy,
	types.MetricCuratorBudgetUsage,
	types.MetricContentNovelty,
	types.MetricQualityReliability,
	types.MetricViewerRetention,
	types.MetricVideoVMAF,
	types.MetricErrorRate,
	types.MetricLatency,
}

// Analyzer turns a metrics store into a MetricsAnalysis for one cycle.
type Analyzer struct {
	cfg   Config
	store timeseries.Store
}

// New builds an Analyzer reading from store.
func New(cfg Config, store timeseries.Store) *Analyzer {
	return &Analyzer{cfg: cfg, store: store}
}

// Analyze pulls cfg.WindowDuration of history for every tracked metric ending
// at now, and returns the resulting MetricsAnalysis. Returns an
// apperr-wrapped InsufficientData error if data quality falls below the
// configured floor, which callers should treat as a skippable cycle rather
// than a fatal one.
func (a *Analyzer) Analyze(ctx context.Context, now time.Time) (*types.MetricsAnalysis, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.AnalysisDuration)

	start := now.Add(-a.cfg.WindowDuration)
	logger := log.WithComponent(component)

	trends := make(map[types.MetricName]types.TrendAnalysis, len(trackedMetrics))
	pointCounts := make(map[types.MetricName]int, len(trackedMetrics))
	var mostRecent time.Time

	for _, metric := range trackedMetrics {
		points, err := a.store.Query(ctx, metric, start, now)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.KindIO, component, "failed to query metric "+string(metric))
		}
		trends[metric] = analyzeTrend(metric, points)
		pointCounts[metric] = len(points)
		for _, p := range points {
			if p.Timestamp.After(mostRecent) {
				mostRecent = p.Timestamp
			}
		}
	}

	dataQuality := computeDataQuality(a.cfg, pointCounts, mostRecent, now)
	if !dataQuality.HasSufficientData {
		logger.Warn().Float64("completeness_pct", dataQuality.CompletenessPct).Msg("insufficient data for reliable analysis")
		return nil, apperr.New(apperr.KindInsufficientData, component, "insufficient data for reliable analysis")
	}

	entropy := trends[types.MetricSelectionEntropy]
	budget := trends[types.MetricCuratorBudgetUsage]
	novelty := trends[types.MetricContentNovelty]

	opportunities := discoverOpportunities(trends)
	consistency := crossMetricConsistency(entropy, budget, novelty)
	confidence := analysisConfidence(trends, opportunities, consistency)

	metrics.AnalysisConfidence.Set(confidence)
	metrics.OpportunitiesDiscoveredTotal.Add(float64(len(opportunities)))

	logger.Debug().Int("opportunities", len(opportunities)).Float64("confidence", confidence).Msg("completed metrics analysis")

	return &types.MetricsAnalysis{
		Start: start, End: now, Trends: trends, DataQuality: dataQuality,
		CrossMetricConsistency: consistency, Confidence: confidence, Opportunities: opportunities,
	}, nil
}

// computeDataQuality reports completeness and freshness across every
// tracked metric.
func computeDataQuality(cfg Config, pointCounts map[types.MetricName]int, mostRecent, now time.Time) types.DataQuality {
	windowHours := int(cfg.WindowDuration.Hours())
	expectedPerMetric := windowHours
	expectedTotal := expectedPerMetric * len(trackedMetrics)

	total := 0
	sufficientEveryMetric := true
	for _, metric := range trackedMetrics {
		count := pointCounts[metric]
		total += count
		if count < cfg.MinSamplesPerMetric {
			sufficientEveryMetric = false
		}
	}

	completeness := 0.0
	if expectedTotal > 0 {
		completeness = float64(total) / float64(expectedTotal) * 100.0
		if completeness > 100.0 {
			completeness = 100.0
		}
	}

	freshnessHours := 24.0
	if !mostRecent.IsZero() {
		freshnessHours = now.Sub(mostRecent).Hours()
	}

	sufficient := sufficientEveryMetric && freshnessHours < cfg.FreshnessSLAHours

	return types.DataQuality{
		PointsPerMetric: pointCounts, ExpectedPoints: expectedPerMetric,
		CompletenessPct: completeness, FreshnessHours: freshnessHours,
		HasSufficientData: sufficient,
	}
}
