package types

import "time"

// MetricName identifies one of the business KPIs the analyzer tracks.
type MetricName string

const (
	MetricSelectionEntropy   MetricName = "selection_entropy"
	MetricCuratorBudgetUsage MetricName = "curator_budget_usage"
	MetricContentNovelty     MetricName = "content_novelty"
	MetricQualityReliability MetricName = "quality_detection_reliability"
	MetricViewerRetention    MetricName = "viewer_retention"
	MetricVideoVMAF          MetricName = "video_vmaf"
	MetricErrorRate          MetricName = "error_rate"
	MetricLatency            MetricName = "latency"
)

// TrendDirection is a metric's direction over the analysis window.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// TrendAnalysis is one metric's trend/stability summary.
type TrendAnalysis struct {
	Metric         MetricName
	CurrentValue   float64
	Direction      TrendDirection
	Strength       float64
	StabilityScore float64
	PointCount     int
}

// DataQuality summarizes completeness and freshness of the queried metrics.
type DataQuality struct {
	PointsPerMetric     map[MetricName]int
	ExpectedPoints      int
	CompletenessPct     float64
	FreshnessHours      float64
	HasSufficientData   bool
}

// OptimizationOpportunity is a candidate parameter adjustment surfaced by the
// analyzer, ranked by confidence × |expected impact|.
type OptimizationOpportunity struct {
	Parameter      string
	CurrentValue   float64
	SuggestedValue float64
	ExpectedImpact float64
	Confidence     float64
	Rationale      string
}

// MetricsAnalysis is the analyzer's per-cycle, disposable output.
type MetricsAnalysis struct {
	Start, End            time.Time
	Trends                map[MetricName]TrendAnalysis
	DataQuality           DataQuality
	CrossMetricConsistency float64
	Confidence            float64
	Opportunities         []OptimizationOpportunity
}
