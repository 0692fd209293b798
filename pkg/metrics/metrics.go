package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cycle metrics
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopilot_cycles_total",
			Help: "Total number of control-loop cycles by outcome",
		},
		[]string{"status"},
	)

	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "autopilot_cycle_duration_seconds",
			Help:    "Time taken for one control-loop cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	CyclePaused = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "autopilot_cycle_paused",
			Help: "Whether the control loop is currently paused (1 = paused, 0 = running)",
		},
	)

	// Bounds metrics
	BoundsAdjustmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopilot_bounds_adjustments_total",
			Help: "Total number of sliding-bounds adjustments by parameter and type",
		},
		[]string{"parameter", "type"},
	)

	BoundsWidth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "autopilot_bounds_width",
			Help: "Current sliding-bounds width (max - min) per parameter",
		},
		[]string{"parameter"},
	)

	BoundsStabilityScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "autopilot_bounds_stability_score",
			Help: "Current stability score per parameter",
		},
		[]string{"parameter"},
	)

	OscillationsDetectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopilot_oscillations_detected_total",
			Help: "Total number of oscillation detections by parameter",
		},
		[]string{"parameter"},
	)

	// Analyzer metrics
	AnalysisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "autopilot_analysis_duration_seconds",
			Help:    "Time taken to analyze one metrics window in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	AnalysisConfidence = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "autopilot_analysis_confidence",
			Help: "Confidence score of the most recent metrics analysis",
		},
	)

	OpportunitiesDiscoveredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "autopilot_opportunities_discovered_total",
			Help: "Total number of optimization opportunities surfaced by the analyzer",
		},
	)

	// Optimizer metrics
	ParameterChangesProposedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopilot_parameter_changes_proposed_total",
			Help: "Total number of parameter changes proposed by algorithm",
		},
		[]string{"algorithm"},
	)

	ParameterChangesAppliedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopilot_parameter_changes_applied_total",
			Help: "Total number of parameter changes applied by parameter",
		},
		[]string{"parameter"},
	)

	PredictionAccuracy = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "autopilot_optimizer_prediction_accuracy",
			Help: "Mean prediction accuracy of the optimizer's expected-impact model",
		},
		[]string{"parameter"},
	)

	// Canary metrics
	CanaryDeploymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopilot_canary_deployments_total",
			Help: "Total number of canary deployments started, by status at start",
		},
		[]string{"status"},
	)

	CanaryDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopilot_canary_decisions_total",
			Help: "Total number of canary decisions by verdict",
		},
		[]string{"verdict"},
	)

	CanaryDeploymentDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "autopilot_canary_deployment_duration_seconds",
			Help:    "Canary deployment duration in seconds",
			Buckets: []float64{60, 300, 600, 1800, 3600, 7200, 14400}, // 1m to 4h
		},
	)

	CanaryActiveDeployments = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "autopilot_canary_active_deployments",
			Help: "Number of currently active canary deployments",
		},
	)

	// Statistical analysis metrics
	StatisticalTestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopilot_statistical_tests_total",
			Help: "Total number of statistical significance tests run by metric",
		},
		[]string{"metric"},
	)

	// External-dependency metrics
	ConfiguratorCommitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopilot_configurator_commits_total",
			Help: "Total number of configuration commits by outcome",
		},
		[]string{"status"},
	)

	TimeSeriesQueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "autopilot_timeseries_query_duration_seconds",
			Help:    "Time taken to query the metrics store in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	CircuitBreakerStateChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopilot_circuit_breaker_state_changes_total",
			Help: "Total number of circuit breaker state transitions by dependency and new state",
		},
		[]string{"dependency", "state"},
	)
)

func init() {
	prometheus.MustRegister(CyclesTotal)
	prometheus.MustRegister(CycleDuration)
	prometheus.MustRegister(CyclePaused)

	prometheus.MustRegister(BoundsAdjustmentsTotal)
	prometheus.MustRegister(BoundsWidth)
	prometheus.MustRegister(BoundsStabilityScore)
	prometheus.MustRegister(OscillationsDetectedTotal)

	prometheus.MustRegister(AnalysisDuration)
	prometheus.MustRegister(AnalysisConfidence)
	prometheus.MustRegister(OpportunitiesDiscoveredTotal)

	prometheus.MustRegister(ParameterChangesProposedTotal)
	prometheus.MustRegister(ParameterChangesAppliedTotal)
	prometheus.MustRegister(PredictionAccuracy)

	prometheus.MustRegister(CanaryDeploymentsTotal)
	prometheus.MustRegister(CanaryDecisionsTotal)
	prometheus.MustRegister(CanaryDeploymentDuration)
	prometheus.MustRegister(CanaryActiveDeployments)

	prometheus.MustRegister(StatisticalTestsTotal)

	prometheus.MustRegister(ConfiguratorCommitsTotal)
	prometheus.MustRegister(TimeSeriesQueryDuration)
	prometheus.MustRegister(CircuitBreakerStateChangesTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
