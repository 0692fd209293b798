/*
Package metrics provides Prometheus metrics collection and exposition for the autopilot.

The metrics package defines and registers all autopilot metrics using the Prometheus
client library, providing observability into cycle outcomes, bounds adjustments,
analysis quality, canary progression, and the health of external dependencies.
Metrics are exposed via an HTTP endpoint for scraping by Prometheus servers.

# Architecture

The autopilot's metrics system follows Prometheus best practices with comprehensive
instrumentation across all components:

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  │  - Automatic Go runtime metrics             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Metric Types                   │          │
	│  │                                              │          │
	│  │  Gauge: Instant values (active deployments) │          │
	│  │  Counter: Monotonic increases (cycles)      │          │
	│  │  Histogram: Distributions (latency)         │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                 │          │
	│  │                                              │          │
	│  │  Cycle: Outcome count, duration, pause state│          │
	│  │  Bounds: Adjustments, width, stability       │          │
	│  │  Analyzer: Duration, confidence, discoveries │          │
	│  │  Optimizer: Proposals, applied, accuracy     │          │
	│  │  Canary: Deployments, decisions, active count│          │
	│  │  Dependencies: Commits, query latency, CB    │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint              │          │
	│  │  - Path: /metrics                           │          │
	│  │  - Format: Prometheus text exposition       │          │
	│  │  - Handler: promhttp.Handler()              │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Prometheus Server                   │          │
	│  │  - Scrapes /metrics every 15s               │          │
	│  │  - Stores time series data                  │          │
	│  │  - Provides PromQL query interface          │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Metric Registry:
  - Global Prometheus DefaultRegistry
  - All metrics registered at package init
  - Automatic collection of Go runtime metrics
  - Thread-safe for concurrent updates

Gauge Metrics:
  - Instant value that can go up or down
  - Examples: active canary deployments, bounds width, cycle paused state
  - Operations: Set, Inc, Dec, Add, Sub

Counter Metrics:
  - Monotonically increasing value
  - Examples: cycles total, parameter changes proposed, canary decisions
  - Operations: Inc, Add (cannot decrease)

Histogram Metrics:
  - Distribution of observed values
  - Buckets for latency percentiles (p50, p95, p99)
  - Examples: cycle duration, analysis duration, canary deployment duration
  - Includes: sum, count, buckets

Timer Helper:
  - Convenience wrapper for timing operations
  - Start timer, observe duration to histogram
  - Supports label values for histogram vectors

# Metrics Catalog

Cycle Metrics:

autopilot_cycles_total{status}:
  - Type: Counter
  - Description: Total control-loop cycles by outcome (completed/skipped/paused/failed)
  - Labels: status
  - Example: autopilot_cycles_total{status="completed"} 482

autopilot_cycle_duration_seconds:
  - Type: Histogram
  - Description: Time taken for one control-loop cycle in seconds

autopilot_cycle_paused:
  - Type: Gauge
  - Description: Whether the control loop is currently paused (1 = paused, 0 = running)

Bounds Metrics:

autopilot_bounds_adjustments_total{parameter, type}:
  - Type: Counter
  - Description: Total sliding-bounds adjustments by parameter and type (expand/contract)
  - Labels: parameter, type

autopilot_bounds_width{parameter}:
  - Type: Gauge
  - Description: Current sliding-bounds width (max - min) per parameter
  - Labels: parameter

autopilot_bounds_stability_score{parameter}:
  - Type: Gauge
  - Description: Current stability score per parameter
  - Labels: parameter

autopilot_oscillations_detected_total{parameter}:
  - Type: Counter
  - Description: Total oscillation detections by parameter
  - Labels: parameter

Analyzer Metrics:

autopilot_analysis_duration_seconds:
  - Type: Histogram
  - Description: Time taken to analyze one metrics window in seconds

autopilot_analysis_confidence:
  - Type: Gauge
  - Description: Confidence score of the most recent metrics analysis

autopilot_opportunities_discovered_total:
  - Type: Counter
  - Description: Total optimization opportunities surfaced by the analyzer

Optimizer Metrics:

autopilot_parameter_changes_proposed_total{algorithm}:
  - Type: Counter
  - Description: Total parameter changes proposed by algorithm
  - Labels: algorithm

autopilot_parameter_changes_applied_total{parameter}:
  - Type: Counter
  - Description: Total parameter changes applied by parameter
  - Labels: parameter

autopilot_optimizer_prediction_accuracy{parameter}:
  - Type: Gauge
  - Description: Mean prediction accuracy of the optimizer's expected-impact model
  - Labels: parameter

Canary Metrics:

autopilot_canary_deployments_total{status}:
  - Type: Counter
  - Description: Total canary deployments started, by status at start
  - Labels: status

autopilot_canary_decisions_total{verdict}:
  - Type: Counter
  - Description: Total canary decisions by verdict (proceed/rollback/inconclusive)
  - Labels: verdict

autopilot_canary_deployment_duration_seconds:
  - Type: Histogram
  - Description: Canary deployment duration in seconds
  - Buckets: 1m to 4h

autopilot_canary_active_deployments:
  - Type: Gauge
  - Description: Number of currently active canary deployments

Statistical Analysis Metrics:

autopilot_statistical_tests_total{metric}:
  - Type: Counter
  - Description: Total statistical significance tests run by metric
  - Labels: metric

External-Dependency Metrics:

autopilot_configurator_commits_total{status}:
  - Type: Counter
  - Description: Total configuration commits by outcome
  - Labels: status

autopilot_timeseries_query_duration_seconds:
  - Type: Histogram
  - Description: Time taken to query the metrics store in seconds

autopilot_circuit_breaker_state_changes_total{dependency, state}:
  - Type: Counter
  - Description: Total circuit breaker state transitions by dependency and new state
  - Labels: dependency, state

# Usage

Updating Gauge Metrics:

	import "github.com/vvtv/autopilot/pkg/metrics"

	// Set absolute value
	metrics.CanaryActiveDeployments.Set(3)

	// Increment/decrement
	metrics.CyclePaused.Set(1)
	metrics.CyclePaused.Set(0)

Updating Counter Metrics:

	// Increment by 1
	metrics.OpportunitiesDiscoveredTotal.Inc()

	// Add with labels
	metrics.CyclesTotal.WithLabelValues("completed").Inc()

Recording Histogram Observations:

	// Direct observation
	metrics.AnalysisDuration.Observe(0.125) // 125ms

	// Using Timer helper
	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDuration(metrics.CycleDuration)

Using Timer with Labels:

	phaseDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "example_phase_duration_seconds",
		Help: "Example phase duration in seconds",
	}, []string{"parameter", "phase"})

	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDurationVec(phaseDuration, "selection_temperature", "expand")

Complete Example:

	package main

	import (
		"net/http"
		"time"
		"github.com/vvtv/autopilot/pkg/metrics"
	)

	func main() {
		// Time an operation
		timer := metrics.NewTimer()
		runCycle()
		timer.ObserveDuration(metrics.CycleDuration)
		metrics.CyclesTotal.WithLabelValues("completed").Inc()

		// Expose metrics endpoint
		http.Handle("/metrics", metrics.Handler())
		http.ListenAndServe(":9090", nil)
	}

	func runCycle() {
		// Cycle logic
		time.Sleep(100 * time.Millisecond)
	}

# Integration Points

This package integrates with:

  - pkg/cycle: Records cycle outcome, duration, and pause state
  - pkg/bounds: Records bounds adjustments
  - pkg/analyzer: Records analysis duration, confidence, and discoveries
  - pkg/optimizer: Records proposed parameter changes and prediction accuracy
  - pkg/canary: Records deployment starts, decisions, duration, active count, and statistical tests
  - pkg/timeseries: Records query duration and circuit breaker transitions
  - Prometheus: Scrapes /metrics endpoint

# Design Patterns

Package Init Registration:
  - All metrics registered in init() function
  - MustRegister panics on duplicate registration
  - Ensures metrics available before main()
  - No runtime registration needed

Label Discipline:
  - Use WithLabelValues for cardinality-bounded labels
  - Avoid high-cardinality labels (IDs, timestamps)
  - Document label values in metric description
  - Keep label count low (< 5 per metric)

Timer Pattern:
  - Create timer at operation start
  - Defer or explicitly call ObserveDuration
  - Automatically calculates elapsed time
  - Supports both simple and vector histograms

Global Metrics:
  - Package-level variables for all metrics
  - Accessible from any autopilot package
  - Thread-safe concurrent updates
  - No initialization required by callers

# Performance Characteristics

Metric Update Overhead:
  - Gauge set/inc: ~50ns per operation
  - Counter inc: ~50ns per operation
  - Histogram observe: ~200ns per operation
  - Labels: +100ns per label value
  - Negligible impact on hot path

Memory Usage:
  - Per metric: ~1KB baseline
  - Per label combination: ~100 bytes
  - Histogram buckets: ~50 bytes each
  - Total: well under 1MB for the autopilot's metric set

Scrape Performance:
  - Metrics gathering: ~1ms for full scrape
  - Recommendation: Scrape interval ≥ 15s
  - Concurrent scrapes: Safe (read-only)

# Troubleshooting

Common Issues:

Missing Metrics:
  - Symptom: Metric not appearing in /metrics output
  - Check: Metric registered in init() function
  - Check: MustRegister called (panics if duplicate)
  - Solution: Verify metric variable is exported

High Cardinality:
  - Symptom: Prometheus memory usage grows
  - Cause: Using deployment/cycle IDs as labels
  - Check: Label cardinality (count unique combinations)
  - Solution: Remove high-cardinality labels, aggregate differently

Histogram Bucket Mismatch:
  - Symptom: No data in desired percentiles
  - Cause: Buckets don't cover observed value range
  - Check: Histogram sum / count for average
  - Solution: Customize buckets for value range

Stale Metrics:
  - Symptom: Metrics not updating
  - Cause: Code not calling metric update methods
  - Solution: Instrument code paths correctly

# Monitoring

Prometheus Queries (PromQL):

Cycle Health:
  - Cycle rate: rate(autopilot_cycles_total[5m])
  - Skip rate: rate(autopilot_cycles_total{status="skipped"}[5m])
  - p95 cycle duration: histogram_quantile(0.95, autopilot_cycle_duration_seconds_bucket)

Canary Health:
  - Rollback rate: rate(autopilot_canary_decisions_total{verdict="rollback"}[30m])
  - Active deployments: autopilot_canary_active_deployments

Dependency Health:
  - Circuit breaker trips: increase(autopilot_circuit_breaker_state_changes_total{state="open"}[1h])

# Alerting Rules

Recommended Prometheus alerts:

High Canary Rollback Rate:
  - Alert: rate(autopilot_canary_decisions_total{verdict="rollback"}[1h]) > 0.3
  - Description: More than 30% of recent canary decisions are rollbacks
  - Action: Check optimizer proposal quality and KPI thresholds

Cycle Control Loop Stalled:
  - Alert: autopilot_cycle_paused == 1
  - Description: The control loop has been paused
  - Action: Check the pause-file sentinel and recent cycle errors

Circuit Breaker Open:
  - Alert: increase(autopilot_circuit_breaker_state_changes_total{state="open"}[10m]) > 0
  - Description: A dependency circuit breaker tripped open
  - Action: Check configurator target reachability

# See Also

  - Prometheus documentation: https://prometheus.io/docs/
  - Prometheus client library: https://github.com/prometheus/client_golang
  - PromQL tutorial: https://prometheus.io/docs/prometheus/latest/querying/basics/
  - Histogram best practices: https://prometheus.io/docs/practices/histograms/
*/
package metrics
