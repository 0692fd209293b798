package canary

import (
	"context"
	"time"

	"github.com/vvtv/autopilot/pkg/timeseries"
	"github.com/vvtv/autopilot/pkg/types"
)

// GroupMetrics is one cohort's (canary or control) aggregated KPI values over
// a collection window.
type GroupMetrics struct {
	RetentionFiveMin float64
	VMAFAvg          float64
	ErrorRate        float64
	LatencyP95MS     float64
	SelectionEntropy float64
	CuratorApplyRate float64
}

// SampleSizes reports how many samples each cohort has accumulated.
type SampleSizes struct {
	Canary  int
	Control int
	Total   int
}

// MetricsCollector is the canary manager's external dependency for reading
// per-cohort KPI samples, kept as an interface so tests can substitute a
// fake without standing up a real timeseries store.
type MetricsCollector interface {
	Collect(ctx context.Context, start, end time.Time, group types.Group) (GroupMetrics, error)
	SampleSizes(ctx context.Context, start, end time.Time) (SampleSizes, error)
	HasSufficientSamples(ctx context.Context, start, end time.Time, minSamples int) (bool, error)
}

// kpiMetrics is the set of KPIs collected for every group.
var kpiMetrics = []types.MetricName{
	types.MetricViewerRetention,
	types.MetricVideoVMAF,
	types.MetricErrorRate,
	types.MetricLatency,
	types.MetricSelectionEntropy,
	types.MetricCuratorBudgetUsage,
}

// StoreCollector implements MetricsCollector over a shared timeseries.Store,
// reading the samples whose Group tag matches the requested cohort and
// averaging per metric at read time. Samples must carry their Group tag when
// they are written to the store.
type StoreCollector struct {
	store timeseries.Store
}

// NewStoreCollector wraps store as a MetricsCollector.
func NewStoreCollector(store timeseries.Store) *StoreCollector {
	return &StoreCollector{store: store}
}

func (c *StoreCollector) Collect(ctx context.Context, start, end time.Time, group types.Group) (GroupMetrics, error) {
	values := make(map[types.MetricName]float64, len(kpiMetrics))
	for _, metric := range kpiMetrics {
		points, err := c.store.QueryByGroup(ctx, metric, start, end, group)
		if err != nil {
			return GroupMetrics{}, err
		}
		values[metric] = average(points)
	}
	return GroupMetrics{
		RetentionFiveMin: values[types.MetricViewerRetention],
		VMAFAvg:          values[types.MetricVideoVMAF],
		ErrorRate:        values[types.MetricErrorRate],
		LatencyP95MS:     values[types.MetricLatency],
		SelectionEntropy: values[types.MetricSelectionEntropy],
		CuratorApplyRate: values[types.MetricCuratorBudgetUsage],
	}, nil
}

func (c *StoreCollector) SampleSizes(ctx context.Context, start, end time.Time) (SampleSizes, error) {
	canary, err := c.store.QueryByGroup(ctx, types.MetricViewerRetention, start, end, types.GroupCanary)
	if err != nil {
		return SampleSizes{}, err
	}
	control, err := c.store.QueryByGroup(ctx, types.MetricViewerRetention, start, end, types.GroupControl)
	if err != nil {
		return SampleSizes{}, err
	}
	return SampleSizes{Canary: len(canary), Control: len(control), Total: len(canary) + len(control)}, nil
}

func (c *StoreCollector) HasSufficientSamples(ctx context.Context, start, end time.Time, minSamples int) (bool, error) {
	sizes, err := c.SampleSizes(ctx, start, end)
	if err != nil {
		return false, err
	}
	return sizes.Canary >= minSamples && sizes.Control >= minSamples, nil
}

func average(points []timeseries.Point) float64 {
	if len(points) == 0 {
		return 0
	}
	var sum float64
	for _, p := range points {
		sum += p.Value
	}
	return sum / float64(len(points))
}

func valuesOf(points []timeseries.Point) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Value
	}
	return out
}
