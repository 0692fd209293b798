/*
Package timeseries defines the autopilot's external metrics-store dependency:
the read path the analyzer and canary manager use to pull KPI samples, and
a write path (Record) that stores samples, optionally tagged with their cohort.
Concrete backends (Postgres via pgx/sqlx, or an in-memory store for tests)
live alongside this interface.
*/
package timeseries

import (
	"context"
	"time"

	"github.com/vvtv/autopilot/pkg/types"
)

// Point is one sampled value of a metric at a point in time, optionally
// tagged with the canary/control group that produced it.
type Point struct {
	Timestamp time.Time
	Value     float64
	Group     types.Group // "" for untagged (non-canary) samples
}

// Store is the metrics store's external dependency contract.
type Store interface {
	// Query returns every Point recorded for metric in [start, end), ordered
	// by timestamp ascending.
	Query(ctx context.Context, metric types.MetricName, start, end time.Time) ([]Point, error)

	// QueryByGroup returns Points for metric in [start, end) restricted to
	// the given cohort, used by the canary manager to build per-group
	// samples for statistical testing.
	QueryByGroup(ctx context.Context, metric types.MetricName, start, end time.Time, group types.Group) ([]Point, error)

	// Record appends a sample, optionally tagged with a canary/control group.
	Record(ctx context.Context, metric types.MetricName, p Point) error

	// Close releases the store's underlying connection or file handles.
	Close() error
}
