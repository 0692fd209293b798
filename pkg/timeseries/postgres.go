package timeseries

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/jmoiron/sqlx"
	"github.com/sony/gobreaker"

	"github.com/vvtv/autopilot/internal/apperr"
	"github.com/vvtv/autopilot/pkg/log"
	"github.com/vvtv/autopilot/pkg/metrics"
	"github.com/vvtv/autopilot/pkg/types"
)

const component = "timeseries"

// PostgresStore is the production Store backend: business metrics land in a
// single append-only table, queried by metric name and time range. A
// sony/gobreaker circuit breaker wraps every call so a struggling database
// fails fast with an IO-class error (which pauses the cycle controller)
// rather than hanging a cycle.
type PostgresStore struct {
	db *sqlx.DB
	cb *gobreaker.CircuitBreaker
}

// NewPostgresStore opens a connection pool against dsn and wraps it with a
// circuit breaker that opens after failureThreshold consecutive failures.
func NewPostgresStore(dsn string, failureThreshold uint32) (*PostgresStore, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to timeseries database: %w", err)
	}

	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply timeseries schema: %w", err)
	}

	if failureThreshold == 0 {
		failureThreshold = 5
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "timeseries-postgres",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithComponent(component).Warn().
				Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state change")
			metrics.CircuitBreakerStateChangesTotal.WithLabelValues("timeseries", to.String()).Inc()
		},
	})

	return &PostgresStore{db: db, cb: cb}, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS autopilot_metric_samples (
	id BIGSERIAL PRIMARY KEY,
	metric_name TEXT NOT NULL,
	sample_value DOUBLE PRECISION NOT NULL,
	cohort_group TEXT NOT NULL DEFAULT '',
	sampled_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_autopilot_metric_samples_lookup
	ON autopilot_metric_samples (metric_name, sampled_at);
`

type sampleRow struct {
	Value   float64   `db:"sample_value"`
	Group   string    `db:"cohort_group"`
	Sampled time.Time `db:"sampled_at"`
}

func (s *PostgresStore) queryRows(ctx context.Context, metric types.MetricName, start, end time.Time, group types.Group) ([]Point, error) {
	result, err := s.cb.Execute(func() (interface{}, error) {
		var rows []sampleRow
		query := `SELECT sample_value, cohort_group, sampled_at FROM autopilot_metric_samples
		          WHERE metric_name = $1 AND sampled_at >= $2 AND sampled_at < $3`
		args := []interface{}{string(metric), start, end}
		if group != "" {
			query += " AND cohort_group = $4"
			args = append(args, string(group))
		}
		query += " ORDER BY sampled_at ASC"
		if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
			return nil, err
		}
		return rows, nil
	})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindIO, component, "timeseries query failed")
	}

	rows := result.([]sampleRow)
	points := make([]Point, len(rows))
	for i, r := range rows {
		points[i] = Point{Timestamp: r.Sampled, Value: r.Value, Group: types.Group(r.Group)}
	}
	return points, nil
}

func (s *PostgresStore) Query(ctx context.Context, metric types.MetricName, start, end time.Time) ([]Point, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.TimeSeriesQueryDuration)
	return s.queryRows(ctx, metric, start, end, "")
}

func (s *PostgresStore) QueryByGroup(ctx context.Context, metric types.MetricName, start, end time.Time, group types.Group) ([]Point, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.TimeSeriesQueryDuration)
	return s.queryRows(ctx, metric, start, end, group)
}

func (s *PostgresStore) Record(ctx context.Context, metric types.MetricName, p Point) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO autopilot_metric_samples (metric_name, sample_value, cohort_group, sampled_at) VALUES ($1, $2, $3, $4)`,
			string(metric), p.Value, string(p.Group), p.Timestamp)
		return nil, err
	})
	if err != nil {
		return apperr.Wrap(err, apperr.KindIO, component, "timeseries record failed")
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
