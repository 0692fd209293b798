package timeseries

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vvtv/autopilot/pkg/types"
)

// MemoryStore is an in-process Store, used by tests and by the canary
// manager's own unit tests in place of a live Postgres instance.
type MemoryStore struct {
	mu     sync.RWMutex
	points map[types.MetricName][]Point
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{points: make(map[types.MetricName][]Point)}
}

func (s *MemoryStore) Query(_ context.Context, metric types.MetricName, start, end time.Time) ([]Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterRange(s.points[metric], start, end, ""), nil
}

func (s *MemoryStore) QueryByGroup(_ context.Context, metric types.MetricName, start, end time.Time, group types.Group) ([]Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterRange(s.points[metric], start, end, group), nil
}

func filterRange(points []Point, start, end time.Time, group types.Group) []Point {
	var out []Point
	for _, p := range points {
		if p.Timestamp.Before(start) || !p.Timestamp.Before(end) {
			continue
		}
		if group != "" && p.Group != group {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

func (s *MemoryStore) Record(_ context.Context, metric types.MetricName, p Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points[metric] = append(s.points[metric], p)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
