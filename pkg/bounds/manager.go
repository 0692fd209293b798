/*
Package bounds implements the sliding bounds manager: the component that
lets each tunable parameter's safe operating range widen gradually while a
parameter proves stable, and snap back sharply the moment a canary
deployment rolls it back. All mutation is owned by a single mutex-guarded
manager type.
*/
package bounds

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/vvtv/autopilot/internal/apperr"
	"github.com/vvtv/autopilot/pkg/log"
	"github.com/vvtv/autopilot/pkg/metrics"
	"github.com/vvtv/autopilot/pkg/types"
)

const component = "bounds"

// FailureSeverity classifies how badly a canary rollback went, scaling the
// contraction rate applied to the offending parameter.
type FailureSeverity string

const (
	SeverityMinor    FailureSeverity = "minor"
	SeverityModerate FailureSeverity = "moderate"
	SeverityGrave    FailureSeverity = "severe"
	SeverityFatal    FailureSeverity = "critical"
)

func (s FailureSeverity) multiplier() float64 {
	switch s {
	case SeverityMinor:
		return 0.5
	case SeverityModerate:
		return 1.0
	case SeverityGrave:
		return 1.5
	case SeverityFatal:
		return 2.0
	default:
		return 1.0
	}
}

// Manager owns every parameter's ParameterBounds and the shared adjustment
// history. All mutating operations take the manager's mutex, giving it a
// single-writer discipline.
type Manager struct {
	mu      sync.Mutex
	cfg     Config
	bounds  map[string]*types.ParameterBounds
	limits  map[string]types.Parameter // absolute min/max, never move
	history []types.BoundsAdjustment
	store   *SnapshotStore
}

// NewManager builds a Manager seeded with params and persists to snapshot
// store store (nil disables persistence, useful in tests).
func NewManager(cfg Config, params []types.Parameter, store *SnapshotStore) *Manager {
	m := &Manager{
		cfg:    cfg,
		bounds: make(map[string]*types.ParameterBounds, len(params)),
		limits: make(map[string]types.Parameter, len(params)),
		store:  store,
	}
	now := time.Now().UTC()
	for _, p := range params {
		m.limits[p.Name] = p
		m.bounds[p.Name] = &types.ParameterBounds{
			ParameterName: p.Name,
			SlidingMin:    p.AbsoluteMin,
			SlidingMax:    p.AbsoluteMax,
			CurrentValue:  p.Value,
			CreatedAt:     now,
			LastUpdated:   now,
			PerformanceScore: 0.5,
		}
	}
	return m
}

// LoadOrNew restores persisted state from store if present, otherwise
// initializes fresh bounds for params.
func LoadOrNew(cfg Config, params []types.Parameter, store *SnapshotStore) (*Manager, error) {
	m := NewManager(cfg, params, store)
	if store == nil {
		return m, nil
	}
	snap, ok, err := store.Load()
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindIO, component, "failed to load bounds snapshot")
	}
	if !ok {
		return m, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, b := range snap.Bounds {
		if _, known := m.limits[name]; known {
			bc := b
			m.bounds[name] = &bc
		}
	}
	m.history = snap.History
	return m, nil
}

func (m *Manager) persistLocked() {
	if m.store == nil {
		return
	}
	snap := Snapshot{Bounds: make(map[string]types.ParameterBounds, len(m.bounds)), History: m.history}
	for name, b := range m.bounds {
		snap.Bounds[name] = *b
	}
	if err := m.store.Save(snap); err != nil {
		log.WithComponent(component).Warn().Err(err).Msg("failed to save bounds snapshot")
	}
}

func (m *Manager) recordAdjustment(a types.BoundsAdjustment) {
	m.history = append(m.history, a)
	if len(m.history) > types.MaxAdjustmentHistory {
		m.history = m.history[len(m.history)-types.MaxAdjustmentHistory:]
	}
	metrics.BoundsAdjustmentsTotal.WithLabelValues(a.ParameterName, string(a.Type)).Inc()
}

// Get returns a copy of the current ParameterBounds for name.
func (m *Manager) Get(name string) (types.ParameterBounds, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bounds[name]
	if !ok {
		return types.ParameterBounds{}, false
	}
	return *b, true
}

// All returns copies of every tracked parameter's bounds.
func (m *Manager) All() map[string]types.ParameterBounds {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]types.ParameterBounds, len(m.bounds))
	for name, b := range m.bounds {
		out[name] = *b
	}
	return out
}

// nearBoundFraction flags a proposed value as a warning when it lands within
// this fraction of either sliding bound, even though it still passes.
const nearBoundFraction = 0.10

// exceedsDailyBiasCap reports whether newValue would move the plan-selection
// bias parameter by more than types.MaxDailyBiasChange in a single change,
// regardless of how wide its sliding bounds currently are.
func exceedsDailyBiasCap(parameter string, newValue, currentValue float64) bool {
	return parameter == types.ParamPlanSelectionBias && math.Abs(newValue-currentValue) > types.MaxDailyBiasChange
}

// Validate reports whether newValue is within the current sliding bounds for
// parameter, and additionally rejects a plan-selection-bias change that
// exceeds its per-day cap regardless of where the sliding bounds sit.
func (m *Manager) Validate(parameter string, newValue float64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bounds[parameter]
	if !ok {
		return false, apperr.New(apperr.KindBoundsViolation, component, fmt.Sprintf("unknown parameter %q", parameter))
	}
	if exceedsDailyBiasCap(parameter, newValue, b.CurrentValue) {
		return false, nil
	}
	return newValue >= b.SlidingMin && newValue <= b.SlidingMax, nil
}

// ValidateComprehensive checks newValue against parameter's immovable
// absolute limits, the plan-selection-bias per-day change cap, and its
// current sliding bounds. A value that falls outside the sliding range is
// not rejected outright: the result carries a clamped AdjustedValue so
// callers can fall back to the nearest in-range value instead of dropping
// the change entirely. A value that lands close to a bound without crossing
// it is passed but flagged with a Warning. Confidence is 1.0 for a clean
// pass, degraded for a warning, and driven to 0 for any outright violation.
func (m *Manager) ValidateComprehensive(parameter string, newValue float64) (types.ValidationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit, ok := m.limits[parameter]
	if !ok {
		return types.ValidationResult{}, apperr.New(apperr.KindBoundsViolation, component, fmt.Sprintf("unknown parameter %q", parameter))
	}
	b := m.bounds[parameter]

	if newValue < limit.AbsoluteMin || newValue > limit.AbsoluteMax {
		return types.ValidationResult{
			Parameter: parameter, Check: "absolute_limits", Passed: false, Confidence: 0,
			Detail: fmt.Sprintf("%.4f outside absolute range [%.4f, %.4f]", newValue, limit.AbsoluteMin, limit.AbsoluteMax),
		}, nil
	}

	if exceedsDailyBiasCap(parameter, newValue, b.CurrentValue) {
		return types.ValidationResult{
			Parameter: parameter, Check: "daily_change_limit", Passed: false, Confidence: 0,
			Detail: fmt.Sprintf("daily bias change %.4f exceeds cap of %.4f", math.Abs(newValue-b.CurrentValue), types.MaxDailyBiasChange),
		}, nil
	}

	if newValue < b.SlidingMin || newValue > b.SlidingMax {
		adjusted := clamp(newValue, b.SlidingMin, b.SlidingMax)
		return types.ValidationResult{
			Parameter: parameter, Check: "sliding_bounds", Passed: false, Confidence: 0.3,
			Detail:        fmt.Sprintf("%.4f outside sliding range [%.4f, %.4f], adjusted to %.4f", newValue, b.SlidingMin, b.SlidingMax, adjusted),
			AdjustedValue: &adjusted,
		}, nil
	}

	res := types.ValidationResult{Parameter: parameter, Check: "sliding_bounds", Passed: true, Confidence: 1.0,
		Detail: fmt.Sprintf("%.4f within sliding range [%.4f, %.4f]", newValue, b.SlidingMin, b.SlidingMax)}

	if width := b.SlidingMax - b.SlidingMin; width > 0 {
		distToMin := (newValue - b.SlidingMin) / width
		distToMax := (b.SlidingMax - newValue) / width
		if distToMin < nearBoundFraction || distToMax < nearBoundFraction {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%.4f is within %.0f%% of a sliding bound", newValue, nearBoundFraction*100))
			res.Confidence = 0.8
		}
	}
	return res, nil
}

// UpdateValue records a new current value for parameter and appends a
// history entry.
func (m *Manager) UpdateValue(parameter string, newValue float64, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bounds[parameter]
	if !ok {
		return apperr.New(apperr.KindBoundsViolation, component, fmt.Sprintf("unknown parameter %q", parameter))
	}
	old := b.CurrentValue
	b.CurrentValue = newValue
	b.LastUpdated = time.Now().UTC()
	b.AppendHistory(types.ChangeHistoryEntry{
		OldValue: old, NewValue: newValue, Reason: reason, Timestamp: b.LastUpdated,
	})
	m.persistLocked()
	return nil
}

// UpdateResult backfills the outcome of a previously-recorded change so
// stability-score and confidence calculations can use it.
func (m *Manager) UpdateResult(parameter string, success bool, impactScore float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bounds[parameter]
	if !ok {
		return apperr.New(apperr.KindBoundsViolation, component, fmt.Sprintf("unknown parameter %q", parameter))
	}
	for i := len(b.History) - 1; i >= 0; i-- {
		if b.History[i].Outcome == "" {
			if success {
				b.History[i].Outcome = "success"
			} else {
				b.History[i].Outcome = "failure"
			}
			break
		}
	}

	alpha := 0.2
	outcome := 0.0
	if success {
		outcome = 1.0
	}
	b.PerformanceScore = b.PerformanceScore*(1-alpha) + outcome*alpha
	_ = impactScore

	b.StabilityDays = stabilityDays(b)
	m.persistLocked()
	return nil
}

func stabilityDays(b *types.ParameterBounds) int {
	if b.LastContraction != nil {
		return int(time.Since(*b.LastContraction).Hours() / 24)
	}
	return int(time.Since(b.CreatedAt).Hours() / 24)
}

// Reset snaps a parameter's sliding bounds back to its absolute limits.
func (m *Manager) Reset(parameter, reason string) (types.BoundsAdjustment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bounds[parameter]
	if !ok {
		return types.BoundsAdjustment{}, apperr.New(apperr.KindBoundsViolation, component, fmt.Sprintf("unknown parameter %q", parameter))
	}
	limit := m.limits[parameter]
	oldMin, oldMax := b.SlidingMin, b.SlidingMax
	now := time.Now().UTC()

	b.SlidingMin, b.SlidingMax = limit.AbsoluteMin, limit.AbsoluteMax
	b.LastUpdated = now
	b.RollbackCount = 0
	b.TotalAdjustments++

	adj := types.BoundsAdjustment{
		ParameterName: parameter, Type: types.AdjustmentReset,
		OldMin: oldMin, OldMax: oldMax, NewMin: b.SlidingMin, NewMax: b.SlidingMax,
		Reason: reason, Timestamp: now,
	}
	m.recordAdjustment(adj)
	m.persistLocked()
	return adj, nil
}

// clampToAbsolute prevents a sliding-bounds expansion/contraction from
// crossing the parameter's immovable absolute limits.
func clampToAbsolute(lo, hi float64, limit types.Parameter) (float64, float64) {
	if lo < limit.AbsoluteMin {
		lo = limit.AbsoluteMin
	}
	if hi > limit.AbsoluteMax {
		hi = limit.AbsoluteMax
	}
	if lo > hi {
		mid := (limit.AbsoluteMin + limit.AbsoluteMax) / 2
		lo, hi = mid, mid
	}
	return lo, hi
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
