package types

import "time"

// ParameterKind declares the semantic type of a tunable parameter, used by the
// bounds manager and optimizer to pick type-appropriate validation and step
// calculations.
type ParameterKind string

const (
	ParameterKindProbability ParameterKind = "probability"
	ParameterKindCount       ParameterKind = "count"
	ParameterKindRatio       ParameterKind = "ratio"
	ParameterKindFreeFloat   ParameterKind = "free_float"
)

// Parameter names known to the autopilot core. Business-logic rules and
// expected-impact sensitivities are keyed on these exact names.
const (
	ParamSelectionTemperature       = "selection_temperature"
	ParamSelectionTopK              = "selection_top_k"
	ParamCuratorConfidenceThreshold = "curator_confidence_threshold"
	ParamPlanSelectionBias          = "plan_selection_bias"
)

// MaxDailyBiasChange caps how far ParamPlanSelectionBias may move in a
// single proposed change, measured against its current value, regardless of
// where the sliding bounds currently sit.
const MaxDailyBiasChange = 0.05

// Parameter is a named tunable with a scalar value, a semantic type, and the
// absolute limits that never move regardless of how the sliding bounds adapt.
type Parameter struct {
	Name         string
	Kind         ParameterKind
	Value        float64
	AbsoluteMin  float64
	AbsoluteMax  float64
}

// KnownParameters returns the four parameters the autopilot tunes, with their
// absolute bounds and defaults.
func KnownParameters() []Parameter {
	return []Parameter{
		{Name: ParamSelectionTemperature, Kind: ParameterKindFreeFloat, Value: 0.85, AbsoluteMin: 0.01, AbsoluteMax: 5.0},
		{Name: ParamSelectionTopK, Kind: ParameterKindCount, Value: 12.0, AbsoluteMin: 1.0, AbsoluteMax: 100.0},
		{Name: ParamCuratorConfidenceThreshold, Kind: ParameterKindProbability, Value: 0.62, AbsoluteMin: 0.0, AbsoluteMax: 1.0},
		{Name: ParamPlanSelectionBias, Kind: ParameterKindRatio, Value: 0.0, AbsoluteMin: -1.0, AbsoluteMax: 1.0},
	}
}

// ChangeHistoryEntry is one recorded mutation of a parameter's value, kept in
// ParameterBounds.History (capped at MaxChangeHistory).
type ChangeHistoryEntry struct {
	OldValue  float64
	NewValue  float64
	Reason    string
	Outcome   string
	Timestamp time.Time
}

// MaxChangeHistory bounds how many ChangeHistoryEntry records ParameterBounds
// retains.
const MaxChangeHistory = 100

// ParameterBounds is the sliding-bounds manager's per-parameter state.
type ParameterBounds struct {
	ParameterName    string
	SlidingMin       float64
	SlidingMax       float64
	CurrentValue     float64
	CreatedAt        time.Time
	LastUpdated      time.Time
	LastExpansion    *time.Time
	LastContraction  *time.Time
	StabilityDays    int
	RollbackCount    int
	TotalAdjustments int
	PerformanceScore float64
	History          []ChangeHistoryEntry
}

// AppendHistory records a change, evicting the oldest entry once the history
// is at capacity (FIFO, bounded at MaxChangeHistory entries).
func (b *ParameterBounds) AppendHistory(e ChangeHistoryEntry) {
	b.History = append(b.History, e)
	if len(b.History) > MaxChangeHistory {
		b.History = b.History[len(b.History)-MaxChangeHistory:]
	}
}
