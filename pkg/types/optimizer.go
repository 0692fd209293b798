package types

import "time"

// ChangeType classifies why a ParameterChange was proposed.
type ChangeType string

const (
	ChangeOptimization ChangeType = "optimization"
	ChangeCorrection   ChangeType = "correction"
	ChangeExploration  ChangeType = "exploration"
	ChangeRecovery     ChangeType = "recovery"
)

// ExpectedImpact is the optimizer's predicted effect of a parameter change on
// the tracked KPIs.
type ExpectedImpact struct {
	EntropyDelta     float64
	BudgetDelta      float64
	NoveltyDelta     float64
	OverallConfidence float64
}

// ParameterChange is a validated proposal to move a parameter's value.
type ParameterChange struct {
	Parameter  string
	OldValue   float64
	NewValue   float64
	Type       ChangeType
	Confidence float64
	Impact     ExpectedImpact
	Rationale  string
	ProposedAt time.Time
}

// Algorithm identifies which optimization strategy produced a ParameterChange.
type Algorithm string

const (
	AlgorithmConservative Algorithm = "conservative_adjustment"
	AlgorithmGradient     Algorithm = "gradient_descent"
	AlgorithmAdaptive     Algorithm = "adaptive_learning"
	AlgorithmBayesian     Algorithm = "bayesian_optimization"
)

// AttemptOutcome is the recorded result of a previously-applied ParameterChange,
// used by the optimizer's learning loop.
type AttemptOutcome struct {
	Parameter     string
	Timestamp     time.Time
	Predicted     ExpectedImpact
	ActualImpact  float64
	Success       bool
	Closed        bool
}

// OptimizerStatistics is optimizer.statistics()'s return value.
type OptimizerStatistics struct {
	TotalAttempts     int
	SuccessRate       float64
	MeanPredictionAccuracy float64
}
