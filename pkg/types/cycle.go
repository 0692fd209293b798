package types

import "time"

// CycleStatus is the outcome of one control-loop cycle.
type CycleStatus string

const (
	CycleCompleted CycleStatus = "completed"
	CycleSkipped   CycleStatus = "skipped"
	CyclePaused    CycleStatus = "paused"
	CycleFailed    CycleStatus = "failed"
)

// ValidationResult is a single parameter change's comprehensive bounds check,
// attached to a CycleRecord for audit. AdjustedValue is set when the proposed
// value was clamped back inside the sliding range rather than rejected
// outright; Warnings flags non-fatal concerns (e.g. landing close to a
// bound); Confidence is penalized by each violation encountered.
type ValidationResult struct {
	Parameter     string
	Check         string
	Passed        bool
	Detail        string
	AdjustedValue *float64
	Warnings      []string
	Confidence    float64
}

// DeploymentOutcome is what the cycle controller did with the canary manager
// on this cycle, if anything.
type DeploymentOutcome struct {
	DeploymentID string
	Action       string
	Status       DeploymentStatus
}

// CycleRecord is the cycle controller's append-only audit entry for one run
// of the analyze-propose-deploy-progress pipeline.
type CycleRecord struct {
	ID               string
	StartedAt        time.Time
	FinishedAt       time.Time
	Status           CycleStatus
	Analysis         *MetricsAnalysis
	ProposedChanges  []ParameterChange
	Validations      []ValidationResult
	AppliedChanges   []ParameterChange
	BoundsAdjustments []BoundsAdjustment
	Deployments      []DeploymentOutcome
	SkipReason       string
	Error            string
}
