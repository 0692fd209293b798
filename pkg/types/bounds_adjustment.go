package types

import "time"

// AdjustmentType classifies a BoundsAdjustment.
type AdjustmentType string

const (
	AdjustmentExpansion   AdjustmentType = "expansion"
	AdjustmentContraction AdjustmentType = "contraction"
	AdjustmentAntiWindup  AdjustmentType = "anti_windup"
	AdjustmentReset       AdjustmentType = "reset"
)

// BoundsAdjustment is one audited mutation of a parameter's sliding range.
type BoundsAdjustment struct {
	ParameterName string
	Type          AdjustmentType
	OldMin        float64
	OldMax        float64
	NewMin        float64
	NewMax        float64
	Rate          float64
	Reason        string
	Timestamp     time.Time
}

// MaxAdjustmentHistory is the FIFO cap on the bounds manager's adjustment log.
const MaxAdjustmentHistory = 1000

// BoundsRecommendationType is the bounds manager's own recommendation enum;
// kept distinct from canary's RecommendationType because the two enums name
// unrelated sets of actions.
type BoundsRecommendationType string

const (
	RecommendExpandBounds           BoundsRecommendationType = "expand_bounds"
	RecommendContractBounds         BoundsRecommendationType = "contract_bounds"
	RecommendResetBounds            BoundsRecommendationType = "reset_bounds"
	RecommendIncreaseStabilityPeriod BoundsRecommendationType = "increase_stability_period"
	RecommendDecreaseExpansionRate  BoundsRecommendationType = "decrease_expansion_rate"
	RecommendEnableAntiWindup       BoundsRecommendationType = "enable_anti_windup"
	RecommendInvestigateOscillation BoundsRecommendationType = "investigate_oscillation"
)

// OscillationRecommendation is the verdict of the oscillation detector.
type OscillationRecommendation string

const (
	OscillationContinue   OscillationRecommendation = "continue"
	OscillationMonitor    OscillationRecommendation = "monitor"
	OscillationReduceRate OscillationRecommendation = "reduce_rate"
	OscillationPause      OscillationRecommendation = "pause"
)

// OscillationReport is the oscillation detector's return value.
type OscillationReport struct {
	ParameterName   string
	IsOscillating   bool
	AlternationRate float64
	Recommendation  OscillationRecommendation
}

// StabilityClass buckets a parameter in the bounds adjustment report.
type StabilityClass string

const (
	StabilityMostStable    StabilityClass = "most_stable"
	StabilityLeastStable   StabilityClass = "least_stable"
	StabilityOscillating   StabilityClass = "oscillating"
	StabilityNeedsAttention StabilityClass = "needs_attention"
)

// ParameterStabilityReport is one parameter's entry in an AdjustmentReport.
type ParameterStabilityReport struct {
	ParameterName   string
	Expansions      int
	Contractions    int
	AntiWindups     int
	Resets          int
	StabilityScore  float64
	Class           StabilityClass
	Recommendation  BoundsRecommendationType
}

// AdjustmentReport summarizes adjustments across all parameters over a window.
type AdjustmentReport struct {
	Start, End time.Time
	ByParameter map[string]ParameterStabilityReport
}
