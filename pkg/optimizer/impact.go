package optimizer

import (
	"math"

	"github.com/vvtv/autopilot/pkg/types"
)

// calculateExpectedImpact predicts how a parameter change will move the
// tracked KPIs, using a per-parameter sensitivity table.
func calculateExpectedImpact(parameter string, current, newValue float64, analysis *types.MetricsAnalysis) types.ExpectedImpact {
	denom := math.Max(math.Abs(current), 0.1)
	changeMagnitude := math.Abs(newValue-current) / denom

	var entropyDelta, budgetDelta, noveltyDelta float64
	change := newValue - current

	switch parameter {
	case types.ParamSelectionTemperature:
		entropyDelta = change * 0.3
		budgetDelta = -change * 0.1
		noveltyDelta = change * 0.2

	case types.ParamSelectionTopK:
		entropyDelta = change * 0.02
		budgetDelta = change * 0.01

	case types.ParamCuratorConfidenceThreshold:
		budgetDelta = -change * 2.0
		entropyDelta = change * 0.1

	case types.ParamPlanSelectionBias:
		noveltyDelta = change * 1.0
		entropyDelta = math.Abs(change) * 0.1
	}

	dataQualityFactor := 0.5
	if analysis.DataQuality.HasSufficientData {
		dataQualityFactor = 1.0
	}
	adjustment := analysis.Confidence * dataQualityFactor

	return types.ExpectedImpact{
		EntropyDelta:      entropyDelta * adjustment,
		BudgetDelta:       budgetDelta * adjustment,
		NoveltyDelta:      noveltyDelta * adjustment,
		OverallConfidence: analysis.Confidence * math.Min(changeMagnitude, 1.0),
	}
}
