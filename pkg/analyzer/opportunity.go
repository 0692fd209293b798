package analyzer

import (
	"fmt"
	"math"
	"sort"

	"github.com/vvtv/autopilot/pkg/types"
)

// discoverOpportunities runs every per-metric and cross-metric heuristic and
// returns the top 5 ranked by confidence x |expected impact|.
func discoverOpportunities(trends map[types.MetricName]types.TrendAnalysis) []types.OptimizationOpportunity {
	var opportunities []types.OptimizationOpportunity

	entropy := trends[types.MetricSelectionEntropy]
	budget := trends[types.MetricCuratorBudgetUsage]
	novelty := trends[types.MetricContentNovelty]

	opportunities = append(opportunities, entropyOpportunities(entropy)...)
	opportunities = append(opportunities, budgetOpportunities(budget)...)
	opportunities = append(opportunities, noveltyOpportunities(novelty)...)
	opportunities = append(opportunities, crossMetricOpportunities(entropy, budget, novelty)...)

	sort.Slice(opportunities, func(i, j int) bool {
		scoreI := opportunities[i].Confidence * math.Abs(opportunities[i].ExpectedImpact)
		scoreJ := opportunities[j].Confidence * math.Abs(opportunities[j].ExpectedImpact)
		return scoreI > scoreJ
	})
	if len(opportunities) > 5 {
		opportunities = opportunities[:5]
	}
	return opportunities
}

func entropyOpportunities(t types.TrendAnalysis) []types.OptimizationOpportunity {
	var out []types.OptimizationOpportunity

	if t.CurrentValue < 0.4 && t.StabilityScore > 0.7 {
		confidence := clamp01(t.StabilityScore * 0.8)
		tempIncrease := 0.05 * (0.4 - t.CurrentValue) / 0.4
		out = append(out, types.OptimizationOpportunity{
			Parameter: types.ParamSelectionTemperature, CurrentValue: 0.85,
			SuggestedValue: math.Min(0.85+tempIncrease, 1.2),
			ExpectedImpact: tempIncrease * 2.0, Confidence: confidence,
			Rationale: fmt.Sprintf("low entropy (%.3f) with high stability (%.3f) suggests insufficient exploration", t.CurrentValue, t.StabilityScore),
		})
	}

	if t.CurrentValue > 0.8 && t.Direction == types.TrendDecreasing {
		confidence := clamp01(t.Strength * 0.6)
		topKAdjustment := math.Round((t.CurrentValue - 0.7) * 10.0)
		out = append(out, types.OptimizationOpportunity{
			Parameter: types.ParamSelectionTopK, CurrentValue: 12.0,
			SuggestedValue: math.Max(12.0-topKAdjustment, 5.0),
			ExpectedImpact: -0.1, Confidence: confidence,
			Rationale: fmt.Sprintf("high entropy (%.3f) with decreasing trend suggests need for focus", t.CurrentValue),
		})
	}
	return out
}

func budgetOpportunities(t types.TrendAnalysis) []types.OptimizationOpportunity {
	var out []types.OptimizationOpportunity

	if t.CurrentValue > 0.75 && t.Direction == types.TrendIncreasing {
		confidence := clamp01(t.Strength * t.StabilityScore * 0.8)
		thresholdIncrease := 0.02 * (t.CurrentValue - 0.75) / 0.25
		out = append(out, types.OptimizationOpportunity{
			Parameter: types.ParamCuratorConfidenceThreshold, CurrentValue: 0.62,
			SuggestedValue: math.Min(0.62+thresholdIncrease, 0.75),
			ExpectedImpact: -thresholdIncrease * 5.0, Confidence: confidence,
			Rationale: fmt.Sprintf("high budget usage (%.1f%%) with increasing trend suggests threshold too low", t.CurrentValue*100),
		})
	}

	if t.CurrentValue < 0.3 && t.Direction == types.TrendStable {
		confidence := clamp01(t.StabilityScore * 0.6)
		thresholdDecrease := 0.01 * (0.3 - t.CurrentValue) / 0.3
		out = append(out, types.OptimizationOpportunity{
			Parameter: types.ParamCuratorConfidenceThreshold, CurrentValue: 0.62,
			SuggestedValue: math.Max(0.62-thresholdDecrease, 0.45),
			ExpectedImpact: thresholdDecrease * 3.0, Confidence: confidence,
			Rationale: fmt.Sprintf("low budget usage (%.1f%%) suggests opportunity for more aggressive curation", t.CurrentValue*100),
		})
	}
	return out
}

func noveltyOpportunities(t types.TrendAnalysis) []types.OptimizationOpportunity {
	var out []types.OptimizationOpportunity

	if t.CurrentValue < 0.2 && t.StabilityScore > 0.6 {
		out = append(out, types.OptimizationOpportunity{
			Parameter: types.ParamPlanSelectionBias, CurrentValue: 0.0, SuggestedValue: 0.02,
			ExpectedImpact: 0.05, Confidence: clamp01(t.StabilityScore * 0.7),
			Rationale: fmt.Sprintf("low novelty (%.3f) suggests need for more diverse content selection", t.CurrentValue),
		})
	}

	if t.CurrentValue > 0.6 && t.Direction == types.TrendDecreasing {
		out = append(out, types.OptimizationOpportunity{
			Parameter: types.ParamPlanSelectionBias, CurrentValue: 0.02, SuggestedValue: 0.0,
			ExpectedImpact: -0.03, Confidence: clamp01(t.Strength * 0.5),
			Rationale: fmt.Sprintf("high novelty (%.3f) with decreasing trend suggests over-diversification", t.CurrentValue),
		})
	}
	return out
}

func crossMetricOpportunities(entropy, budget, novelty types.TrendAnalysis) []types.OptimizationOpportunity {
	var out []types.OptimizationOpportunity

	if entropy.CurrentValue < 0.4 && budget.CurrentValue > 0.7 {
		confidence := clamp01((entropy.StabilityScore+budget.StabilityScore)/2.0*0.6)
		out = append(out, types.OptimizationOpportunity{
			Parameter: types.ParamSelectionTemperature, CurrentValue: 0.85, SuggestedValue: 0.95,
			ExpectedImpact: 0.08, Confidence: confidence,
			Rationale: "low entropy with high budget usage suggests need for balanced exploration",
		})
	}

	if novelty.CurrentValue > 0.5 && entropy.CurrentValue < 0.3 {
		out = append(out, types.OptimizationOpportunity{
			Parameter: types.ParamSelectionTopK, CurrentValue: 12.0, SuggestedValue: 15.0,
			ExpectedImpact: 0.05, Confidence: 0.4,
			Rationale: "high novelty with low entropy suggests need for broader candidate consideration",
		})
	}
	return out
}
