package analyzer

import "github.com/vvtv/autopilot/pkg/types"

// analysisConfidence blends average stability, trend clarity, opportunity
// quality, and cross-metric consistency into one overall score.
func analysisConfidence(trends map[types.MetricName]types.TrendAnalysis, opportunities []types.OptimizationOpportunity, crossMetric float64) float64 {
	var avgStability, avgStrength float64
	n := 0
	for _, t := range trends {
		avgStability += t.StabilityScore
		avgStrength += t.Strength
		n++
	}
	if n > 0 {
		avgStability /= float64(n)
		avgStrength /= float64(n)
	}

	opportunityConfidence := 0.3
	if len(opportunities) > 0 {
		var sum float64
		for _, o := range opportunities {
			sum += o.Confidence
		}
		opportunityConfidence = sum / float64(len(opportunities))
	}

	return clamp01(avgStability*0.4 + avgStrength*0.3 + opportunityConfidence*0.2 + crossMetric*0.1)
}

// crossMetricConsistency checks whether entropy/budget/novelty are moving in
// ways consistent with the domain's expected relationships.
func crossMetricConsistency(entropy, budget, novelty types.TrendAnalysis) float64 {
	score := 0.0
	checks := 0.0

	switch {
	case entropy.CurrentValue > 0.6 && budget.CurrentValue < 0.4:
		score += 1.0
	case entropy.CurrentValue < 0.4 && budget.CurrentValue > 0.6:
		score += 1.0
	case absf(entropy.CurrentValue-0.5) < 0.1 && absf(budget.CurrentValue-0.5) < 0.1:
		score += 0.5
	}
	checks++

	correlation := (entropy.CurrentValue - 0.5) * (novelty.CurrentValue - 0.5)
	if correlation > 0 {
		if correlation > 1 {
			correlation = 1
		}
		score += correlation
	}
	checks++

	directions := []types.TrendDirection{entropy.Direction, budget.Direction, novelty.Direction}
	counts := map[types.TrendDirection]int{}
	for _, d := range directions {
		counts[d]++
	}
	maxCount := 0
	for _, c := range counts {
		if c > maxCount {
			maxCount = c
		}
	}
	score += float64(maxCount) / float64(len(directions))
	checks++

	if checks == 0 {
		return 0.5
	}
	return score / checks
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
