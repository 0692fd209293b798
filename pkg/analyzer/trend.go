package analyzer

import (
	"math"

	"github.com/vvtv/autopilot/pkg/timeseries"
	"github.com/vvtv/autopilot/pkg/types"
)

// significanceThreshold returns the per-sample least-squares slope magnitude
// a metric must clear before the analyzer calls it Increasing/Decreasing
// rather than Stable. It applies to series of six or more points; shorter
// series use a fixed 5% half-over-half change instead.
func significanceThreshold(metric types.MetricName) float64 {
	switch metric {
	case types.MetricSelectionEntropy:
		return 0.02
	case types.MetricCuratorBudgetUsage:
		return 0.05
	case types.MetricContentNovelty:
		return 0.03
	default:
		return 0.03
	}
}

// linearRegressionSlope computes the least-squares slope of values against
// their index.
func linearRegressionSlope(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}
	var xMean, yMean float64
	for i, v := range values {
		xMean += float64(i)
		yMean += v
	}
	xMean /= n
	yMean /= n

	var numerator, denominator float64
	for i, v := range values {
		x := float64(i)
		numerator += (x - xMean) * (v - yMean)
		denominator += (x - xMean) * (x - xMean)
	}
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}

// trendStabilityScore mirrors calculate_stability_score: a coefficient of
// variation term blended with trend-consistency across successive samples.
func trendStabilityScore(values []float64, direction types.TrendDirection) float64 {
	if len(values) < 2 {
		return 0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	stdDev := math.Sqrt(variance)

	cv := stdDev
	if mean != 0 {
		cv = stdDev / math.Abs(mean)
	}

	trendConsistency := 0.5
	if len(values) >= 4 {
		consistent, total := 0, 0
		for i := 1; i < len(values); i++ {
			change := values[i] - values[i-1]
			total++
			switch direction {
			case types.TrendIncreasing:
				if change > 0 {
					consistent++
				}
			case types.TrendDecreasing:
				if change < 0 {
					consistent++
				}
			case types.TrendStable:
				if math.Abs(change) < math.Abs(mean)*0.05 {
					consistent++
				}
			}
		}
		if total > 0 {
			trendConsistency = float64(consistent) / float64(total)
		}
	}

	cvScore := 1.0 / (1.0 + cv)
	return clamp01(cvScore*0.6 + trendConsistency*0.4)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// analyzeTrend computes a TrendAnalysis for one metric's points.
func analyzeTrend(metric types.MetricName, points []timeseries.Point) types.TrendAnalysis {
	if len(points) == 0 {
		return types.TrendAnalysis{Metric: metric, Direction: types.TrendStable}
	}

	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	current := values[len(values)-1]

	var direction types.TrendDirection
	var strength float64

	switch {
	case len(values) >= 6:
		slope := linearRegressionSlope(values)
		strength = math.Abs(slope)
		threshold := significanceThreshold(metric)
		switch {
		case strength < threshold:
			direction = types.TrendStable
		case slope > 0:
			direction = types.TrendIncreasing
		default:
			direction = types.TrendDecreasing
		}
	case len(values) >= 2:
		mid := len(values) / 2
		firstHalf := average(values[:mid])
		secondHalf := average(values[mid:])
		change := 0.0
		if firstHalf != 0 {
			change = (secondHalf - firstHalf) / firstHalf
		}
		switch {
		case math.Abs(change) < 0.05:
			direction, strength = types.TrendStable, math.Abs(change)
		case change > 0:
			direction, strength = types.TrendIncreasing, change
		default:
			direction, strength = types.TrendDecreasing, math.Abs(change)
		}
	default:
		direction = types.TrendStable
	}

	return types.TrendAnalysis{
		Metric: metric, CurrentValue: current, Direction: direction,
		Strength: strength, StabilityScore: trendStabilityScore(values, direction),
		PointCount: len(values),
	}
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
