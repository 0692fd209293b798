/*
Package stats implements the statistical tests the canary deployment manager
uses to compare canary and control cohorts: Welch's t-test, the Mann-Whitney U
test, a bootstrap confidence interval, Cohen's d effect size, Fisher's method
for combining p-values across KPIs, and power analysis. It uses gonum's exact
Student's-t and Normal distributions rather than lookup-table approximations.
*/
package stats

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrInsufficientSamples is returned when a test is asked to run on fewer
// than two samples per group.
var ErrInsufficientSamples = errors.New("need at least 2 samples per group")

// TTestResult is a Welch's t-test outcome.
type TTestResult struct {
	TStatistic          float64
	PValue              float64
	DegreesOfFreedom    float64
	ConfidenceInterval95 [2]float64
	IsSignificant       bool
	Mean1, Mean2        float64
}

// WelchTTest performs Welch's unequal-variance t-test between sample1 and
// sample2, using gonum's exact Student's-t CDF for the p-value.
func WelchTTest(sample1, sample2 []float64, alpha float64) (TTestResult, error) {
	n1, n2 := len(sample1), len(sample2)
	if n1 < 2 || n2 < 2 {
		return TTestResult{}, ErrInsufficientSamples
	}

	mean1, var1 := stat.MeanVariance(sample1, nil)
	mean2, var2 := stat.MeanVariance(sample2, nil)

	se := math.Sqrt(var1/float64(n1) + var2/float64(n2))
	tStatistic := (mean1 - mean2) / se

	df := math.Pow(var1/float64(n1)+var2/float64(n2), 2) /
		(math.Pow(var1/float64(n1), 2)/float64(n1-1) + math.Pow(var2/float64(n2), 2)/float64(n2-1))

	pValue := studentsTTwoTailed(math.Abs(tStatistic), df)

	tCritical := studentsTCriticalValue(df, alpha)
	marginOfError := tCritical * se
	diff := mean1 - mean2

	return TTestResult{
		TStatistic:       tStatistic,
		PValue:           pValue,
		DegreesOfFreedom: df,
		ConfidenceInterval95: [2]float64{diff - marginOfError, diff + marginOfError},
		IsSignificant:    pValue < alpha,
		Mean1:            mean1,
		Mean2:            mean2,
	}, nil
}

// studentsTTwoTailed returns the two-tailed p-value for |t| with df degrees
// of freedom, using gonum's Student's-t distribution directly instead of a
// fixed lookup table.
func studentsTTwoTailed(absT, df float64) float64 {
	if df <= 0 {
		return 1.0
	}
	d := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return 2.0 * d.Survival(absT)
}

// studentsTCriticalValue returns the two-tailed critical value for the given
// significance level and degrees of freedom.
func studentsTCriticalValue(df, alpha float64) float64 {
	if df <= 0 {
		return 1.96
	}
	d := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return d.Quantile(1.0 - alpha/2.0)
}

// MannWhitneyResult is a Mann-Whitney U test outcome.
type MannWhitneyResult struct {
	UStatistic    float64
	PValue        float64
	IsSignificant bool
}

// MannWhitneyUTest performs the non-parametric rank-sum test between two
// samples, with a normal approximation for the p-value.
func MannWhitneyUTest(sample1, sample2 []float64, alpha float64) (MannWhitneyResult, error) {
	n1, n2 := len(sample1), len(sample2)
	if n1 < 2 || n2 < 2 {
		return MannWhitneyResult{}, ErrInsufficientSamples
	}

	type labeled struct {
		value float64
		group int
	}
	combined := make([]labeled, 0, n1+n2)
	for _, v := range sample1 {
		combined = append(combined, labeled{v, 1})
	}
	for _, v := range sample2 {
		combined = append(combined, labeled{v, 2})
	}
	sort.Slice(combined, func(i, j int) bool { return combined[i].value < combined[j].value })

	ranks := make([]float64, len(combined))
	i := 0
	for i < len(combined) {
		j := i
		for j < len(combined) && combined[j].value == combined[i].value {
			j++
		}
		avgRank := float64(i+j+1) / 2.0
		for k := i; k < j; k++ {
			ranks[k] = avgRank
		}
		i = j
	}

	r1 := 0.0
	for idx, c := range combined {
		if c.group == 1 {
			r1 += ranks[idx]
		}
	}

	u1 := r1 - float64(n1*(n1+1))/2.0
	u2 := float64(n1*n2) - u1
	uStatistic := math.Min(u1, u2)

	meanU := float64(n1*n2) / 2.0
	stdU := math.Sqrt(float64(n1*n2*(n1+n2+1)) / 12.0)
	zScore := (uStatistic - meanU) / stdU

	normal := distuv.Normal{Mu: 0, Sigma: 1}
	pValue := 2.0 * normal.Survival(math.Abs(zScore))

	return MannWhitneyResult{
		UStatistic:    uStatistic,
		PValue:        pValue,
		IsSignificant: pValue < alpha,
	}, nil
}

// BootstrapResult is a bootstrap confidence interval test outcome.
type BootstrapResult struct {
	MeanDifference       float64
	ConfidenceInterval95 [2]float64
	BootstrapSamples     int
}

// BootstrapTest estimates a 95% confidence interval on the difference of
// means by resampling both groups nBootstrap times. next(n) must return a
// uniform index in [0, n) from a source the caller supplies and seeds, so
// results are reproducible given the same seed.
func BootstrapTest(sample1, sample2 []float64, nBootstrap int, next func(n int) int) (BootstrapResult, error) {
	if len(sample1) < 2 || len(sample2) < 2 {
		return BootstrapResult{}, ErrInsufficientSamples
	}

	differences := make([]float64, nBootstrap)
	for b := 0; b < nBootstrap; b++ {
		var sum1, sum2 float64
		for i := 0; i < len(sample1); i++ {
			sum1 += sample1[next(len(sample1))]
		}
		for i := 0; i < len(sample2); i++ {
			sum2 += sample2[next(len(sample2))]
		}
		differences[b] = sum1/float64(len(sample1)) - sum2/float64(len(sample2))
	}

	sort.Float64s(differences)
	meanDiff := stat.Mean(differences, nil)

	lowerIdx := int(float64(nBootstrap) * 0.025)
	upperIdx := int(float64(nBootstrap) * 0.975)
	if upperIdx >= len(differences) {
		upperIdx = len(differences) - 1
	}

	return BootstrapResult{
		MeanDifference: meanDiff,
		ConfidenceInterval95: [2]float64{differences[lowerIdx], differences[upperIdx]},
		BootstrapSamples: nBootstrap,
	}, nil
}

// CohensD returns the standardized effect size between two samples using the
// pooled standard deviation.
func CohensD(sample1, sample2 []float64) float64 {
	n1, n2 := len(sample1), len(sample2)
	mean1 := stat.Mean(sample1, nil)
	mean2 := stat.Mean(sample2, nil)

	var ss1, ss2 float64
	for _, x := range sample1 {
		ss1 += (x - mean1) * (x - mean1)
	}
	for _, x := range sample2 {
		ss2 += (x - mean2) * (x - mean2)
	}

	pooledVariance := (ss1 + ss2) / float64(n1+n2-2)
	pooledStdDev := math.Sqrt(pooledVariance)
	if pooledStdDev == 0 {
		return 0
	}
	return (mean1 - mean2) / pooledStdDev
}

// CombineFisher combines independent p-values using Fisher's method with an
// exact chi-squared survival function.
func CombineFisher(pValues []float64) float64 {
	if len(pValues) == 0 {
		return 1.0
	}
	chiSquare := 0.0
	for _, p := range pValues {
		if p <= 0 {
			p = 1e-300
		}
		chiSquare += -2.0 * math.Log(p)
	}
	df := 2.0 * float64(len(pValues))
	chi2 := distuv.ChiSquared{K: df}
	return chi2.Survival(chiSquare)
}

// PowerAnalysisResult is the outcome of a statistical power computation.
type PowerAnalysisResult struct {
	CurrentPower           float64
	RequiredSampleSize80   int
	RequiredSampleSize90   int
	MinimumDetectableEffect float64
}

// PowerAnalysis computes the current statistical power and sample sizes
// required for 80%/90% power, using gonum's exact normal quantile function.
func PowerAnalysis(n1, n2 int, effectSize, alpha float64) PowerAnalysisResult {
	normal := distuv.Normal{Mu: 0, Sigma: 1}
	zAlpha := normal.Quantile(1.0 - alpha/2.0)

	harmonicN := func(a, b int) float64 {
		return 2.0 / (1.0/float64(a) + 1.0/float64(b))
	}

	nHarmonic := harmonicN(n1, n2)
	delta := effectSize * math.Sqrt(nHarmonic/2.0)
	currentPower := normal.CDF(delta - zAlpha)

	requiredSize := func(power float64) int {
		zBeta := normal.Quantile(power)
		n := 2.0 * math.Pow((zAlpha+zBeta)/effectSize, 2)
		return int(math.Ceil(n))
	}

	zBeta80 := normal.Quantile(0.8)
	mde := (zAlpha + zBeta80) / math.Sqrt(nHarmonic/2.0)

	return PowerAnalysisResult{
		CurrentPower:         currentPower,
		RequiredSampleSize80: requiredSize(0.8),
		RequiredSampleSize90: requiredSize(0.9),
		MinimumDetectableEffect: mde,
	}
}
