package optimizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvtv/autopilot/pkg/bounds"
	"github.com/vvtv/autopilot/pkg/types"
)

func newTestManager() *bounds.Manager {
	return bounds.NewManager(bounds.DefaultConfig(), types.KnownParameters(), nil)
}

func TestNewSeedsCurrentValuesFromParameters(t *testing.T) {
	opt := New(DefaultConfig(), types.KnownParameters())
	assert.Equal(t, 0.85, opt.current[types.ParamSelectionTemperature])
	assert.Empty(t, opt.history)
}

func TestProposeReturnsNilWhenNoOpportunityMeetsConfidence(t *testing.T) {
	opt := New(DefaultConfig(), types.KnownParameters())
	mgr := newTestManager()
	analysis := &types.MetricsAnalysis{
		Confidence:  0.9,
		DataQuality: types.DataQuality{HasSufficientData: true},
		Opportunities: []types.OptimizationOpportunity{
			{Parameter: types.ParamSelectionTemperature, CurrentValue: 0.85, SuggestedValue: 0.95, Confidence: 0.2},
		},
	}

	changes, validations := opt.Propose(analysis, mgr)
	assert.Nil(t, changes)
	assert.Nil(t, validations)
}

func TestProposeCapsAtMaxChangesPerCycle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxChangesPerCycle = 1
	opt := New(cfg, types.KnownParameters())
	mgr := newTestManager()
	analysis := &types.MetricsAnalysis{
		Confidence:  0.9,
		DataQuality: types.DataQuality{HasSufficientData: true},
		Opportunities: []types.OptimizationOpportunity{
			{Parameter: types.ParamSelectionTemperature, CurrentValue: 0.85, SuggestedValue: 0.90, Confidence: 0.9},
			{Parameter: types.ParamSelectionTopK, CurrentValue: 12.0, SuggestedValue: 13.0, Confidence: 0.9},
		},
	}

	changes, validations := opt.Propose(analysis, mgr)
	assert.Len(t, changes, 1)
	assert.Len(t, validations, 1)
}

func TestProposeRejectsChangeThatFailsBusinessLogic(t *testing.T) {
	opt := New(DefaultConfig(), types.KnownParameters())
	mgr := newTestManager()
	analysis := &types.MetricsAnalysis{
		Confidence:  0.9,
		DataQuality: types.DataQuality{HasSufficientData: true},
		Opportunities: []types.OptimizationOpportunity{
			// selection_top_k must stay an integer; a fractional suggestion
			// survives the conservative step unrounded and must be rejected.
			{Parameter: types.ParamSelectionTopK, CurrentValue: 12.0, SuggestedValue: 12.5, Confidence: 0.95},
		},
	}

	changes, validations := opt.Propose(analysis, mgr)
	assert.Empty(t, changes)
	require.Len(t, validations, 1)
	assert.False(t, validations[0].Passed)
}

func TestProposeAdjustsValueOutsideSlidingBoundsAfterRollbackContraction(t *testing.T) {
	opt := New(DefaultConfig(), types.KnownParameters())
	mgr := newTestManager()
	// Three fatal rollbacks contract the sliding range around its centre
	// (2.505), not around the current value: the new sliding minimum (about
	// 1.07) sits above the current 0.85, so even a conservative proposed step
	// (about 0.878) lands below it and must be clamped back in.
	for i := 0; i < 3; i++ {
		_, err := mgr.ContractAfterRollback(types.ParamSelectionTemperature, bounds.SeverityFatal)
		require.NoError(t, err)
	}

	analysis := &types.MetricsAnalysis{
		Confidence:  0.5,
		DataQuality: types.DataQuality{HasSufficientData: false},
		Opportunities: []types.OptimizationOpportunity{
			{Parameter: types.ParamSelectionTemperature, CurrentValue: 0.85, SuggestedValue: 1.5, Confidence: 0.65},
		},
	}

	changes, validations := opt.Propose(analysis, mgr)
	require.Len(t, changes, 1)
	require.Len(t, validations, 1)
	assert.NotNil(t, validations[0].AdjustedValue)
	b, ok := mgr.Get(types.ParamSelectionTemperature)
	require.True(t, ok)
	assert.LessOrEqual(t, changes[0].NewValue, b.SlidingMax)
}

func TestValidateBusinessLogicRejectsUnknownParameter(t *testing.T) {
	var errs []string
	ok := validateBusinessLogic("not_a_real_parameter", 1.0, &errs)
	assert.False(t, ok)
	assert.NotEmpty(t, errs)
}

func TestValidateBusinessLogicRejectsNonIntegerTopK(t *testing.T) {
	var errs []string
	ok := validateBusinessLogic(types.ParamSelectionTopK, 12.5, &errs)
	assert.False(t, ok)
}

func TestValidateSafetyRejectsOversizedChange(t *testing.T) {
	var errs []string
	ok := validateSafety(types.ParamSelectionTemperature, 0.85, 1.5, &errs)
	assert.False(t, ok)
	assert.NotEmpty(t, errs)
}

func TestHistoricalSuccessRateDefaultsNeutralForUnknownParameter(t *testing.T) {
	opt := New(DefaultConfig(), types.KnownParameters())
	assert.Equal(t, 0.5, opt.historicalSuccessRate(types.ParamSelectionTemperature))
}

func TestRecordAttemptThenUpdateResultFeedsStatistics(t *testing.T) {
	opt := New(DefaultConfig(), types.KnownParameters())
	change := types.ParameterChange{
		Parameter: types.ParamSelectionTemperature, OldValue: 0.85, NewValue: 0.90,
		ProposedAt: time.Now().UTC(),
	}
	opt.RecordAttempt(change)
	opt.UpdateResult(change.Parameter, change.ProposedAt, 0.05, true)

	stats := opt.Statistics()
	assert.Equal(t, 1, stats.TotalAttempts)
	assert.Equal(t, 1.0, stats.SuccessRate)
}

func TestCalculateExpectedImpactTemperatureAffectsEntropyMost(t *testing.T) {
	analysis := &types.MetricsAnalysis{Confidence: 1.0, DataQuality: types.DataQuality{HasSufficientData: true}}
	impact := calculateExpectedImpact(types.ParamSelectionTemperature, 0.85, 0.95, analysis)
	assert.Greater(t, impact.EntropyDelta, 0.0)
	assert.Less(t, impact.BudgetDelta, 0.0)
}
