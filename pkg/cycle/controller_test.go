package cycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvtv/autopilot/pkg/analyzer"
	"github.com/vvtv/autopilot/pkg/audit"
	"github.com/vvtv/autopilot/pkg/bounds"
	"github.com/vvtv/autopilot/pkg/canary"
	"github.com/vvtv/autopilot/pkg/optimizer"
	"github.com/vvtv/autopilot/pkg/timeseries"
	"github.com/vvtv/autopilot/pkg/types"
)

// idleCollector reports no active traffic, so the canary manager never
// blocks a test on an unmet sample-size requirement.
type idleCollector struct{}

func (idleCollector) Collect(ctx context.Context, start, end time.Time, group types.Group) (canary.GroupMetrics, error) {
	return canary.GroupMetrics{}, nil
}

func (idleCollector) SampleSizes(ctx context.Context, start, end time.Time) (canary.SampleSizes, error) {
	return canary.SampleSizes{}, nil
}

func (idleCollector) HasSufficientSamples(ctx context.Context, start, end time.Time, minSamples int) (bool, error) {
	return false, nil
}

func testController(t *testing.T) *Controller {
	t.Helper()
	params := types.KnownParameters()
	boundsMgr := bounds.NewManager(bounds.DefaultConfig(), params, nil)
	store := timeseries.NewMemoryStore()
	an := analyzer.New(analyzer.DefaultConfig(), store)
	opt := optimizer.New(optimizer.DefaultConfig(), params)
	canaryMgr := canary.New(canary.DefaultConfig(), idleCollector{})
	broker := audit.NewBroker(nil)
	broker.Start()
	t.Cleanup(broker.Stop)

	return New(Config{Interval: time.Minute, PhaseTimeout: 5 * time.Second, IOConcurrency: 2}, Deps{
		Bounds: boundsMgr, Analyzer: an, Optimizer: opt, Canary: canaryMgr, Store: store, Broker: broker,
	})
}

func TestRunOnceSkipsOnInsufficientData(t *testing.T) {
	c := testController(t)
	record, err := c.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.CycleSkipped, record.Status)
	assert.NotEmpty(t, record.SkipReason)
	assert.Empty(t, record.AppliedChanges)
}

func TestRunOnceIsSafeWithoutOptionalDependencies(t *testing.T) {
	c := testController(t)
	require.NotPanics(t, func() {
		_, err := c.RunOnce(context.Background())
		require.NoError(t, err)
	})
}

func TestPauseResumeTogglesPausedState(t *testing.T) {
	c := testController(t)
	assert.False(t, c.Paused())
	c.Pause()
	assert.True(t, c.Paused())
	c.Resume()
	assert.False(t, c.Paused())
}

func TestStartStopTerminatesTickerLoop(t *testing.T) {
	c := testController(t)
	c.cfg.Interval = 10 * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	c.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	c.Stop()

	// Stop is idempotent.
	require.NotPanics(t, c.Stop)
}

func TestApplyProgressionIgnoresUnknownDeployment(t *testing.T) {
	c := testController(t)
	require.NotPanics(t, func() {
		c.applyProgression(types.DeploymentProgression{
			DeploymentID: "does-not-exist",
			Decision:     &types.CanaryDecision{Verdict: types.DecisionProceed},
		})
	})
}

func TestApplyProgressionProceedUpdatesBoundsValue(t *testing.T) {
	c := testController(t)
	changes := []types.ParameterChange{{
		Parameter: types.ParamSelectionTemperature, OldValue: 0.85, NewValue: 0.95, ProposedAt: time.Now().UTC(),
	}}
	require.NoError(t, c.canaryMgr.StartDeployment("dep-proceed", changes))

	before, ok := c.boundsMgr.Get(types.ParamSelectionTemperature)
	require.True(t, ok)
	_ = before

	c.applyProgression(types.DeploymentProgression{
		DeploymentID: "dep-proceed",
		Decision:     &types.CanaryDecision{Verdict: types.DecisionProceed, Confidence: 0.9},
	})

	after, ok := c.boundsMgr.Get(types.ParamSelectionTemperature)
	require.True(t, ok)
	assert.Equal(t, 0.95, after.CurrentValue)
}

func TestStatusReflectsLastCycle(t *testing.T) {
	c := testController(t)
	record, err := c.RunOnce(context.Background())
	require.NoError(t, err)

	status := c.Status()
	assert.Equal(t, record.ID, status.LastCycleID)
	assert.Equal(t, record.Status, status.LastCycleStatus)
	assert.False(t, status.Paused)
}

func TestApplyProgressionRollbackDoesNotPanic(t *testing.T) {
	c := testController(t)
	changes := []types.ParameterChange{{
		Parameter: types.ParamSelectionTopK, OldValue: 12, NewValue: 20, ProposedAt: time.Now().UTC(),
	}}
	require.NoError(t, c.canaryMgr.StartDeployment("dep-rollback", changes))

	require.NotPanics(t, func() {
		c.applyProgression(types.DeploymentProgression{
			DeploymentID: "dep-rollback",
			Decision:     &types.CanaryDecision{Verdict: types.DecisionRollback, Confidence: 0.1, Rationale: "critical KPI breach"},
		})
	})
}
