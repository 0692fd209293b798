/*
Package cycle implements the cycle controller: the component that ties the
sliding bounds manager, metrics analyzer, parameter optimizer, and canary
deployment manager into the strictly-ordered
analyze->propose->validate->deploy->commit pipeline, on a fixed interval,
with apperr-driven Skip/Fail/Pause error propagation.
*/
package cycle

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/vvtv/autopilot/internal/apperr"
	"github.com/vvtv/autopilot/pkg/analyzer"
	"github.com/vvtv/autopilot/pkg/audit"
	"github.com/vvtv/autopilot/pkg/bounds"
	"github.com/vvtv/autopilot/pkg/canary"
	"github.com/vvtv/autopilot/pkg/configurator"
	"github.com/vvtv/autopilot/pkg/log"
	"github.com/vvtv/autopilot/pkg/metrics"
	"github.com/vvtv/autopilot/pkg/notifier"
	"github.com/vvtv/autopilot/pkg/optimizer"
	"github.com/vvtv/autopilot/pkg/storage"
	"github.com/vvtv/autopilot/pkg/timeseries"
	"github.com/vvtv/autopilot/pkg/types"
)

var tracer = otel.Tracer("github.com/vvtv/autopilot/pkg/cycle")

// Config holds the cycle controller's own scheduling tunables.
type Config struct {
	Interval      time.Duration
	PhaseTimeout  time.Duration
	IOConcurrency int
	// PauseFilePath, if set, is checked at the top of every tick; its
	// presence pauses the loop the same as an in-process Pause() call,
	// letting a separate `autopilotctl pause` invocation reach a running
	// daemon without an RPC channel.
	PauseFilePath string
}

// Controller orchestrates one control-loop cycle end to end and, via Start,
// runs that cycle on a fixed interval until Stop is called.
type Controller struct {
	cfg          Config
	boundsMgr    *bounds.Manager
	analyzer     *analyzer.Analyzer
	optimizer    *optimizer.Optimizer
	canaryMgr    *canary.Manager
	store        timeseries.Store
	configurator *configurator.Configurator
	notify       notifier.Notifier
	auditWriter  *audit.Writer
	broker       *audit.Broker
	index        storage.Store

	mu         sync.Mutex
	stopCh     chan struct{}
	paused     atomic.Bool
	lastRecord atomic.Pointer[types.CycleRecord]
}

// Status is the operator-facing snapshot the CLI surface exposes: whether
// the loop is paused, the last finished cycle's ID, status and error, and the
// number of active canary deployments. It carries no enabled flag, no ID of
// a cycle in progress and no last canary decision.
type Status struct {
	Paused           bool
	LastCycleID      string
	LastCycleStatus  types.CycleStatus
	LastError        string
	ActiveDeployments int
}

// Status reports the controller's current operator-visible state.
func (c *Controller) Status() Status {
	s := Status{Paused: c.paused.Load(), ActiveDeployments: len(c.canaryMgr.ListActive())}
	if r := c.lastRecord.Load(); r != nil {
		s.LastCycleID = r.ID
		s.LastCycleStatus = r.Status
		s.LastError = r.Error
	}
	return s
}

// Deps bundles every external collaborator the controller wires together,
// kept as one struct so New doesn't take ten positional arguments.
type Deps struct {
	Bounds       *bounds.Manager
	Analyzer     *analyzer.Analyzer
	Optimizer    *optimizer.Optimizer
	Canary       *canary.Manager
	Store        timeseries.Store
	Configurator *configurator.Configurator
	Notifier     notifier.Notifier
	AuditWriter  *audit.Writer
	Broker       *audit.Broker
	Index        storage.Store
}

// New builds a Controller from cfg and deps.
func New(cfg Config, deps Deps) *Controller {
	return &Controller{
		cfg: cfg, boundsMgr: deps.Bounds, analyzer: deps.Analyzer, optimizer: deps.Optimizer,
		canaryMgr: deps.Canary, store: deps.Store, configurator: deps.Configurator,
		notify: deps.Notifier, auditWriter: deps.AuditWriter, broker: deps.Broker, index: deps.Index,
		stopCh: make(chan struct{}),
	}
}

// Start runs RunOnce on cfg.Interval until Stop is called.
func (c *Controller) Start(ctx context.Context) {
	go c.run(ctx)
}

// Stop halts the controller's ticker loop.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.stopCh:
	default:
		close(c.stopCh)
	}
}

// Pause prevents new cycles from running until Resume is called. A paused
// controller still accepts Stop.
func (c *Controller) Pause() {
	c.paused.Store(true)
	metrics.CyclePaused.Set(1)
}

// Resume clears a prior Pause.
func (c *Controller) Resume() {
	c.paused.Store(false)
	metrics.CyclePaused.Set(0)
}

// Paused reports whether the controller is currently paused.
func (c *Controller) Paused() bool {
	return c.paused.Load()
}

func (c *Controller) syncPauseFromFile(logger zerolog.Logger) {
	if c.cfg.PauseFilePath == "" {
		return
	}
	_, err := os.Stat(c.cfg.PauseFilePath)
	fileExists := err == nil
	if fileExists && !c.paused.Load() {
		logger.Info().Str("pause_file", c.cfg.PauseFilePath).Msg("pause file detected, pausing cycle controller")
		c.Pause()
	} else if !fileExists && c.paused.Load() {
		logger.Info().Msg("pause file removed, resuming cycle controller")
		c.Resume()
	}
}

func (c *Controller) run(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	logger := log.WithComponent("cycle")
	logger.Info().Dur("interval", c.cfg.Interval).Msg("cycle controller started")

	for {
		select {
		case <-ticker.C:
			c.syncPauseFromFile(logger)
			if c.paused.Load() {
				logger.Debug().Msg("cycle controller is paused, skipping tick")
				continue
			}
			if _, err := c.RunOnce(ctx); err != nil {
				logger.Error().Err(err).Msg("cycle run failed")
			}
		case <-c.stopCh:
			logger.Info().Msg("cycle controller stopped")
			return
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce executes one full pass of the pipeline: progress any canary
// deployments already in flight, then analyze-propose-deploy a new batch of
// parameter changes if headroom and opportunity both exist.
func (c *Controller) RunOnce(ctx context.Context) (*types.CycleRecord, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.CycleDuration)

	ctx, span := tracer.Start(ctx, "cycle")
	defer span.End()

	record := &types.CycleRecord{ID: uuid.NewString(), StartedAt: time.Now().UTC()}

	c.progressDeployments(ctx, record)

	analysis, changes, validations, err := c.analyzeAndPropose(ctx)
	if err != nil {
		return c.finish(record, err)
	}
	record.Analysis = analysis
	record.ProposedChanges = changes
	record.Validations = validations

	if len(changes) == 0 {
		record.Status = types.CycleCompleted
		record.SkipReason = "no viable optimization opportunity this cycle"
		return c.finish(record, nil)
	}

	deploymentID := uuid.NewString()
	if err := c.canaryMgr.StartDeployment(deploymentID, changes); err != nil {
		if apperr.PolicyFor(err) == apperr.PolicySkip {
			record.Status = types.CycleSkipped
			record.SkipReason = err.Error()
			return c.finish(record, nil)
		}
		return c.finish(record, err)
	}
	record.AppliedChanges = changes
	record.Deployments = append(record.Deployments, types.DeploymentOutcome{
		DeploymentID: deploymentID, Action: "started", Status: types.DeploymentRunning,
	})
	c.publish(audit.EventDeploymentStarted, fmt.Sprintf("started canary deployment %s", deploymentID))

	record.BoundsAdjustments = append(record.BoundsAdjustments, c.boundsMgr.ExpandForStableParameters()...)

	record.Status = types.CycleCompleted
	return c.finish(record, nil)
}

// progressDeployments runs one collect->evaluate->execute pass over every
// canary deployment due for processing and applies each Proceed/Rollback
// outcome to the bounds manager, optimizer, and external configurator.
func (c *Controller) progressDeployments(ctx context.Context, record *types.CycleRecord) {
	phaseCtx, span := tracer.Start(ctx, "progress_deployments")
	defer span.End()
	phaseCtx, cancel := context.WithTimeout(phaseCtx, c.cfg.PhaseTimeout)
	defer cancel()

	progressions := c.canaryMgr.ProcessActiveDeployments(phaseCtx, c.store)
	for _, p := range progressions {
		record.Deployments = append(record.Deployments, types.DeploymentOutcome{
			DeploymentID: p.DeploymentID, Action: p.ActionTaken, Status: p.NewStatus,
		})
		c.applyProgression(p)
	}
}

func (c *Controller) applyProgression(p types.DeploymentProgression) {
	if p.Decision == nil {
		return
	}
	d, ok := c.canaryMgr.Get(p.DeploymentID)
	if !ok {
		return
	}

	switch p.Decision.Verdict {
	case types.DecisionProceed:
		c.commitChanges(d.ParameterChanges, p.DeploymentID)
		for _, change := range d.ParameterChanges {
			_ = c.boundsMgr.UpdateValue(change.Parameter, change.NewValue, "canary proceed: "+p.DeploymentID)
			_ = c.boundsMgr.UpdateResult(change.Parameter, true, p.Decision.Confidence)
			c.optimizer.UpdateResult(change.Parameter, change.ProposedAt, p.Decision.Confidence, true)
		}
		c.publish(audit.EventDeploymentEnded, "deployment "+p.DeploymentID+" promoted")

	case types.DecisionRollback:
		for _, change := range d.ParameterChanges {
			severity := bounds.SeverityModerate
			if p.Decision.Confidence < 0.2 {
				severity = bounds.SeverityFatal
			}
			_, _ = c.boundsMgr.ContractAfterRollback(change.Parameter, severity)
			_ = c.boundsMgr.UpdateResult(change.Parameter, false, 0)
			c.optimizer.UpdateResult(change.Parameter, change.ProposedAt, 0, false)
		}
		if c.notify != nil {
			_ = c.notify.Notify(notifier.Incident{
				Severity: notifier.SeverityWarning, Component: "cycle",
				Summary: "canary deployment rolled back", Detail: p.Decision.Rationale,
				DeploymentID: p.DeploymentID,
			})
		}
		c.publish(audit.EventDeploymentEnded, "deployment "+p.DeploymentID+" rolled back")
	}
}

func (c *Controller) commitChanges(changes []types.ParameterChange, deploymentID string) {
	if c.configurator == nil {
		return
	}
	current, err := c.configurator.Load()
	if err != nil {
		current = map[string]float64{}
	}
	for _, change := range changes {
		current[change.Parameter] = change.NewValue
	}
	hash, err := c.configurator.Commit(current)
	if err != nil {
		if c.notify != nil {
			_ = c.notify.Notify(notifier.Incident{
				Severity: notifier.SeverityCritical, Component: "configurator",
				Summary: "failed to commit parameter changes", Detail: err.Error(),
				DeploymentID: deploymentID,
			})
		}
		return
	}
	log.WithDeploymentID(deploymentID).Info().Str("configurator_hash", hash).Msg("committed parameter changes")
}

func (c *Controller) analyzeAndPropose(ctx context.Context) (*types.MetricsAnalysis, []types.ParameterChange, []types.ValidationResult, error) {
	phaseCtx, span := tracer.Start(ctx, "analyze")
	defer span.End()
	phaseCtx, cancel := context.WithTimeout(phaseCtx, c.cfg.PhaseTimeout)
	defer cancel()

	analysis, err := c.analyzer.Analyze(phaseCtx, time.Now().UTC())
	if err != nil {
		return nil, nil, nil, err
	}

	_, proposeSpan := tracer.Start(ctx, "propose")
	defer proposeSpan.End()
	changes, validations := c.optimizer.Propose(analysis, c.boundsMgr)
	return analysis, changes, validations, nil
}

// finish applies err's propagation policy, persists the record concurrently
// to the durable writer and the query index (bounded by IOConcurrency via
// errgroup), and publishes a terminal audit event.
func (c *Controller) finish(record *types.CycleRecord, err error) (*types.CycleRecord, error) {
	record.FinishedAt = time.Now().UTC()

	if err != nil {
		switch apperr.PolicyFor(err) {
		case apperr.PolicySkip:
			record.Status = types.CycleSkipped
			record.SkipReason = err.Error()
		case apperr.PolicyPause:
			record.Status = types.CyclePaused
			record.Error = err.Error()
			c.Pause()
			if c.notify != nil {
				_ = c.notify.Notify(notifier.Incident{
					Severity: notifier.SeverityCritical, Component: "cycle",
					Summary: "control loop paused", Detail: err.Error(),
				})
			}
		default:
			record.Status = types.CycleFailed
			record.Error = err.Error()
		}
	}

	metrics.CyclesTotal.WithLabelValues(string(record.Status)).Inc()
	c.lastRecord.Store(record)
	c.persist(record)
	c.publish(statusEventType(record.Status), fmt.Sprintf("cycle %s finished: %s", record.ID, record.Status))

	if err != nil && apperr.PolicyFor(err) == apperr.PolicyFail {
		return record, err
	}
	return record, nil
}

func (c *Controller) persist(record *types.CycleRecord) {
	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(max(1, c.cfg.IOConcurrency))

	if c.auditWriter != nil {
		g.Go(func() error { return c.auditWriter.WriteCycleRecord(record) })
	}
	if c.index != nil {
		g.Go(func() error { return c.index.SaveCycleRecord(record) })
	}
	if err := g.Wait(); err != nil {
		log.WithCycleID(record.ID).Warn().Err(err).Msg("failed to persist cycle record")
	}
}

func (c *Controller) publish(kind audit.EventType, message string) {
	if c.broker == nil {
		return
	}
	c.broker.Publish(audit.Event{Type: kind, Message: message})
}

func statusEventType(status types.CycleStatus) audit.EventType {
	switch status {
	case types.CycleSkipped:
		return audit.EventCycleSkipped
	case types.CyclePaused:
		return audit.EventCyclePaused
	case types.CycleFailed:
		return audit.EventCycleFailed
	default:
		return audit.EventCycleCompleted
	}
}
