package main

import (
	"fmt"
	"time"

	"github.com/vvtv/autopilot/pkg/analyzer"
	"github.com/vvtv/autopilot/pkg/audit"
	"github.com/vvtv/autopilot/pkg/bounds"
	"github.com/vvtv/autopilot/pkg/canary"
	"github.com/vvtv/autopilot/pkg/config"
	"github.com/vvtv/autopilot/pkg/configurator"
	"github.com/vvtv/autopilot/pkg/cycle"
	"github.com/vvtv/autopilot/pkg/metrics"
	"github.com/vvtv/autopilot/pkg/notifier"
	"github.com/vvtv/autopilot/pkg/optimizer"
	"github.com/vvtv/autopilot/pkg/storage"
	"github.com/vvtv/autopilot/pkg/timeseries"
	"github.com/vvtv/autopilot/pkg/types"
)

// app bundles every long-lived collaborator a subcommand might need, torn
// down together via app.Close.
type app struct {
	cfg          *config.Config
	boundsMgr    *bounds.Manager
	canaryMgr    *canary.Manager
	store        timeseries.Store
	index        *storage.BoltStore
	auditWriter  *audit.Writer
	broker       *audit.Broker
	controller   *cycle.Controller
}

func buildApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	params := types.KnownParameters()
	snapshotStore := bounds.NewSnapshotStore(cfg.Storage.DataDir)
	boundsMgr, err := bounds.LoadOrNew(bounds.Config{
		BaseExpansionRate:             cfg.Bounds.BaseExpansionRate,
		BaseContractionRate:           cfg.Bounds.BaseContractionRate,
		StabilityDaysForExpansion:     cfg.Bounds.StabilityDaysForExpansion,
		RollbackThreshold:             3,
		AntiWindupEnabled:             true,
		MaxBoundsWidthFraction:        cfg.Bounds.MaxBoundsWidthFraction,
		OscillationWindow:             cfg.Bounds.OscillationWindow,
		OscillationAmplitudeThreshold: cfg.Bounds.OscillationAmplitudeThreshold,
		AntiWindupThreshold:           cfg.Bounds.AntiWindupThreshold,
	}, params, snapshotStore)
	if err != nil {
		return nil, fmt.Errorf("failed to load bounds state: %w", err)
	}

	store, err := buildStore(cfg.TimeSeries)
	if err != nil {
		metrics.RegisterComponent("timeseries", false, err.Error())
		return nil, fmt.Errorf("failed to build timeseries store: %w", err)
	}
	metrics.RegisterComponent("timeseries", true, "")

	an := analyzer.New(analyzer.Config{
		WindowDuration:      cfg.Analyzer.WindowDuration,
		MinSamplesPerMetric: cfg.Analyzer.MinSamplesPerMetric,
		StabilityThreshold:  cfg.Analyzer.StabilityThreshold,
		FreshnessSLAHours:   cfg.Analyzer.FreshnessSLAHours,
	}, store)

	opt := optimizer.New(optimizerConfigFrom(cfg.Optimizer), params)

	canaryMgr := canary.New(canary.Config{
		CanaryTrafficPercentage: cfg.Canary.DefaultCanaryPct,
		Duration:                time.Duration(cfg.Canary.DefaultDurationMinutes) * time.Minute,
		MinSampleSize:           cfg.Canary.MinSamplesPerGroup,
		ConfidenceThreshold:     1 - cfg.Canary.SignificanceAlpha,
		MaxConcurrentDeployments: cfg.Canary.MaxConcurrentDeployments,
		RollbackThresholds: canary.KPIThresholds{
			MaxRetentionDecreasePP: 2.0,
			MaxVMAFDecrease:        5.0,
			MaxErrorRateIncreasePP: 1.0,
			MaxLatencyIncreaseMS:   100.0,
		},
		RetentionHours: 72,
	}, canary.NewStoreCollector(store))

	index, err := storage.NewBoltStore(cfg.Storage.DataDir)
	if err != nil {
		metrics.RegisterComponent("storage", false, err.Error())
		return nil, fmt.Errorf("failed to open audit index: %w", err)
	}
	metrics.RegisterComponent("storage", true, "")

	auditWriter, err := audit.NewWriter(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit writer: %w", err)
	}

	broker := audit.NewBroker(auditWriter)
	broker.Start()

	var notify notifier.Notifier = notifier.NewLogNotifier()
	if cfg.Notifier.Driver == "slack" {
		notify = notifier.NewSlackNotifier(cfg.Notifier.SlackToken, cfg.Notifier.SlackChannel)
	}

	configuratorInst := configurator.New(cfg.Configurator.Path)
	if _, err := configuratorInst.Load(); err != nil {
		metrics.RegisterComponent("configurator", false, err.Error())
	} else {
		metrics.RegisterComponent("configurator", true, "")
	}

	controller := cycle.New(cycle.Config{
		Interval:      cfg.Cycle.Interval,
		PhaseTimeout:  cfg.Cycle.PhaseTimeout,
		IOConcurrency: cfg.Cycle.IOConcurrency,
		PauseFilePath: pauseFilePath(cfg.Storage.DataDir),
	}, cycle.Deps{
		Bounds: boundsMgr, Analyzer: an, Optimizer: opt, Canary: canaryMgr, Store: store,
		Configurator: configuratorInst, Notifier: notify, AuditWriter: auditWriter, Broker: broker, Index: index,
	})

	return &app{
		cfg: cfg, boundsMgr: boundsMgr, canaryMgr: canaryMgr, store: store,
		index: index, auditWriter: auditWriter, broker: broker, controller: controller,
	}, nil
}

func (a *app) Close() {
	a.broker.Stop()
	_ = a.auditWriter.Close()
	_ = a.index.Close()
	_ = a.store.Close()
}

func buildStore(cfg config.TimeSeriesConfig) (timeseries.Store, error) {
	switch cfg.Driver {
	case "postgres":
		return timeseries.NewPostgresStore(cfg.DSN, cfg.CircuitBreakerThreshold)
	default:
		return timeseries.NewMemoryStore(), nil
	}
}

func pauseFilePath(dataDir string) string {
	return dataDir + "/.paused"
}

// optimizerConfigFrom adapts the operator-facing config.OptimizerConfig into
// the optimizer package's internal tunables, filling the knobs the config
// file doesn't expose from optimizer.DefaultConfig.
func optimizerConfigFrom(cfg config.OptimizerConfig) optimizer.Config {
	defaults := optimizer.DefaultConfig()
	return optimizer.Config{
		MaxChangesPerCycle:     defaults.MaxChangesPerCycle,
		MinConfidenceThreshold: cfg.MinConfidence,
		ConservativeMode:       cfg.DefaultAlgorithm == "conservative_adjustment",
		LearningRate:           cfg.MaxStepFraction,
		MomentumFactor:         defaults.MomentumFactor,
		ExplorationFactor:      cfg.ExplorationRate,
	}
}
