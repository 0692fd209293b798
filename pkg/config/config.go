/*
Package config loads, validates, and hot-reloads the autopilot's YAML
configuration: parameter bounds policy, analyzer windows, optimizer
algorithm selection, canary thresholds, and external-dependency endpoints.
*/
package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/vvtv/autopilot/pkg/log"
)

// BoundsConfig holds the sliding-bounds manager's tunables.
type BoundsConfig struct {
	BaseExpansionRate   float64 `yaml:"base_expansion_rate" validate:"required,gt=0,lt=1"`
	BaseContractionRate float64 `yaml:"base_contraction_rate" validate:"required,gt=0,lt=1"`
	StabilityDaysForExpansion int `yaml:"stability_days_for_expansion" validate:"required,gt=0"`
	MaxBoundsWidthFraction float64 `yaml:"max_bounds_width_fraction" validate:"required,gt=0,lte=1"`
	OscillationWindow   int     `yaml:"oscillation_window" validate:"required,gt=0"`
	OscillationAmplitudeThreshold float64 `yaml:"oscillation_amplitude_threshold" validate:"required,gt=0"`
	AntiWindupThreshold float64 `yaml:"anti_windup_threshold" validate:"required,gt=0"`
}

// AnalyzerConfig holds the metrics analyzer's tunables.
type AnalyzerConfig struct {
	WindowDuration    time.Duration `yaml:"window_duration" validate:"required"`
	MinSamplesPerMetric int         `yaml:"min_samples_per_metric" validate:"required,gt=0"`
	StabilityThreshold  float64     `yaml:"stability_threshold" validate:"required,gt=0,lte=1"`
	FreshnessSLAHours   float64     `yaml:"freshness_sla_hours" validate:"required,gt=0"`
}

// OptimizerConfig holds the parameter optimizer's tunables.
type OptimizerConfig struct {
	DefaultAlgorithm   string  `yaml:"default_algorithm" validate:"required,oneof=conservative_adjustment gradient_descent adaptive_learning bayesian_optimization"`
	MaxStepFraction    float64 `yaml:"max_step_fraction" validate:"required,gt=0,lte=1"`
	MinConfidence      float64 `yaml:"min_confidence" validate:"required,gt=0,lte=1"`
	ExplorationRate    float64 `yaml:"exploration_rate" validate:"gte=0,lte=1"`
}

// CanaryConfig holds the canary deployment manager's tunables.
type CanaryConfig struct {
	DefaultDurationMinutes int     `yaml:"default_duration_minutes" validate:"required,gt=0"`
	MaxExtensions          int     `yaml:"max_extensions" validate:"gte=0"`
	MinSamplesPerGroup     int     `yaml:"min_samples_per_group" validate:"required,gt=0"`
	SignificanceAlpha      float64 `yaml:"significance_alpha" validate:"required,gt=0,lt=1"`
	MeaningfulImprovementPct float64 `yaml:"meaningful_improvement_pct" validate:"required,gt=0"`
	MaxConcurrentDeployments int   `yaml:"max_concurrent_deployments" validate:"required,gt=0"`
	DefaultCanaryPct       float64 `yaml:"default_canary_pct" validate:"required,gt=0,lt=1"`
	RoutingStrategy        string  `yaml:"routing_strategy" validate:"required,oneof=hash_based time_slot_based region_based random"`
}

// CycleConfig holds the cycle controller's scheduling tunables.
type CycleConfig struct {
	Interval     time.Duration `yaml:"interval" validate:"required"`
	PhaseTimeout time.Duration `yaml:"phase_timeout" validate:"required"`
	IOConcurrency int          `yaml:"io_concurrency" validate:"required,gt=0"`
}

// TimeSeriesConfig configures the external metrics store dependency.
type TimeSeriesConfig struct {
	Driver           string `yaml:"driver" validate:"required,oneof=postgres memory"`
	DSN              string `yaml:"dsn"`
	CircuitBreakerThreshold uint32 `yaml:"circuit_breaker_threshold" validate:"gte=0"`
}

// ConfiguratorConfig configures the external business-logic config dependency.
type ConfiguratorConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// NotifierConfig configures the external notification dependency.
type NotifierConfig struct {
	Driver     string `yaml:"driver" validate:"required,oneof=log slack"`
	SlackToken string `yaml:"slack_token"`
	SlackChannel string `yaml:"slack_channel"`
}

// StorageConfig configures audit/cycle-record persistence.
type StorageConfig struct {
	DataDir string `yaml:"data_dir" validate:"required"`
}

// Config is the autopilot's complete, validated configuration tree.
type Config struct {
	LogLevel    string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	LogJSON     bool   `yaml:"log_json"`
	MetricsAddr string `yaml:"metrics_addr"`

	Bounds       BoundsConfig       `yaml:"bounds" validate:"required"`
	Analyzer     AnalyzerConfig     `yaml:"analyzer" validate:"required"`
	Optimizer    OptimizerConfig    `yaml:"optimizer" validate:"required"`
	Canary       CanaryConfig       `yaml:"canary" validate:"required"`
	Cycle        CycleConfig        `yaml:"cycle" validate:"required"`
	TimeSeries   TimeSeriesConfig   `yaml:"timeseries" validate:"required"`
	Configurator ConfiguratorConfig `yaml:"configurator" validate:"required"`
	Notifier     NotifierConfig     `yaml:"notifier" validate:"required"`
	Storage      StorageConfig      `yaml:"storage" validate:"required"`
}

var validate = validator.New()

// Load reads, parses, and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Watcher hot-reloads Config from disk whenever the underlying file changes,
// swapping it atomically under a mutex for readers to pick up.
type Watcher struct {
	path string
	mu   sync.RWMutex
	cfg  *Config
	fw   *fsnotify.Watcher
}

// NewWatcher loads path once and starts watching it for changes.
func NewWatcher(path string) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch config file: %w", err)
	}

	w := &Watcher{path: path, cfg: cfg, fw: fw}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	logger := log.WithComponent("config")
	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				logger.Warn().Err(err).Msg("config reload failed, keeping previous config")
				continue
			}
			w.mu.Lock()
			w.cfg = cfg
			w.mu.Unlock()
			logger.Info().Msg("config reloaded")
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			logger.Warn().Err(err).Msg("config watcher error")
		}
	}
}

// Current returns the most recently loaded Config.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cfg
}

// Close stops the underlying file watcher.
func (w *Watcher) Close() error {
	return w.fw.Close()
}
