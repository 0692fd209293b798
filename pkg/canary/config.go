package canary

import "time"

// KPIThresholds caps how far a canary's KPIs may drift from control before
// the deployment manager forces an automatic rollback.
type KPIThresholds struct {
	MaxRetentionDecreasePP float64
	MaxVMAFDecrease        float64
	MaxErrorRateIncreasePP float64
	MaxLatencyIncreaseMS   float64
}

// Config holds the canary deployment manager's tunables, loaded from
// config.CanaryConfig.
type Config struct {
	CanaryTrafficPercentage     float64
	Duration                    time.Duration
	MinSampleSize               int
	ConfidenceThreshold         float64
	MaxConcurrentDeployments    int
	MetricsCollectionTimeout    time.Duration
	RollbackThresholds          KPIThresholds
	RetentionHours              int // CleanupOld's default retention window
}

// DefaultConfig returns the canary manager's conservative defaults.
func DefaultConfig() Config {
	return Config{
		CanaryTrafficPercentage:  0.2,
		Duration:                 60 * time.Minute,
		MinSampleSize:            100,
		ConfidenceThreshold:      0.95,
		MaxConcurrentDeployments: 3,
		MetricsCollectionTimeout: 30 * time.Second,
		RollbackThresholds: KPIThresholds{
			MaxRetentionDecreasePP: 2.0,
			MaxVMAFDecrease:        5.0,
			MaxErrorRateIncreasePP: 1.0,
			MaxLatencyIncreaseMS:   100.0,
		},
		RetentionHours: 72,
	}
}
