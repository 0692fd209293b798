package analyzer

import "time"

// Config holds the metrics analyzer's tunables, loaded from
// config.AnalyzerConfig.
type Config struct {
	WindowDuration      time.Duration
	MinSamplesPerMetric int
	StabilityThreshold  float64
	FreshnessSLAHours   float64
}

// DefaultConfig returns the analyzer's conservative defaults: a 24h window
// with at least 6 samples per metric before a trend is trusted.
func DefaultConfig() Config {
	return Config{
		WindowDuration:      24 * time.Hour,
		MinSamplesPerMetric: 6,
		StabilityThreshold:  0.6,
		FreshnessSLAHours:   6.0,
	}
}
