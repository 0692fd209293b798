package optimizer

// Config holds the parameter optimizer's tunables, loaded from
// config.OptimizerConfig.
type Config struct {
	MaxChangesPerCycle     int
	MinConfidenceThreshold float64
	ConservativeMode       bool
	LearningRate           float64
	MomentumFactor         float64
	ExplorationFactor      float64
}

// DefaultConfig returns the optimizer's conservative defaults.
func DefaultConfig() Config {
	return Config{
		MaxChangesPerCycle:     3,
		MinConfidenceThreshold: 0.6,
		ConservativeMode:       true,
		LearningRate:           0.1,
		MomentumFactor:         0.2,
		ExplorationFactor:      0.05,
	}
}
