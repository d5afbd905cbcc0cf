package agent

import "fmt"

// Config holds the hyperparameters of a value-based agent. The values
// are immutable for the lifetime of a run.
type Config struct {
	// Gamma is the discount applied to bootstrapped future value.
	Gamma float64

	// BatchSize is the number of transitions sampled per learning
	// update.
	BatchSize int

	// TrainFreq is the number of steps between learning updates.
	TrainFreq int

	// TargetUpdateFreq is the number of steps between hard target
	// network synchronizations. Syncing too frequently destabilizes
	// the bootstrap targets.
	TargetUpdateFreq int

	// NumBurnIn is the number of transitions collected before learning
	// starts.
	NumBurnIn int
}

// Validate checks that the Config describes a usable agent.
func (c Config) Validate() error {
	if c.Gamma <= 0 || c.Gamma > 1 {
		return fmt.Errorf("config: discount must be in (0, 1], got %v",
			c.Gamma)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("config: batch size must be positive, got %v",
			c.BatchSize)
	}
	if c.TrainFreq < 1 {
		return fmt.Errorf("config: train frequency must be positive, got %v",
			c.TrainFreq)
	}
	if c.TargetUpdateFreq < 1 {
		return fmt.Errorf("config: target networks must be updated at "+
			"positive timestep intervals \n\twant(>0) \n\thave(%v)",
			c.TargetUpdateFreq)
	}
	if c.NumBurnIn < c.BatchSize {
		return fmt.Errorf("config: burn-in (%v) must cover at least one "+
			"batch (%v)", c.NumBurnIn, c.BatchSize)
	}
	return nil
}
