// Package grid runs hyperparameter grid searches. A Space declares the
// candidate values per hyperparameter; the search trains one
// independent agent per element of the Cartesian product, in parallel,
// and ranks the runs by the mean delay of a final greedy evaluation.
package grid

import (
	"fmt"

	"github.com/signalq/signalq/policy"
)

// Params is one fully realized hyperparameter setting, the i'th element
// of a Space's Cartesian product.
type Params struct {
	Gamma            float64
	LearningRate     float64
	BatchSize        int
	TrainFreq        int
	TargetUpdateFreq int
	NumBurnIn        int
	MemorySize       int
	Policy           policy.Type
	Eps              float64
	DecaySteps       int

	// Seed is derived from the space's base seed and the run index, so
	// every run draws from an independent stream.
	Seed uint64
}

// Space declares the hyperparameter grid. Each slice holds the
// candidate values for one hyperparameter; the search sweeps their
// Cartesian product. The scalar fields are shared by every run.
type Space struct {
	Gamma            []float64
	LearningRate     []float64
	BatchSize        []int
	TrainFreq        []int
	TargetUpdateFreq []int
	NumBurnIn        []int
	MemorySize       []int
	Policy           []policy.Type
	Eps              []float64
	DecaySteps       []int

	// NumEpisodes and MaxEpLength bound every run in the sweep.
	NumEpisodes int
	MaxEpLength int

	// BaseSeed anchors per-run seed derivation.
	BaseSeed uint64
}

// seedStride spreads per-run seeds across the space. The constant is
// the golden-ratio multiplier commonly used for integer hashing.
const seedStride = 2654435761

// Validate checks that every hyperparameter has at least one candidate
// value and that every candidate is individually usable, so a bad grid
// fails before any run starts rather than as a column of failed rows.
func (s Space) Validate() error {
	switch {
	case len(s.Gamma) == 0:
		return &ConfigError{Field: "Gamma", Err: errNoCandidates}
	case len(s.LearningRate) == 0:
		return &ConfigError{Field: "LearningRate", Err: errNoCandidates}
	case len(s.BatchSize) == 0:
		return &ConfigError{Field: "BatchSize", Err: errNoCandidates}
	case len(s.TrainFreq) == 0:
		return &ConfigError{Field: "TrainFreq", Err: errNoCandidates}
	case len(s.TargetUpdateFreq) == 0:
		return &ConfigError{Field: "TargetUpdateFreq", Err: errNoCandidates}
	case len(s.NumBurnIn) == 0:
		return &ConfigError{Field: "NumBurnIn", Err: errNoCandidates}
	case len(s.MemorySize) == 0:
		return &ConfigError{Field: "MemorySize", Err: errNoCandidates}
	case len(s.Policy) == 0:
		return &ConfigError{Field: "Policy", Err: errNoCandidates}
	case len(s.Eps) == 0:
		return &ConfigError{Field: "Eps", Err: errNoCandidates}
	case len(s.DecaySteps) == 0:
		return &ConfigError{Field: "DecaySteps", Err: errNoCandidates}
	case s.NumEpisodes < 1:
		return &ConfigError{Field: "NumEpisodes", Err: errNotPositive}
	case s.MaxEpLength < 1:
		return &ConfigError{Field: "MaxEpLength", Err: errNotPositive}
	}

	for _, gamma := range s.Gamma {
		if gamma <= 0 || gamma > 1 {
			return &ConfigError{Field: "Gamma",
				Err: fmt.Errorf("discount %v outside (0, 1]", gamma)}
		}
	}
	for _, lr := range s.LearningRate {
		if lr <= 0 {
			return &ConfigError{Field: "LearningRate",
				Err: fmt.Errorf("learning rate %v is not positive", lr)}
		}
	}
	positives := []struct {
		field  string
		values []int
	}{
		{"BatchSize", s.BatchSize},
		{"TrainFreq", s.TrainFreq},
		{"TargetUpdateFreq", s.TargetUpdateFreq},
		{"NumBurnIn", s.NumBurnIn},
		{"MemorySize", s.MemorySize},
	}
	for _, p := range positives {
		for _, v := range p.values {
			if v < 1 {
				return &ConfigError{Field: p.field,
					Err: fmt.Errorf("candidate %v is not positive", v)}
			}
		}
	}

	// Every batch size must fit every burn-in quota and replay
	// capacity, otherwise some settings cannot construct an agent.
	maxBatch := maxOf(s.BatchSize)
	if minOf(s.NumBurnIn) < maxBatch {
		return &ConfigError{Field: "NumBurnIn",
			Err: fmt.Errorf("burn-in %v cannot cover batch size %v",
				minOf(s.NumBurnIn), maxBatch)}
	}
	if minOf(s.MemorySize) < maxBatch {
		return &ConfigError{Field: "MemorySize",
			Err: fmt.Errorf("capacity %v is below batch size %v",
				minOf(s.MemorySize), maxBatch)}
	}

	// The action count is only known once the environment is built, so
	// the policy candidates are checked against a placeholder.
	for _, polType := range s.Policy {
		for _, eps := range s.Eps {
			for _, decay := range s.DecaySteps {
				err := policy.Config{
					Type:       polType,
					NumActions: 1,
					Eps:        eps,
					DecaySteps: decay,
				}.Validate()
				if err != nil {
					return &ConfigError{Field: "Policy", Err: err}
				}
			}
		}
	}
	return nil
}

func minOf(values []int) int {
	min := values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
	}
	return min
}

func maxOf(values []int) int {
	max := values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

// Len returns the number of settings in the grid.
func (s Space) Len() int {
	return len(s.Gamma) * len(s.LearningRate) * len(s.BatchSize) *
		len(s.TrainFreq) * len(s.TargetUpdateFreq) * len(s.NumBurnIn) *
		len(s.MemorySize) * len(s.Policy) * len(s.Eps) * len(s.DecaySteps)
}

// At expands the i'th setting of the grid. Settings are ordered
// mixed-radix with the fields in declaration order, the first field
// varying slowest.
func (s Space) At(i int) Params {
	p := Params{Seed: s.BaseSeed + uint64(i)*seedStride}

	digit := func(n int) int {
		d := i % n
		i /= n
		return d
	}

	// Decode from the least significant field upward.
	p.DecaySteps = s.DecaySteps[digit(len(s.DecaySteps))]
	p.Eps = s.Eps[digit(len(s.Eps))]
	p.Policy = s.Policy[digit(len(s.Policy))]
	p.MemorySize = s.MemorySize[digit(len(s.MemorySize))]
	p.NumBurnIn = s.NumBurnIn[digit(len(s.NumBurnIn))]
	p.TargetUpdateFreq = s.TargetUpdateFreq[digit(len(s.TargetUpdateFreq))]
	p.TrainFreq = s.TrainFreq[digit(len(s.TrainFreq))]
	p.BatchSize = s.BatchSize[digit(len(s.BatchSize))]
	p.LearningRate = s.LearningRate[digit(len(s.LearningRate))]
	p.Gamma = s.Gamma[digit(len(s.Gamma))]

	return p
}
