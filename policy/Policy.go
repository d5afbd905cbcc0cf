// Package policy implements discrete action-selection strategies over
// externally computed action values.
package policy

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// Type tags a concrete action-selection strategy.
type Type string

const (
	// Greedy always selects the highest-valued action, breaking ties
	// by the lowest action index.
	Greedy Type = "greedy"

	// EpsGreedy explores uniformly at random with a constant
	// probability Eps and exploits otherwise.
	EpsGreedy Type = "epsGreedy"

	// LinDecEpsGreedy behaves like EpsGreedy with an exploration rate
	// that decays linearly from 1.0 at step 0 to Eps at DecaySteps and
	// is held constant afterwards.
	LinDecEpsGreedy Type = "linDecEpsGreedy"

	// RandUniform selects uniformly over the action set, ignoring the
	// action values.
	RandUniform Type = "randUni"
)

// Policy selects a discrete action given the current action values.
// The step argument is the run's global step count; only decaying
// policies consult it. Policies keep no per-episode state, so a policy
// persists unchanged across episode boundaries.
type Policy interface {
	Select(actionValues mat.Vector, step int) (int, error)
}

// Config fully describes an action-selection strategy.
type Config struct {
	Type       Type
	NumActions int

	// Eps is the exploration rate. For LinDecEpsGreedy it is the final
	// rate reached once DecaySteps steps have elapsed.
	Eps float64

	// DecaySteps is the decay horizon of LinDecEpsGreedy, in steps.
	DecaySteps int
}

// Validate reports whether the Config describes a constructible policy.
func (c Config) Validate() error {
	if c.NumActions < 1 {
		return fmt.Errorf("policy: number of actions must be positive, "+
			"got %v", c.NumActions)
	}
	switch c.Type {
	case Greedy, RandUniform:

	case EpsGreedy:
		if c.Eps < 0 || c.Eps > 1 {
			return fmt.Errorf("policy: epsilon must be in [0, 1], got %v",
				c.Eps)
		}

	case LinDecEpsGreedy:
		if c.Eps < 0 || c.Eps > 1 {
			return fmt.Errorf("policy: epsilon must be in [0, 1], got %v",
				c.Eps)
		}
		if c.DecaySteps < 1 {
			return fmt.Errorf("policy: decay horizon must be positive, "+
				"got %v", c.DecaySteps)
		}

	default:
		return fmt.Errorf("policy: unknown policy type %q", c.Type)
	}
	return nil
}

// New builds the policy described by c. All randomness is drawn from
// src so that action selection is reproducible given the run's seed.
func New(c Config, src rand.Source) (Policy, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	switch c.Type {
	case Greedy:
		return NewGreedy(), nil
	case RandUniform:
		return NewUniform(c.NumActions, src), nil
	case EpsGreedy:
		return NewEGreedy(c.NumActions, c.Eps, src), nil
	case LinDecEpsGreedy:
		return NewLinDecEGreedy(c.NumActions, c.Eps, c.DecaySteps, src), nil
	}

	// Unreachable: Validate rejects unknown types.
	return nil, fmt.Errorf("policy: unknown policy type %q", c.Type)
}

// argmax returns the index of the largest action value. Ties are broken
// by the lowest index so greedy selection is deterministic.
func argmax(actionValues mat.Vector) (int, error) {
	if actionValues.Len() == 0 {
		return 0, fmt.Errorf("argmax: no action values")
	}

	best := 0
	for i := 1; i < actionValues.Len(); i++ {
		if actionValues.AtVec(i) > actionValues.AtVec(best) {
			best = i
		}
	}
	return best, nil
}
