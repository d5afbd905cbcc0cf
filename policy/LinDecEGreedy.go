package policy

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// linDecEGreedy implements ε-greedy action selection whose exploration
// rate decays linearly with the global step count.
type linDecEGreedy struct {
	numActions int
	endEps     float64
	decaySteps int
	src        rand.Source
}

// NewLinDecEGreedy returns an ε-greedy policy whose exploration rate
// starts at 1.0, decays linearly to endEps over decaySteps steps and is
// held at endEps afterwards. The rate is a pure function of the step
// passed to Select, so restoring a run's step counter restores the
// policy exactly.
func NewLinDecEGreedy(numActions int, endEps float64, decaySteps int,
	src rand.Source) Policy {

	return &linDecEGreedy{
		numActions: numActions,
		endEps:     endEps,
		decaySteps: decaySteps,
		src:        src,
	}
}

// Epsilon returns the exploration rate at the given global step.
func (p *linDecEGreedy) Epsilon(step int) float64 {
	if step >= p.decaySteps {
		return p.endEps
	}
	frac := float64(step) / float64(p.decaySteps)
	return 1.0 - (1.0-p.endEps)*frac
}

// Select implements the Policy interface
func (p *linDecEGreedy) Select(actionValues mat.Vector, step int) (int,
	error) {

	return selectEGreedy(actionValues, p.numActions, p.Epsilon(step), p.src)
}
