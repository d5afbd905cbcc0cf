// Package environment defines the adapter through which agents
// interact with an external traffic simulator. The training engine
// only ever sees reset and step; everything about the simulator itself
// stays behind this interface.
package environment

import "gonum.org/v1/gonum/mat"

// Environment is a sequential decision process with a discrete action
// set. Implementations must be deterministic given their construction
// seed and the sequence of actions applied, so that runs are
// reproducible.
type Environment interface {
	// Reset starts a new episode and returns its initial state.
	Reset() (mat.Vector, error)

	// Step applies a discrete action and returns the next state, the
	// reward earned, and whether the episode ended.
	Step(action int) (next mat.Vector, reward float64, terminal bool,
		err error)

	// NumActions returns the size of the discrete action set.
	NumActions() int

	// NumFeatures returns the length of the state vectors.
	NumFeatures() int
}

// DelayReporter is implemented by environments that can report the
// mean per-vehicle delay of the most recently completed episode. It is
// the ranking metric of a grid search.
type DelayReporter interface {
	MeanDelay() float64
}
