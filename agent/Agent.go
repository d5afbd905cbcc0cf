// Package agent defines the interfaces shared by learning agents.
//
// An Agent couples a value function with an action-selection policy
// and a replay memory. The training loop drives the agent through
// Act/Observe/Learn cycles and triggers target synchronization on its
// configured schedule.
package agent

import (
	"gonum.org/v1/gonum/mat"

	"github.com/signalq/signalq/expreplay"
)

// Agent is a value-based learning agent.
type Agent interface {
	// Act returns the action the agent's policy selects in the given
	// state. Act has no learning side effects.
	Act(state mat.Vector) (int, error)

	// ActionValues returns the online value function's estimates for
	// every action in the given state.
	ActionValues(state mat.Vector) (mat.Vector, error)

	// Observe records a transition in the replay memory and advances
	// the global step counter.
	Observe(t expreplay.Transition) error

	// Learn performs one learning update from replayed experience.
	Learn() error

	// SyncTarget overwrites the target value function's parameters
	// with the online value function's current parameters.
	SyncTarget() error

	// ReadyToLearn reports whether the burn-in quota of transitions
	// has been collected.
	ReadyToLearn() bool

	// TotalSteps returns the number of transitions observed so far.
	TotalSteps() int

	// Config returns the agent's hyperparameters.
	Config() Config
}

// Checkpointable exposes the state a checkpoint must capture to pause
// and later resume a run.
type Checkpointable interface {
	// Parameters returns a flat copy of the online value function's
	// parameters.
	Parameters() []float64

	// SetParameters restores the online and target value functions
	// from a flat parameter vector.
	SetParameters(params []float64) error

	// SetTotalSteps restores the global step counter.
	SetTotalSteps(steps int)
}
