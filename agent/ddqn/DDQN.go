// Package ddqn implements a double deep-Q-network agent.
//
// The double-DQN update selects the best next action with the online
// network and evaluates that action with a lagged target network,
// which reduces the overestimation bias of plain Q-learning bootstraps.
package ddqn

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/signalq/signalq/agent"
	"github.com/signalq/signalq/expreplay"
	"github.com/signalq/signalq/policy"
	"github.com/signalq/signalq/valuefn"
)

// ErrPrematureLearn reports that Learn was called before the burn-in
// quota of transitions was collected. No update is performed.
var ErrPrematureLearn = errors.New("learn called before burn-in completed")

// DDQN is a double-DQN agent over a discrete action set.
type DDQN struct {
	online valuefn.ValueFunction
	target valuefn.ValueFunction
	memory *expreplay.Memory
	pol    policy.Policy
	conf   agent.Config
	steps  int
}

// New returns a DDQN agent. The online and target value functions must
// be structurally identical; the target starts as an exact copy of the
// online network.
func New(online, target valuefn.ValueFunction, memory *expreplay.Memory,
	pol policy.Policy, conf agent.Config) (*DDQN, error) {

	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("ddqn: %w", err)
	}
	if online.NumActions() != target.NumActions() {
		return nil, fmt.Errorf("ddqn: online and target networks disagree "+
			"on action count \n\twant(%v)\n\thave(%v)",
			online.NumActions(), target.NumActions())
	}
	if memory.Cap() < conf.BatchSize {
		return nil, fmt.Errorf("ddqn: cannot have batch size (%v) > replay "+
			"capacity (%v)", conf.BatchSize, memory.Cap())
	}

	if err := target.SetParameters(online.Parameters()); err != nil {
		return nil, fmt.Errorf("ddqn: could not initialize target "+
			"network: %v", err)
	}

	return &DDQN{
		online: online,
		target: target,
		memory: memory,
		pol:    pol,
		conf:   conf,
	}, nil
}

// ActionValues implements the agent.Agent interface
func (d *DDQN) ActionValues(state mat.Vector) (mat.Vector, error) {
	q, err := d.online.Predict(state.T())
	if err != nil {
		return nil, fmt.Errorf("actionvalues: %v", err)
	}
	return q.RowView(0), nil
}

// Act implements the agent.Agent interface
func (d *DDQN) Act(state mat.Vector) (int, error) {
	q, err := d.ActionValues(state)
	if err != nil {
		return 0, fmt.Errorf("act: %v", err)
	}
	return d.pol.Select(q, d.steps)
}

// Observe implements the agent.Agent interface
func (d *DDQN) Observe(t expreplay.Transition) error {
	d.memory.Push(t)
	d.steps++
	return nil
}

// ReadyToLearn implements the agent.Agent interface
func (d *DDQN) ReadyToLearn() bool {
	return d.memory.Len() >= d.conf.NumBurnIn
}

// Learn performs one double-DQN update: sample a batch, compute the
// bootstrap target for each transition, and fit the online network
// toward those targets with one gradient step. Before burn-in
// completes, Learn performs no update and returns ErrPrematureLearn.
func (d *DDQN) Learn() error {
	if !d.ReadyToLearn() {
		return ErrPrematureLearn
	}

	batch, err := d.memory.Sample(d.conf.BatchSize)
	if err != nil {
		return fmt.Errorf("learn: %w", err)
	}

	numFeatures := batch[0].State.Len()
	states := mat.NewDense(len(batch), numFeatures, nil)
	nextStates := mat.NewDense(len(batch), numFeatures, nil)
	for i, t := range batch {
		for j := 0; j < numFeatures; j++ {
			states.Set(i, j, t.State.AtVec(j))
			nextStates.Set(i, j, t.NextState.AtVec(j))
		}
	}

	qCurrent, err := d.online.Predict(states)
	if err != nil {
		return fmt.Errorf("learn: %v", err)
	}
	qNextOnline, err := d.online.Predict(nextStates)
	if err != nil {
		return fmt.Errorf("learn: %v", err)
	}
	qNextTarget, err := d.target.Predict(nextStates)
	if err != nil {
		return fmt.Errorf("learn: %v", err)
	}

	// Targets equal the current predictions everywhere except at the
	// action actually taken, so the fit only moves the taken action's
	// value.
	targets := mat.DenseCopyOf(qCurrent)
	for i, t := range batch {
		y := t.Reward
		if !t.Terminal {
			best := argmaxRow(qNextOnline, i)
			y += d.conf.Gamma * qNextTarget.At(i, best)
		}
		targets.Set(i, t.Action, y)
	}

	if err := d.online.Fit(states, targets); err != nil {
		return fmt.Errorf("learn: %v", err)
	}
	return nil
}

// SyncTarget implements the agent.Agent interface
func (d *DDQN) SyncTarget() error {
	if err := d.target.SetParameters(d.online.Parameters()); err != nil {
		return fmt.Errorf("synctarget: %v", err)
	}
	return nil
}

// TotalSteps implements the agent.Agent interface
func (d *DDQN) TotalSteps() int { return d.steps }

// Config implements the agent.Agent interface
func (d *DDQN) Config() agent.Config { return d.conf }

// Parameters implements the agent.Checkpointable interface
func (d *DDQN) Parameters() []float64 {
	return d.online.Parameters()
}

// SetParameters implements the agent.Checkpointable interface. Both
// networks are restored to the same parameters; the lag between them
// rebuilds over the following steps.
func (d *DDQN) SetParameters(params []float64) error {
	if err := d.online.SetParameters(params); err != nil {
		return fmt.Errorf("setparameters: %v", err)
	}
	if err := d.target.SetParameters(params); err != nil {
		return fmt.Errorf("setparameters: %v", err)
	}
	return nil
}

// SetTotalSteps implements the agent.Checkpointable interface
func (d *DDQN) SetTotalSteps(steps int) { d.steps = steps }

// argmaxRow returns the column of the largest value in row i, breaking
// ties by the lowest index so the double-DQN action selection is
// deterministic.
func argmaxRow(m *mat.Dense, i int) int {
	_, cols := m.Dims()
	best := 0
	for j := 1; j < cols; j++ {
		if m.At(i, j) > m.At(i, best) {
			best = j
		}
	}
	return best
}
