package policy

import "gonum.org/v1/gonum/mat"

// greedy implements deterministic greedy action selection
type greedy struct{}

// NewGreedy returns a policy that always selects the highest-valued
// action. Ties are broken by the lowest action index, so the selection
// is fully deterministic.
func NewGreedy() Policy {
	return greedy{}
}

// Select implements the Policy interface
func (greedy) Select(actionValues mat.Vector, _ int) (int, error) {
	return argmax(actionValues)
}
