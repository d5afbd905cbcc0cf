package policy

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// uniform selects actions uniformly at random, ignoring action values
type uniform struct {
	numActions int
	dist       distuv.Categorical
}

// NewUniform returns a policy selecting uniformly over numActions
// actions, drawing randomness from src.
func NewUniform(numActions int, src rand.Source) Policy {
	weights := make([]float64, numActions)
	for i := range weights {
		weights[i] = 1.0
	}
	return &uniform{
		numActions: numActions,
		dist:       distuv.NewCategorical(weights, src),
	}
}

// Select implements the Policy interface. The action values only
// determine the size of the valid action set.
func (u *uniform) Select(actionValues mat.Vector, _ int) (int, error) {
	if actionValues.Len() != u.numActions {
		return 0, fmt.Errorf("select: expected %v action values, got %v",
			u.numActions, actionValues.Len())
	}
	return int(u.dist.Rand()), nil
}
