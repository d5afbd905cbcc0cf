package policy

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// eGreedy implements ε-greedy action selection with a constant
// exploration rate
type eGreedy struct {
	numActions int
	eps        float64
	src        rand.Source
}

// NewEGreedy returns an ε-greedy policy over numActions actions. With
// probability eps an action is drawn uniformly at random; otherwise the
// greedy action is selected.
func NewEGreedy(numActions int, eps float64, src rand.Source) Policy {
	return &eGreedy{numActions: numActions, eps: eps, src: src}
}

// Select implements the Policy interface
func (p *eGreedy) Select(actionValues mat.Vector, _ int) (int, error) {
	return selectEGreedy(actionValues, p.numActions, p.eps, p.src)
}

// selectEGreedy samples from the categorical distribution placing
// probability eps/n on every action plus an extra 1-eps on the greedy
// action. This is equivalent to exploring uniformly with probability
// eps and exploiting otherwise.
func selectEGreedy(actionValues mat.Vector, numActions int, eps float64,
	src rand.Source) (int, error) {

	if actionValues.Len() != numActions {
		return 0, fmt.Errorf("select: expected %v action values, got %v",
			numActions, actionValues.Len())
	}

	greedyAction, err := argmax(actionValues)
	if err != nil {
		return 0, fmt.Errorf("select: %v", err)
	}

	prob := eps / float64(numActions)
	actionProbabilities := make([]float64, numActions)
	for i := range actionProbabilities {
		actionProbabilities[i] = prob
	}
	actionProbabilities[greedyAction] += 1.0 - eps

	dist := distuv.NewCategorical(actionProbabilities, src)
	return int(dist.Rand()), nil
}
