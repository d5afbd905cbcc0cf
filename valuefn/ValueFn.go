// Package valuefn implements action-value function approximators. A
// ValueFunction maps batches of states to per-action value estimates
// and supports single gradient-step updates toward externally computed
// targets. Agents treat implementations as opaque: the same interface
// backs both the online and the target network of a value-based agent.
package valuefn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ValueFunction is an opaque predict/fit capability over a discrete
// action set.
type ValueFunction interface {
	// Predict returns the estimated action values for a batch of
	// states, one row per state and one column per action.
	Predict(states mat.Matrix) (*mat.Dense, error)

	// Fit performs one gradient step moving the predictions for the
	// given states toward the given targets. The targets matrix must
	// have one row per state and one column per action.
	Fit(states, targets mat.Matrix) error

	// Parameters returns a flat copy of all learnable parameters.
	Parameters() []float64

	// SetParameters overwrites all learnable parameters with the given
	// flat vector, as produced by Parameters on a structurally
	// identical ValueFunction.
	SetParameters(params []float64) error

	// NumActions returns the size of the action set.
	NumActions() int
}

// flatten copies a matrix into a row-major flat slice.
func flatten(m mat.Matrix) []float64 {
	r, c := m.Dims()
	out := make([]float64, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out[i*c+j] = m.At(i, j)
		}
	}
	return out
}

// checkDims verifies that m has the expected shape.
func checkDims(op string, m mat.Matrix, rows, cols int) error {
	r, c := m.Dims()
	if (rows >= 0 && r != rows) || c != cols {
		return fmt.Errorf("%v: invalid shape \n\twant(%vx%v)\n\thave(%vx%v)",
			op, rows, cols, r, c)
	}
	return nil
}
