package valuefn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Linear approximates action values as a linear function of the state
// features: Q(s, a) = w_a · s. Weights start at zero, so initial greedy
// selection falls back to the lowest action index.
type Linear struct {
	weights     *mat.Dense // numActions × numFeatures
	numFeatures int
	numActions  int
	lr          float64
}

// NewLinear returns a zero-initialized linear value function.
func NewLinear(numFeatures, numActions int, learningRate float64) (*Linear,
	error) {

	if numFeatures < 1 || numActions < 1 {
		return nil, fmt.Errorf("linear: features and actions must be "+
			"positive \n\thave(%v features, %v actions)",
			numFeatures, numActions)
	}
	if learningRate <= 0 {
		return nil, fmt.Errorf("linear: learning rate must be positive, "+
			"got %v", learningRate)
	}

	return &Linear{
		weights:     mat.NewDense(numActions, numFeatures, nil),
		numFeatures: numFeatures,
		numActions:  numActions,
		lr:          learningRate,
	}, nil
}

// Predict implements the ValueFunction interface
func (l *Linear) Predict(states mat.Matrix) (*mat.Dense, error) {
	if err := checkDims("predict", states, -1, l.numFeatures); err != nil {
		return nil, err
	}

	rows, _ := states.Dims()
	out := mat.NewDense(rows, l.numActions, nil)
	out.Mul(states, l.weights.T())
	return out, nil
}

// Fit performs one batch gradient step on the mean squared error
// between predictions and targets.
func (l *Linear) Fit(states, targets mat.Matrix) error {
	if err := checkDims("fit", states, -1, l.numFeatures); err != nil {
		return err
	}
	rows, _ := states.Dims()
	if err := checkDims("fit", targets, rows, l.numActions); err != nil {
		return err
	}

	pred, err := l.Predict(states)
	if err != nil {
		return err
	}

	// Gradient of the per-action squared error with respect to the
	// weights is -(targets - pred)ᵀ · states, averaged over the batch.
	var diff mat.Dense
	diff.Sub(targets, pred)

	var grad mat.Dense
	grad.Mul(diff.T(), states)
	grad.Scale(l.lr/float64(rows), &grad)

	l.weights.Add(l.weights, &grad)
	return nil
}

// Parameters implements the ValueFunction interface
func (l *Linear) Parameters() []float64 {
	raw := l.weights.RawMatrix()
	out := make([]float64, len(raw.Data))
	copy(out, raw.Data)
	return out
}

// SetParameters implements the ValueFunction interface
func (l *Linear) SetParameters(params []float64) error {
	raw := l.weights.RawMatrix()
	if len(params) != len(raw.Data) {
		return fmt.Errorf("setparameters: invalid parameter count "+
			"\n\twant(%v)\n\thave(%v)", len(raw.Data), len(params))
	}
	copy(raw.Data, params)
	return nil
}

// NumActions implements the ValueFunction interface
func (l *Linear) NumActions() int { return l.numActions }

// NumFeatures returns the expected state vector length.
func (l *Linear) NumFeatures() int { return l.numFeatures }
