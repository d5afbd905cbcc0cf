package valuefn

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// MLP approximates action values with a fully connected neural network
// with ReLU hidden activations, trained by minimizing the mean squared
// error against externally supplied targets.
//
// Internally the MLP keeps three computational graphs sharing one set
// of parameters: a single-row graph for action selection, a batch-sized
// predict-only graph for computing bootstrap targets, and a batch-sized
// training graph carrying the loss and gradients. After every gradient
// step the training graph's weights are copied into the predict graphs.
type MLP struct {
	numFeatures int
	numActions  int
	batchSize   int

	act    *mlpGraph // batch of 1, predict only
	batch  *mlpGraph // batch of batchSize, predict only
	train  *mlpGraph // batch of batchSize, with loss and gradients
	solver G.Solver
}

// mlpGraph is one compiled forward (and optionally backward) pass
type mlpGraph struct {
	g       *G.ExprGraph
	input   *G.Node
	target  *G.Node // nil on predict-only graphs
	pred    *G.Node
	weights []*G.Node // weight and bias nodes in layer order
	vm      G.VM
	rows    int
}

// NewMLP returns a new MLP value function. The hidden parameter lists
// the hidden layer sizes; batchSize fixes the number of rows accepted
// by Fit. Weights are Glorot-initialized from seed so structurally
// identical MLPs built with equal seeds start identical.
func NewMLP(numFeatures int, hidden []int, numActions, batchSize int,
	learningRate float64, seed uint64) (*MLP, error) {

	if numFeatures < 1 || numActions < 1 {
		return nil, fmt.Errorf("mlp: features and actions must be "+
			"positive \n\thave(%v features, %v actions)",
			numFeatures, numActions)
	}
	if batchSize < 1 {
		return nil, fmt.Errorf("mlp: batch size must be positive, got %v",
			batchSize)
	}
	if learningRate <= 0 {
		return nil, fmt.Errorf("mlp: learning rate must be positive, got %v",
			learningRate)
	}
	for _, h := range hidden {
		if h < 1 {
			return nil, fmt.Errorf("mlp: hidden layer sizes must be "+
				"positive, got %v", h)
		}
	}

	sizes := make([]int, 0, len(hidden)+2)
	sizes = append(sizes, numFeatures)
	sizes = append(sizes, hidden...)
	sizes = append(sizes, numActions)

	inits := glorotInit(sizes, seed)

	m := &MLP{
		numFeatures: numFeatures,
		numActions:  numActions,
		batchSize:   batchSize,
	}

	var err error
	if m.act, err = newMLPGraph(sizes, 1, inits, false); err != nil {
		return nil, err
	}
	if m.batch, err = newMLPGraph(sizes, batchSize, inits, false); err != nil {
		return nil, err
	}
	if m.train, err = newMLPGraph(sizes, batchSize, inits, true); err != nil {
		return nil, err
	}

	m.solver = G.NewAdamSolver(
		G.WithLearnRate(learningRate),
		G.WithBatchSize(float64(batchSize)),
	)
	return m, nil
}

// glorotInit returns one row-major weight initialization per layer,
// drawn uniformly from ±sqrt(6 / (fanIn + fanOut)).
func glorotInit(sizes []int, seed uint64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))

	inits := make([][]float64, 0, len(sizes)-1)
	for i := 0; i+1 < len(sizes); i++ {
		limit := math.Sqrt(6.0 / float64(sizes[i]+sizes[i+1]))
		data := make([]float64, sizes[i]*sizes[i+1])
		for j := range data {
			data[j] = rng.Float64()*2.0*limit - limit
		}
		inits = append(inits, data)
	}
	return inits
}

// newMLPGraph compiles one forward pass over the given layer sizes.
// Every graph gets its own copy of the initial weights; withLoss adds
// the MSE loss, the gradient nodes, and dual-value bindings.
func newMLPGraph(sizes []int, rows int, inits [][]float64,
	withLoss bool) (*mlpGraph, error) {

	g := G.NewGraph()
	input := G.NewMatrix(g, tensor.Float64, G.WithShape(rows, sizes[0]),
		G.WithName("states"))

	x := input
	var weights []*G.Node
	for i := 0; i+1 < len(sizes); i++ {
		wBacking := make([]float64, len(inits[i]))
		copy(wBacking, inits[i])
		wVal := tensor.New(tensor.WithShape(sizes[i], sizes[i+1]),
			tensor.WithBacking(wBacking))
		w := G.NewMatrix(g, tensor.Float64, G.WithShape(sizes[i], sizes[i+1]),
			G.WithName(fmt.Sprintf("w%d", i)), G.WithValue(wVal))

		bVal := tensor.New(tensor.WithShape(sizes[i+1]),
			tensor.WithBacking(make([]float64, sizes[i+1])))
		b := G.NewVector(g, tensor.Float64, G.WithShape(sizes[i+1]),
			G.WithName(fmt.Sprintf("b%d", i)), G.WithValue(bVal))

		weights = append(weights, w, b)

		x = G.Must(G.Mul(x, w))

		// Broadcast the bias weights to all samples along the batch
		// dimension
		x = G.Must(G.BroadcastAdd(x, b, nil, []byte{0}))

		if i+2 < len(sizes) {
			x = G.Must(G.Rectify(x))
		}
	}

	mg := &mlpGraph{g: g, input: input, pred: x, weights: weights, rows: rows}

	if !withLoss {
		mg.vm = G.NewTapeMachine(g)
		return mg, nil
	}

	target := G.NewMatrix(g, tensor.Float64,
		G.WithShape(rows, sizes[len(sizes)-1]), G.WithName("targets"))

	losses := G.Must(G.Square(G.Must(G.Sub(x, target))))
	cost := G.Must(G.Mean(losses))

	if _, err := G.Grad(cost, weights...); err != nil {
		return nil, fmt.Errorf("mlp: could not compute gradient: %v", err)
	}

	mg.target = target
	mg.vm = G.NewTapeMachine(g, G.BindDualValues(weights...))
	return mg, nil
}

// Predict implements the ValueFunction interface
func (m *MLP) Predict(states mat.Matrix) (*mat.Dense, error) {
	if err := checkDims("predict", states, -1, m.numFeatures); err != nil {
		return nil, err
	}
	rows, _ := states.Dims()
	out := mat.NewDense(rows, m.numActions, nil)

	switch rows {
	case m.batch.rows:
		pred, err := m.batch.forward(flatten(states))
		if err != nil {
			return nil, err
		}
		copy(out.RawMatrix().Data, pred)

	default:
		// Run one row at a time through the selection graph.
		row := make([]float64, m.numFeatures)
		for i := 0; i < rows; i++ {
			for j := 0; j < m.numFeatures; j++ {
				row[j] = states.At(i, j)
			}
			pred, err := m.act.forward(row)
			if err != nil {
				return nil, err
			}
			out.SetRow(i, pred)
		}
	}
	return out, nil
}

// forward binds the input, runs the graph, and returns a copy of the
// predictions.
func (mg *mlpGraph) forward(input []float64) ([]float64, error) {
	features := mg.input.Shape()[1]

	backing := make([]float64, len(input))
	copy(backing, input)
	in := tensor.New(tensor.WithShape(mg.rows, features),
		tensor.WithBacking(backing))

	if err := G.Let(mg.input, in); err != nil {
		return nil, fmt.Errorf("forward: could not set input: %v", err)
	}
	if mg.target != nil {
		rows, cols := mg.target.Shape()[0], mg.target.Shape()[1]
		zeros := tensor.New(tensor.WithShape(rows, cols),
			tensor.WithBacking(make([]float64, rows*cols)))
		if err := G.Let(mg.target, zeros); err != nil {
			return nil, fmt.Errorf("forward: could not set target: %v", err)
		}
	}

	if err := mg.vm.RunAll(); err != nil {
		return nil, fmt.Errorf("forward: %v", err)
	}
	defer mg.vm.Reset()

	data := mg.pred.Value().Data().([]float64)
	pred := make([]float64, len(data))
	copy(pred, data)
	return pred, nil
}

// Fit implements the ValueFunction interface. The states and targets
// must have exactly batchSize rows.
func (m *MLP) Fit(states, targets mat.Matrix) error {
	if err := checkDims("fit", states, m.batchSize, m.numFeatures); err != nil {
		return err
	}
	if err := checkDims("fit", targets, m.batchSize, m.numActions); err != nil {
		return err
	}

	in := tensor.New(tensor.WithShape(m.batchSize, m.numFeatures),
		tensor.WithBacking(flatten(states)))
	tg := tensor.New(tensor.WithShape(m.batchSize, m.numActions),
		tensor.WithBacking(flatten(targets)))

	if err := G.Let(m.train.input, in); err != nil {
		return fmt.Errorf("fit: could not set input: %v", err)
	}
	if err := G.Let(m.train.target, tg); err != nil {
		return fmt.Errorf("fit: could not set target: %v", err)
	}

	if err := m.train.vm.RunAll(); err != nil {
		return fmt.Errorf("fit: %v", err)
	}
	if err := m.solver.Step(G.NodesToValueGrads(m.train.weights)); err != nil {
		return fmt.Errorf("fit: solver: %v", err)
	}
	m.train.vm.Reset()

	m.syncFromTrain()
	return nil
}

// syncFromTrain copies the training graph's weights into the predict
// graphs so that selection and bootstrap predictions see the update.
func (m *MLP) syncFromTrain() {
	for i, w := range m.train.weights {
		src := w.Value().Data().([]float64)
		copy(m.act.weights[i].Value().Data().([]float64), src)
		copy(m.batch.weights[i].Value().Data().([]float64), src)
	}
}

// Parameters implements the ValueFunction interface
func (m *MLP) Parameters() []float64 {
	var out []float64
	for _, w := range m.train.weights {
		out = append(out, w.Value().Data().([]float64)...)
	}
	return out
}

// SetParameters implements the ValueFunction interface
func (m *MLP) SetParameters(params []float64) error {
	total := 0
	for _, w := range m.train.weights {
		total += len(w.Value().Data().([]float64))
	}
	if len(params) != total {
		return fmt.Errorf("setparameters: invalid parameter count "+
			"\n\twant(%v)\n\thave(%v)", total, len(params))
	}

	offset := 0
	for _, w := range m.train.weights {
		dst := w.Value().Data().([]float64)
		copy(dst, params[offset:offset+len(dst)])
		offset += len(dst)
	}
	m.syncFromTrain()
	return nil
}

// NumActions implements the ValueFunction interface
func (m *MLP) NumActions() int { return m.numActions }

// BatchSize returns the number of rows Fit accepts.
func (m *MLP) BatchSize() int { return m.batchSize }
