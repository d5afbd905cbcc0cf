package valuefn

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestMLPEqualSeedsStartIdentical(t *testing.T) {
	a, err := NewMLP(3, []int{8}, 2, 4, 0.01, 7)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewMLP(3, []int{8}, 2, 4, 0.01, 7)
	if err != nil {
		t.Fatal(err)
	}

	pa, pb := a.Parameters(), b.Parameters()
	if len(pa) != len(pb) {
		t.Fatalf("parameter counts differ: %v vs %v", len(pa), len(pb))
	}
	for i := range pa {
		if pa[i] != pb[i] {
			t.Fatalf("parameters differ at %v: %v vs %v", i, pa[i], pb[i])
		}
	}
}

func TestMLPPredictShapes(t *testing.T) {
	m, err := NewMLP(3, []int{8}, 2, 4, 0.01, 1)
	if err != nil {
		t.Fatal(err)
	}

	// Single row goes through the selection graph, a full batch through
	// the batch graph, and anything else row by row.
	for _, rows := range []int{1, 4, 3} {
		pred, err := m.Predict(mat.NewDense(rows, 3, nil))
		if err != nil {
			t.Fatal(err)
		}
		r, c := pred.Dims()
		if r != rows || c != 2 {
			t.Errorf("expected %vx2 predictions, got %vx%v", rows, r, c)
		}
	}
}

func TestMLPBatchAndRowPredictionsAgree(t *testing.T) {
	m, err := NewMLP(2, []int{6}, 2, 3, 0.01, 5)
	if err != nil {
		t.Fatal(err)
	}

	states := mat.NewDense(3, 2, []float64{
		0.1, 0.2,
		-0.4, 0.5,
		0.9, -0.3,
	})

	batchPred, err := m.Predict(states)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		rowPred, err := m.Predict(states.RowView(i).T())
		if err != nil {
			t.Fatal(err)
		}
		for j := 0; j < 2; j++ {
			if math.Abs(batchPred.At(i, j)-rowPred.At(0, j)) > 1e-9 {
				t.Errorf("row %v action %v: batch %v vs row %v", i, j,
					batchPred.At(i, j), rowPred.At(0, j))
			}
		}
	}
}

func TestMLPFitReducesError(t *testing.T) {
	m, err := NewMLP(2, []int{16}, 2, 4, 0.05, 11)
	if err != nil {
		t.Fatal(err)
	}

	states := mat.NewDense(4, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		1, 1,
	})
	targets := mat.NewDense(4, 2, []float64{
		0.0, 1.0,
		1.0, 0.0,
		1.0, 0.0,
		0.0, 1.0,
	})

	mse := func() float64 {
		pred, err := m.Predict(states)
		if err != nil {
			t.Fatal(err)
		}
		sum := 0.0
		for i := 0; i < 4; i++ {
			for j := 0; j < 2; j++ {
				d := targets.At(i, j) - pred.At(i, j)
				sum += d * d
			}
		}
		return sum
	}

	before := mse()
	for i := 0; i < 200; i++ {
		if err := m.Fit(states, targets); err != nil {
			t.Fatal(err)
		}
	}
	if after := mse(); after >= before {
		t.Errorf("error did not decrease: before %v, after %v", before, after)
	}
}

func TestMLPParameterRoundTrip(t *testing.T) {
	m, err := NewMLP(2, []int{4}, 2, 2, 0.01, 3)
	if err != nil {
		t.Fatal(err)
	}
	other, err := NewMLP(2, []int{4}, 2, 2, 0.01, 99)
	if err != nil {
		t.Fatal(err)
	}

	if err := other.SetParameters(m.Parameters()); err != nil {
		t.Fatal(err)
	}

	state := mat.NewDense(1, 2, []float64{0.3, -0.7})
	want, _ := m.Predict(state)
	have, _ := other.Predict(state)
	for j := 0; j < 2; j++ {
		if math.Abs(want.At(0, j)-have.At(0, j)) > 1e-12 {
			t.Errorf("predictions diverge at action %v after parameter copy",
				j)
		}
	}

	if err := other.SetParameters(make([]float64, 3)); err == nil {
		t.Error("expected error for wrong parameter count")
	}
}
