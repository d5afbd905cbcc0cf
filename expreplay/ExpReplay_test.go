package expreplay

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

func transitionWithReward(r float64) Transition {
	return Transition{
		State:     mat.NewVecDense(2, []float64{r, r}),
		Action:    0,
		Reward:    r,
		NextState: mat.NewVecDense(2, []float64{r + 1, r + 1}),
		Terminal:  false,
	}
}

func TestNewRejectsNonPositiveCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		if _, err := New(capacity, 1); err == nil {
			t.Errorf("expected error for capacity %v", capacity)
		}
	}
}

func TestPushEvictsOldestAtCapacity(t *testing.T) {
	m, err := New(3, 1)
	if err != nil {
		t.Fatal(err)
	}

	for i := 1; i <= 5; i++ {
		m.Push(transitionWithReward(float64(i)))
	}

	if m.Len() != 3 {
		t.Fatalf("expected 3 stored transitions, got %v", m.Len())
	}

	// Pushing T1..T5 into a capacity-3 buffer must leave exactly
	// {T3, T4, T5}.
	want := map[float64]bool{3: true, 4: true, 5: true}
	for _, tr := range m.data {
		if !want[tr.Reward] {
			t.Errorf("unexpected stored transition with reward %v", tr.Reward)
		}
		delete(want, tr.Reward)
	}
	if len(want) != 0 {
		t.Errorf("missing transitions with rewards %v", want)
	}
}

func TestLenNeverExceedsCap(t *testing.T) {
	m, _ := New(10, 1)
	for i := 0; i < 100; i++ {
		m.Push(transitionWithReward(float64(i)))
		if m.Len() > m.Cap() {
			t.Fatalf("length %v exceeds capacity %v", m.Len(), m.Cap())
		}
	}
	if m.Len() != 10 {
		t.Errorf("expected full buffer, got length %v", m.Len())
	}
}

func TestSampleInsufficientData(t *testing.T) {
	m, _ := New(10, 1)
	m.Push(transitionWithReward(1))
	m.Push(transitionWithReward(2))

	_, err := m.Sample(3)
	if err == nil {
		t.Fatal("expected error sampling 3 from buffer of 2")
	}
	if !IsInsufficientData(err) {
		t.Errorf("expected insufficient data error, got %v", err)
	}
}

func TestSampleReturnsDistinctTransitions(t *testing.T) {
	m, _ := New(8, 42)
	for i := 0; i < 8; i++ {
		m.Push(transitionWithReward(float64(i)))
	}

	for trial := 0; trial < 50; trial++ {
		batch, err := m.Sample(5)
		if err != nil {
			t.Fatal(err)
		}
		if len(batch) != 5 {
			t.Fatalf("expected batch of 5, got %v", len(batch))
		}
		seen := make(map[float64]bool)
		for _, tr := range batch {
			if seen[tr.Reward] {
				t.Fatalf("trial %v: transition %v repeated in batch",
					trial, tr.Reward)
			}
			seen[tr.Reward] = true
		}
	}
}

func TestPushCopiesStateVectors(t *testing.T) {
	m, _ := New(4, 1)
	state := mat.NewVecDense(2, []float64{1, 2})
	next := mat.NewVecDense(2, []float64{3, 4})
	m.Push(Transition{State: state, NextState: next})

	state.SetVec(0, -100)
	next.SetVec(0, -100)

	stored := m.data[0]
	if stored.State.AtVec(0) != 1 || stored.NextState.AtVec(0) != 3 {
		t.Error("stored transition aliases the caller's vectors")
	}
}
