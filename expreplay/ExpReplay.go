// Package expreplay implements a fixed-capacity experience replay
// buffer for off-policy learning. Transitions are stored in insertion
// order and sampled uniformly at random to decorrelate learning updates
// from the temporal order of experience.
package expreplay

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// Transition is a single agent-environment interaction. Once stored in
// a Memory it is never mutated.
type Transition struct {
	State     mat.Vector
	Action    int
	Reward    float64
	NextState mat.Vector
	Terminal  bool
}

// Memory is a FIFO ring buffer of transitions with fixed capacity.
// Once the buffer is full, every insert overwrites the oldest stored
// transition. The buffer owns its storage: state vectors are copied on
// insert so later mutation by the caller cannot corrupt stored
// experience.
type Memory struct {
	data     []Transition
	insertAt int
	size     int
	rng      *rand.Rand
}

// New returns an empty Memory holding at most capacity transitions.
// Sampling randomness is drawn from seed so runs are reproducible.
func New(capacity int, seed uint64) (*Memory, error) {
	if capacity <= 0 {
		return nil, &Error{
			Op:  "new",
			Err: fmt.Errorf("capacity must be positive, got %v", capacity),
		}
	}
	return &Memory{
		data: make([]Transition, capacity),
		rng:  rand.New(rand.NewSource(seed)),
	}, nil
}

// Push inserts a transition, overwriting the oldest entry when the
// buffer is at capacity.
func (m *Memory) Push(t Transition) {
	t.State = copyVec(t.State)
	t.NextState = copyVec(t.NextState)

	m.data[m.insertAt] = t
	m.insertAt = (m.insertAt + 1) % len(m.data)
	if m.size < len(m.data) {
		m.size++
	}
}

// Len returns the number of transitions currently stored.
func (m *Memory) Len() int { return m.size }

// Cap returns the maximum number of transitions the buffer can hold.
func (m *Memory) Cap() int { return len(m.data) }

// Sample returns n transitions drawn uniformly at random. A stored
// transition never appears twice within one batch; draws are
// independent across calls. The returned batch carries no ordering
// guarantee.
func (m *Memory) Sample(n int) ([]Transition, error) {
	if n <= 0 {
		return nil, &Error{
			Op:  "sample",
			Err: fmt.Errorf("batch size must be positive, got %v", n),
		}
	}
	if m.size < n {
		return nil, &Error{Op: "sample", Err: ErrInsufficientData}
	}

	// Partial Fisher-Yates: after i swaps the first i positions hold i
	// distinct indices into the occupied region of the buffer.
	indices := make([]int, m.size)
	for i := range indices {
		indices[i] = i
	}

	batch := make([]Transition, n)
	for i := 0; i < n; i++ {
		j := i + m.rng.Intn(m.size-i)
		indices[i], indices[j] = indices[j], indices[i]
		batch[i] = m.data[indices[i]]
	}
	return batch, nil
}

func copyVec(v mat.Vector) mat.Vector {
	c := mat.NewVecDense(v.Len(), nil)
	c.CopyVec(v)
	return c
}
