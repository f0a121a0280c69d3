package anydqn

import (
	"fmt"
	"math/rand"

	"github.com/unixpickle/anyvec"
)

// A Transition is one recorded step of experience.
type Transition struct {
	// State is the stacked observation the action was
	// taken from.
	State anyvec.Vector

	// Action is an index into the reduced action set.
	Action int

	// NextState is the observation after the action.
	// It is nil exactly when the transition ended the
	// episode.
	NextState anyvec.Vector

	// Reward is the aggregated reward for the step.
	Reward float64
}

// Memory is a fixed-capacity replay buffer of
// transitions.
//
// Once full, new transitions overwrite the oldest ones,
// so nothing older than the capacity is ever retained.
type Memory struct {
	capacity    int
	transitions []Transition
	pos         int
}

// NewMemory creates an empty Memory.
func NewMemory(capacity int) *Memory {
	if capacity < 1 {
		panic("capacity must be positive")
	}
	return &Memory{
		capacity:    capacity,
		transitions: make([]Transition, 0, capacity),
	}
}

// Push inserts a transition, evicting the oldest one if
// the memory is full.
func (m *Memory) Push(t Transition) {
	if len(m.transitions) < m.capacity {
		m.transitions = append(m.transitions, t)
	} else {
		m.transitions[m.pos] = t
	}
	m.pos = (m.pos + 1) % m.capacity
}

// Sample draws batchSize transitions uniformly at random,
// with no duplicates within the batch.
//
// It fails if fewer than batchSize transitions are held.
func (m *Memory) Sample(batchSize int) ([]Transition, error) {
	if len(m.transitions) < batchSize {
		return nil, fmt.Errorf("sample memory: have %d transitions, need %d",
			len(m.transitions), batchSize)
	}
	res := make([]Transition, 0, batchSize)
	for _, idx := range rand.Perm(len(m.transitions))[:batchSize] {
		res = append(res, m.transitions[idx])
	}
	return res, nil
}

// Len returns the number of transitions currently held,
// capped at the capacity.
func (m *Memory) Len() int {
	return len(m.transitions)
}
