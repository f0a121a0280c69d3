package anydqn

import (
	"math"
	"math/rand"

	"github.com/unixpickle/anyvec"
)

// An Explorer decides which action to take at each
// decision point during training.
//
// Exactly one Explorer drives a training run: either an
// epsilon-greedy schedule or noisy-network exploration,
// never both.
type Explorer interface {
	// Pick chooses an action for the given state.
	// The stepsDone counter increases by one per
	// decision.
	Pick(agent *Agent, state anyvec.Vector, stepsDone int) int
}

// EpsilonGreedy anneals from random to greedy action
// selection on an exponential schedule.
type EpsilonGreedy struct {
	// Start and End bound the exploration rate.
	Start float64
	End   float64

	// Decay is the number of decisions over which the
	// rate decays by a factor of e.
	Decay float64
}

// Epsilon computes the exploration rate after stepsDone
// decisions.
func (e *EpsilonGreedy) Epsilon(stepsDone int) float64 {
	return e.End + (e.Start-e.End)*math.Exp(-float64(stepsDone)/e.Decay)
}

// Pick chooses a random action with probability
// Epsilon(stepsDone) and the greedy action otherwise.
func (e *EpsilonGreedy) Pick(agent *Agent, state anyvec.Vector,
	stepsDone int) int {
	if rand.Float64() < e.Epsilon(stepsDone) {
		return agent.RandomAction()
	}
	return agent.SelectAction(state)
}

// NoisyGreedy always acts greedily and relies on the
// policy network's noisy layers for exploration.
// The noise is redrawn before every decision.
type NoisyGreedy struct{}

// Pick redraws the policy noise and returns the greedy
// action.
func (NoisyGreedy) Pick(agent *Agent, state anyvec.Vector, stepsDone int) int {
	agent.Policy.ResetNoise()
	return agent.SelectAction(state)
}
