package anydqn

import (
	"fmt"

	dreamwarrior "github.com/jvargas2/dream-warrior"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
)

// DefaultSyncInterval is the number of episodes between
// target network synchronizations when none is
// configured.
const DefaultSyncInterval = 10

// A Trainer drives episodes of environment interaction
// and optimization.
type Trainer struct {
	// Env produces stacked observations for the agent.
	Env dreamwarrior.Env

	Agent  *Agent
	Memory *Memory

	// Optimizer applies gradient updates after each
	// step.
	Optimizer *Optimizer

	// Explorer selects actions during training.
	Explorer Explorer

	BatchSize int

	// Gamma is the reward discount factor.
	Gamma float64

	// NumEpisodes is the total number of episodes,
	// counted from zero even when resuming.
	NumEpisodes int

	// StartEpisode is the first episode index to run,
	// non-zero when resuming a checkpointed run.
	StartEpisode int

	// SyncInterval is the number of episodes between
	// target network synchronizations.
	// If 0, DefaultSyncInterval is used.
	SyncInterval int

	// HoldFrames is the number of consecutive steps an
	// action is held before a new decision is made.
	// If 0 or 1, a decision is made every step.
	HoldFrames int

	// LossInterval is the number of steps between loss
	// log lines within an episode.
	// If 0, losses are not logged.
	LossInterval int

	// Checkpoint, if non-nil, is invoked after every
	// episode.
	Checkpoint Checkpointer

	// Log, if non-nil, is used to report progress.
	// Training behaves identically without it.
	Log func(s string)

	stepsDone int
}

// Run trains for the configured number of episodes and
// returns the total reward of every episode it ran.
//
// Environment errors abort the run; there is no recovery
// path which preserves a consistent action/observation
// contract.
func (t *Trainer) Run() (rewards []float64, err error) {
	defer essentials.AddCtxTo("run training", &err)
	for episode := t.StartEpisode; episode < t.NumEpisodes; episode++ {
		total, err := t.runEpisode()
		if err != nil {
			return rewards, err
		}
		rewards = append(rewards, total)
		t.logf("episode %d: reward=%g", episode, total)
		if t.Checkpoint != nil {
			if err := t.Checkpoint.Save(episode, t.Agent); err != nil {
				return rewards, err
			}
		}
		if (episode+1)%t.syncInterval() == 0 {
			t.Agent.SyncTarget()
		}
	}
	return rewards, nil
}

func (t *Trainer) runEpisode() (total float64, err error) {
	state, err := t.Env.Reset()
	if err != nil {
		return 0, err
	}
	action := t.decide(state)
	for step := 0; ; step++ {
		if step > 0 && (t.HoldFrames <= 1 || step%t.HoldFrames == 0) {
			action = t.decide(state)
		}
		nextState, reward, done, err := t.Env.Step(action)
		if err != nil {
			return total, err
		}
		total += reward
		if reward > 0 {
			t.logf("step %d: reward=%g", step, reward)
		} else if reward < 0 {
			t.logf("step %d: penalty=%g", step, reward)
		}
		transition := Transition{
			State:  state,
			Action: action,
			Reward: reward,
		}
		if !done {
			transition.NextState = nextState
		}
		t.Memory.Push(transition)
		loss, stepped := t.Agent.Optimize(t.Optimizer, t.Memory, t.BatchSize,
			t.Gamma)
		if stepped && t.LossInterval > 0 && step%t.LossInterval == 0 {
			t.logf("step %d: loss=%f", step, loss)
		}
		if done {
			return total, nil
		}
		state = nextState
	}
}

// decide picks an action for the state and advances the
// decision counter.
func (t *Trainer) decide(state anyvec.Vector) int {
	action := t.Explorer.Pick(t.Agent, state, t.stepsDone)
	t.stepsDone++
	return action
}

func (t *Trainer) syncInterval() int {
	if t.SyncInterval == 0 {
		return DefaultSyncInterval
	}
	return t.SyncInterval
}

func (t *Trainer) logf(format string, args ...interface{}) {
	if t.Log != nil {
		t.Log(fmt.Sprintf(format, args...))
	}
}
