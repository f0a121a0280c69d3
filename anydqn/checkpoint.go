package anydqn

import (
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

// A Checkpointer persists training progress so that a run
// can be resumed later.
//
// Only the policy network and the episode index are part
// of a checkpoint. Gradient transformer state is not,
// since anysgd transformers keep their moments unexported;
// a resumed run rebuilds it from scratch.
type Checkpointer interface {
	// Save records the agent's state after an episode.
	Save(episode int, agent *Agent) error
}

// FileCheckpointer saves the policy network with the
// serializer package, overwriting the previous
// checkpoint.
type FileCheckpointer struct {
	// Path of the checkpoint file.
	Path string
}

// Save writes the policy network and the episode index.
func (f *FileCheckpointer) Save(episode int, agent *Agent) error {
	return serializer.SaveAny(f.Path, agent.Policy, episode)
}

// LoadCheckpoint restores a policy network and the
// episode index it was saved after.
//
// A resumed run should set Trainer.StartEpisode to
// episode + 1. Gradient transformer state is not part of
// a checkpoint and is rebuilt from scratch.
func LoadCheckpoint(path string) (policy *QNetwork, episode int, err error) {
	if err := serializer.LoadAny(path, &policy, &episode); err != nil {
		return nil, 0, essentials.AddCtx("load checkpoint", err)
	}
	return policy, episode, nil
}
