package dreamwarrior

import (
	"errors"

	"github.com/unixpickle/anyvec"
)

// ErrInvalidAction is returned when an action index does
// not resolve to a known action.
var ErrInvalidAction = errors.New("invalid action")

// An Env is a discrete-action environment which produces
// stacked, pre-processed observations.
//
// Reset starts a new episode and returns its first
// observation.
//
// Step performs one aggregated step and returns the next
// observation, the reward earned during the step, and a
// flag indicating the end of the episode.
type Env interface {
	Reset() (state anyvec.Vector, err error)
	Step(action int) (state anyvec.Vector, reward float64,
		done bool, err error)
}

// A ButtonEnv is a raw emulated environment controlled by
// a mask of pressed buttons.
//
// Buttons returns the button names in a fixed order.
// Masks passed to Step have one entry per button.
//
// Image renders the current frame as 8-bit RGB data in
// row-major order.
// It must be callable at any time, including before the
// first Reset.
type ButtonEnv interface {
	Buttons() []string
	Reset() error
	Step(mask []bool) (reward float64, done bool, err error)
	Image() (rgb []uint8, width, height int, err error)
	Close() error
}

// A Recorder is an environment which can record
// demonstrations of its episodes.
//
// RecordTo directs the next episode's recording to the
// given file path.
type Recorder interface {
	RecordTo(path string) error
}

// Config bundles the settings shared by every component
// of a training run.
//
// The Creator decides where vectors are allocated, so it
// doubles as the compute device selection.
type Config struct {
	// Creator allocates all vectors.
	Creator anyvec.Creator

	// Width and Height of processed frames.
	Width  int
	Height int

	// FrameSkip is the number of emulator ticks
	// aggregated into one observed step.
	FrameSkip int
}

// DefaultConfig returns a Config with the standard frame
// geometry for console games.
func DefaultConfig(c anyvec.Creator) Config {
	return Config{
		Creator:   c,
		Width:     84,
		Height:    84,
		FrameSkip: 4,
	}
}
