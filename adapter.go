package dreamwarrior

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
)

// StackDepth is the number of recent frames joined into
// one observation.
const StackDepth = 4

// An Adapter presents a ButtonEnv as an Env with
// frame-skip aggregation and a stack of the last four
// processed frames.
//
// Observations are laid out depth-minor (the four frames
// of a pixel are adjacent, oldest first), matching the
// input layout of anyconv networks.
type Adapter struct {
	// Env is the wrapped raw environment.
	Env ButtonEnv

	// Actions translates action indices into button
	// masks for Env.
	Actions *ActionSet

	// Proc produces observation frames.
	Proc *FrameProcessor

	// FrameSkip is the number of raw ticks aggregated
	// into one step.
	FrameSkip int

	// Name identifies this adapter in recording file
	// names.
	Name string

	// RecordDir, if non-empty, is the directory under
	// which episode recordings are stored.
	// It only has an effect if Env is a Recorder.
	RecordDir string

	// Ring of the last StackDepth processed frames.
	// The oldest frame is at pos.
	frames [StackDepth]anyvec.Vector
	pos    int

	episode     int
	interleaver anyvec.Mapper
}

// NewAdapter creates an Adapter around env.
//
// If configPath is non-empty, the reduced action set is
// loaded from it; otherwise every env button becomes its
// own action.
//
// The frame stack is pre-filled with copies of the
// current frame, so GetState is usable immediately.
func NewAdapter(env ButtonEnv, cfg Config, name, configPath string) (adapter *Adapter, err error) {
	defer essentials.AddCtxTo("create adapter", &err)
	actions := FullActionSet(env.Buttons())
	if configPath != "" {
		actions, err = LoadActionSet(configPath, env.Buttons())
		if err != nil {
			return nil, err
		}
	}
	res := &Adapter{
		Env:     env,
		Actions: actions,
		Proc: &FrameProcessor{
			Creator: cfg.Creator,
			Width:   cfg.Width,
			Height:  cfg.Height,
		},
		FrameSkip: cfg.FrameSkip,
		Name:      name,
	}
	if res.FrameSkip < 1 {
		panic("frame skip must be positive")
	}
	frame, err := res.frame()
	if err != nil {
		return nil, err
	}
	res.fillStack(frame)
	return res, nil
}

// Reset restores the environment to its initial state and
// begins a new episode.
//
// All buttons are released for one tick before the first
// observation is taken.
// If the environment supports recording, a new recording
// file named after the adapter and the episode number is
// opened under RecordDir.
func (a *Adapter) Reset() (state anyvec.Vector, err error) {
	defer essentials.AddCtxTo("reset adapter", &err)
	if err := a.Env.Reset(); err != nil {
		return nil, err
	}
	if _, _, err := a.Env.Step(make([]bool, len(a.Env.Buttons()))); err != nil {
		return nil, err
	}
	a.episode++
	if rec, ok := a.Env.(Recorder); ok && a.RecordDir != "" {
		path := filepath.Join(a.RecordDir, a.Name+"-recordings",
			fmt.Sprintf("%s-%05d.bk2", a.Name, a.episode))
		if err := rec.RecordTo(path); err != nil {
			return nil, err
		}
	}
	frame, err := a.frame()
	if err != nil {
		return nil, err
	}
	a.fillStack(frame)
	return a.GetState(), nil
}

// Step runs one aggregated step with the configured
// frame skip.
func (a *Adapter) Step(action int) (anyvec.Vector, float64, bool, error) {
	return a.StepN(action, a.FrameSkip)
}

// StepN runs one aggregated step with an explicit frame
// skip.
//
// The action is repeated for up to frameSkip raw ticks,
// summing the rewards and stopping early when the episode
// ends.
// The element-wise maximum of the last two frames becomes
// the new entry in the frame stack, suppressing
// single-tick flicker.
func (a *Adapter) StepN(action, frameSkip int) (state anyvec.Vector,
	reward float64, done bool, err error) {
	defer essentials.AddCtxTo("step adapter", &err)
	if frameSkip < 1 {
		panic("frame skip must be positive")
	}
	mask, err := a.Actions.Mask(action)
	if err != nil {
		return nil, 0, false, err
	}
	var prev, last anyvec.Vector
	for i := 0; i < frameSkip; i++ {
		var tickReward float64
		tickReward, done, err = a.Env.Step(mask)
		if err != nil {
			return nil, 0, false, err
		}
		reward += tickReward
		frame, err := a.frame()
		if err != nil {
			return nil, 0, false, err
		}
		prev, last = last, frame
		if done {
			break
		}
	}
	a.pushFrame(maxFrames(prev, last))
	return a.GetState(), reward, done, nil
}

// GetState returns the current stacked observation.
//
// The result always contains StackDepth frames; right
// after construction or Reset they are all copies of the
// initial frame.
func (a *Adapter) GetState() anyvec.Vector {
	c := a.Proc.Creator
	ordered := make([]anyvec.Vector, 0, StackDepth)
	for i := 0; i < StackDepth; i++ {
		ordered = append(ordered, a.frames[(a.pos+i)%StackDepth])
	}
	joined := c.Concat(ordered...)
	if a.interleaver == nil {
		a.interleaver = interleaveMapper(c, a.Proc.Width*a.Proc.Height)
	}
	out := c.MakeVector(joined.Len())
	a.interleaver.Map(joined, out)
	return out
}

// Episode returns the number of episodes started so far.
func (a *Adapter) Episode() int {
	return a.episode
}

// Close closes the underlying environment.
func (a *Adapter) Close() error {
	return a.Env.Close()
}

func (a *Adapter) frame() (anyvec.Vector, error) {
	rgb, width, height, err := a.Env.Image()
	if err != nil {
		return nil, err
	}
	return a.Proc.Process(rgb, width, height), nil
}

func (a *Adapter) fillStack(frame anyvec.Vector) {
	for i := range a.frames {
		a.frames[i] = frame
	}
	a.pos = 0
}

func (a *Adapter) pushFrame(frame anyvec.Vector) {
	a.frames[a.pos] = frame
	a.pos = (a.pos + 1) % StackDepth
}

// maxFrames takes the element-wise maximum of two frames.
// The first frame may be nil when the episode ended after
// a single tick, in which case the second one is used
// directly.
func maxFrames(a, b anyvec.Vector) anyvec.Vector {
	if a == nil {
		return b
	}
	c := a.Creator()
	d1 := c.Float64Slice(a.Data())
	d2 := c.Float64Slice(b.Data())
	out := make([]float64, len(d1))
	for i, x := range d1 {
		out[i] = math.Max(x, d2[i])
	}
	return c.MakeVectorData(c.MakeNumericList(out))
}

// interleaveMapper builds a Mapper which converts
// StackDepth concatenated frame planes into depth-minor
// order.
func interleaveMapper(c anyvec.Creator, planeSize int) anyvec.Mapper {
	table := make([]int, 0, planeSize*StackDepth)
	for p := 0; p < planeSize; p++ {
		for f := 0; f < StackDepth; f++ {
			table = append(table, f*planeSize+p)
		}
	}
	return c.MakeMapper(planeSize*StackDepth, table)
}
