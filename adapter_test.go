package dreamwarrior

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/unixpickle/anyvec/anyvec64"
)

// fakeEnv is a scripted ButtonEnv.
//
// Every frame is uniformly filled with frameValues[ticks],
// so processed pixels are easy to predict.
type fakeEnv struct {
	buttons     []string
	tickRewards []float64
	frameValues []uint8

	// doneTick, if positive, is the tick count at which
	// episodes end.
	doneTick int

	ticks      int
	resets     int
	masks      [][]bool
	recordings []string
	closed     bool
}

func (f *fakeEnv) Buttons() []string {
	return f.buttons
}

func (f *fakeEnv) Reset() error {
	f.resets++
	f.ticks = 0
	return nil
}

func (f *fakeEnv) Step(mask []bool) (float64, bool, error) {
	f.masks = append(f.masks, mask)
	var reward float64
	if f.ticks < len(f.tickRewards) {
		reward = f.tickRewards[f.ticks]
	}
	f.ticks++
	done := f.doneTick > 0 && f.ticks >= f.doneTick
	return reward, done, nil
}

func (f *fakeEnv) Image() ([]uint8, int, int, error) {
	var value uint8
	if f.ticks < len(f.frameValues) {
		value = f.frameValues[f.ticks]
	} else if len(f.frameValues) > 0 {
		value = f.frameValues[len(f.frameValues)-1]
	}
	buffer := make([]uint8, 2*2*3)
	for i := range buffer {
		buffer[i] = value
	}
	return buffer, 2, 2, nil
}

func (f *fakeEnv) Close() error {
	f.closed = true
	return nil
}

func (f *fakeEnv) RecordTo(path string) error {
	f.recordings = append(f.recordings, path)
	return nil
}

func testConfig() Config {
	return Config{
		Creator:   anyvec64.DefaultCreator{},
		Width:     2,
		Height:    2,
		FrameSkip: 4,
	}
}

// framePixel extracts the pixel value of one frame slot
// from a depth-minor stacked observation.
func framePixel(t *testing.T, state []float64, pixel, slot int) float64 {
	t.Helper()
	if len(state) != 2*2*StackDepth {
		t.Fatalf("state length should be %d but got %d", 2*2*StackDepth,
			len(state))
	}
	return state[pixel*StackDepth+slot]
}

func TestAdapterPrefill(t *testing.T) {
	env := &fakeEnv{buttons: []string{"A", "B"}, frameValues: []uint8{100}}
	adapter, err := NewAdapter(env, testConfig(), "game", "")
	if err != nil {
		t.Fatal(err)
	}
	state := vectorData(adapter.GetState())
	for i, x := range state {
		if math.Abs(x-100.0/255) > 1e-6 {
			t.Fatalf("value %d should be %f but got %f", i, 100.0/255, x)
		}
	}
}

func TestAdapterStepAggregation(t *testing.T) {
	env := &fakeEnv{
		buttons:     []string{"A", "B"},
		tickRewards: []float64{1, 2, 3, 4, 100},
		frameValues: []uint8{100, 0, 40, 10, 30},
	}
	adapter, err := NewAdapter(env, testConfig(), "game", "")
	if err != nil {
		t.Fatal(err)
	}

	state, reward, done, err := adapter.Step(0)
	if err != nil {
		t.Fatal(err)
	}
	if reward != 10 {
		t.Errorf("reward should be 10 but got %f", reward)
	}
	if done {
		t.Error("episode should not be done")
	}
	if env.ticks != 4 {
		t.Errorf("tick count should be 4 but got %d", env.ticks)
	}
	for _, mask := range env.masks {
		if !mask[0] || mask[1] {
			t.Fatal("every tick should press exactly the first button")
		}
	}

	// The newest slot holds the maximum of the last two
	// frames; the rest still hold the initial frame.
	data := vectorData(state)
	for slot := 0; slot < StackDepth-1; slot++ {
		if x := framePixel(t, data, 0, slot); math.Abs(x-100.0/255) > 1e-6 {
			t.Errorf("slot %d should be %f but got %f", slot, 100.0/255, x)
		}
	}
	if x := framePixel(t, data, 0, StackDepth-1); math.Abs(x-30.0/255) > 1e-6 {
		t.Errorf("newest slot should be %f but got %f", 30.0/255, x)
	}
}

func TestAdapterStackOrder(t *testing.T) {
	env := &fakeEnv{
		buttons:     []string{"A"},
		frameValues: []uint8{10, 20, 20, 30, 30, 40, 40, 50, 50},
	}
	cfg := testConfig()
	cfg.FrameSkip = 2
	adapter, err := NewAdapter(env, cfg, "game", "")
	if err != nil {
		t.Fatal(err)
	}
	var state []float64
	for i := 0; i < 2; i++ {
		vec, _, _, err := adapter.Step(0)
		if err != nil {
			t.Fatal(err)
		}
		state = vectorData(vec)
	}
	// Oldest to newest: two prefill copies, then the two
	// aggregated steps.
	expected := []float64{10.0 / 255, 10.0 / 255, 20.0 / 255, 30.0 / 255}
	for slot, x := range expected {
		if actual := framePixel(t, state, 0, slot); math.Abs(actual-x) > 1e-6 {
			t.Errorf("slot %d should be %f but got %f", slot, x, actual)
		}
	}
}

func TestAdapterStepOverride(t *testing.T) {
	env := &fakeEnv{
		buttons:     []string{"A"},
		tickRewards: []float64{1, 2, 100},
		frameValues: []uint8{100, 40, 10},
	}
	adapter, err := NewAdapter(env, testConfig(), "game", "")
	if err != nil {
		t.Fatal(err)
	}

	// The configured frame skip of 4 is overridden for
	// this one step.
	state, reward, done, err := adapter.StepN(0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if done {
		t.Error("episode should not be done")
	}
	if reward != 3 {
		t.Errorf("reward should be 3 but got %f", reward)
	}
	if env.ticks != 2 {
		t.Errorf("tick count should be 2 but got %d", env.ticks)
	}
	data := vectorData(state)
	if x := framePixel(t, data, 0, StackDepth-1); math.Abs(x-40.0/255) > 1e-6 {
		t.Errorf("newest slot should be %f but got %f", 40.0/255, x)
	}
}

func TestAdapterEarlyDone(t *testing.T) {
	env := &fakeEnv{
		buttons:     []string{"A"},
		tickRewards: []float64{1, 2, 100},
		frameValues: []uint8{0, 50, 20},
		doneTick:    2,
	}
	adapter, err := NewAdapter(env, testConfig(), "game", "")
	if err != nil {
		t.Fatal(err)
	}
	state, reward, done, err := adapter.Step(0)
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Error("episode should be done")
	}
	if reward != 3 {
		t.Errorf("reward should be 3 but got %f", reward)
	}
	if env.ticks != 2 {
		t.Errorf("tick count should be 2 but got %d", env.ticks)
	}
	data := vectorData(state)
	if x := framePixel(t, data, 0, StackDepth-1); math.Abs(x-50.0/255) > 1e-6 {
		t.Errorf("newest slot should be %f but got %f", 50.0/255, x)
	}
}

func TestAdapterSingleTickDone(t *testing.T) {
	env := &fakeEnv{
		buttons:     []string{"A"},
		frameValues: []uint8{0, 80},
		doneTick:    1,
	}
	adapter, err := NewAdapter(env, testConfig(), "game", "")
	if err != nil {
		t.Fatal(err)
	}
	state, _, done, err := adapter.Step(0)
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Error("episode should be done")
	}
	data := vectorData(state)
	if x := framePixel(t, data, 0, StackDepth-1); math.Abs(x-80.0/255) > 1e-6 {
		t.Errorf("newest slot should be %f but got %f", 80.0/255, x)
	}
}

func TestAdapterInvalidAction(t *testing.T) {
	env := &fakeEnv{buttons: []string{"A"}}
	adapter, err := NewAdapter(env, testConfig(), "game", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := adapter.Step(7); err == nil {
		t.Error("expected error for out-of-range action")
	} else if !strings.Contains(err.Error(), "invalid action") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAdapterReset(t *testing.T) {
	env := &fakeEnv{
		buttons:     []string{"A", "B"},
		frameValues: []uint8{100, 60, 60},
	}
	adapter, err := NewAdapter(env, testConfig(), "game", "")
	if err != nil {
		t.Fatal(err)
	}
	adapter.RecordDir = "out"

	state, err := adapter.Reset()
	if err != nil {
		t.Fatal(err)
	}
	if env.resets != 1 {
		t.Errorf("reset count should be 1 but got %d", env.resets)
	}
	if adapter.Episode() != 1 {
		t.Errorf("episode should be 1 but got %d", adapter.Episode())
	}

	// One tick with no buttons pressed precedes the first
	// observation.
	if len(env.masks) != 1 {
		t.Fatalf("tick count should be 1 but got %d", len(env.masks))
	}
	for _, pressed := range env.masks[0] {
		if pressed {
			t.Error("reset tick should press nothing")
		}
	}

	// The stack is re-filled with the new initial frame.
	for i, x := range vectorData(state) {
		if math.Abs(x-60.0/255) > 1e-6 {
			t.Fatalf("value %d should be %f but got %f", i, 60.0/255, x)
		}
	}

	if _, err := adapter.Reset(); err != nil {
		t.Fatal(err)
	}
	expected := []string{
		filepath.Join("out", "game-recordings", "game-00001.bk2"),
		filepath.Join("out", "game-recordings", "game-00002.bk2"),
	}
	if len(env.recordings) != 2 {
		t.Fatalf("recording count should be 2 but got %d", len(env.recordings))
	}
	for i, x := range expected {
		if env.recordings[i] != x {
			t.Errorf("recording %d should be %s but got %s", i, x,
				env.recordings[i])
		}
	}
}

func TestAdapterNoRecordDir(t *testing.T) {
	env := &fakeEnv{buttons: []string{"A"}, frameValues: []uint8{10}}
	adapter, err := NewAdapter(env, testConfig(), "game", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := adapter.Reset(); err != nil {
		t.Fatal(err)
	}
	if len(env.recordings) != 0 {
		t.Error("no recording should be requested")
	}
}

func TestAdapterClose(t *testing.T) {
	env := &fakeEnv{buttons: []string{"A"}}
	adapter, err := NewAdapter(env, testConfig(), "game", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := adapter.Close(); err != nil {
		t.Fatal(err)
	}
	if !env.closed {
		t.Error("underlying environment should be closed")
	}
}

func TestAdapterConfigFile(t *testing.T) {
	env := &fakeEnv{buttons: []string{"LEFT", "RIGHT", "A"}}
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte(`{"actions": ["A"]}`), 0644); err != nil {
		t.Fatal(err)
	}
	adapter, err := NewAdapter(env, testConfig(), "game", path)
	if err != nil {
		t.Fatal(err)
	}
	if adapter.Actions.Len() != 2 {
		t.Errorf("action count should be 2 but got %d", adapter.Actions.Len())
	}
}
