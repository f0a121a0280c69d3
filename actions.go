package dreamwarrior

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/unixpickle/essentials"
)

// An ActionSet maps reduced action indices to button
// masks understood by a ButtonEnv.
//
// The last action in every set is a no-op which presses
// no buttons.
type ActionSet struct {
	names []string
	masks [][]bool
}

// NewActionSet creates an ActionSet from a list of action
// names, validating each name against the environment's
// button list.
//
// Every name must match exactly one button; an unknown
// name is a configuration error.
// A trailing no-op entry is appended automatically.
func NewActionSet(names, buttons []string) (*ActionSet, error) {
	res := &ActionSet{}
	for _, name := range names {
		mask := make([]bool, len(buttons))
		found := false
		for i, button := range buttons {
			if button == name {
				mask[i] = true
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("create action set: no button for action %q", name)
		}
		res.names = append(res.names, name)
		res.masks = append(res.masks, mask)
	}
	res.names = append(res.names, "")
	res.masks = append(res.masks, make([]bool, len(buttons)))
	return res, nil
}

// FullActionSet creates the fallback ActionSet used when
// no game configuration exists: every button becomes its
// own action.
func FullActionSet(buttons []string) *ActionSet {
	res, err := NewActionSet(buttons, buttons)
	if err != nil {
		panic(err)
	}
	return res
}

// LoadActionSet reads a game configuration file and
// builds the reduced ActionSet it describes.
//
// The file is a JSON object with an "actions" array of
// button names.
func LoadActionSet(path string, buttons []string) (set *ActionSet, err error) {
	defer essentials.AddCtxTo("load action set", &err)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Actions []string `json:"actions"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}
	return NewActionSet(parsed.Actions, buttons)
}

// Len returns the number of actions, including the no-op.
func (a *ActionSet) Len() int {
	return len(a.names)
}

// Name returns the name of an action.
// The no-op action has an empty name.
func (a *ActionSet) Name(i int) string {
	return a.names[i]
}

// Mask returns the button mask for an action index.
//
// It fails with ErrInvalidAction if the index does not
// resolve to a known action.
func (a *ActionSet) Mask(i int) ([]bool, error) {
	if i < 0 || i >= len(a.masks) {
		return nil, ErrInvalidAction
	}
	mask := make([]bool, len(a.masks[i]))
	copy(mask, a.masks[i])
	return mask, nil
}
