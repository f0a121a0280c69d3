// Package dreamwarrior trains value-based agents to play
// emulated console games from raw frames.
//
// The root package handles the environment side of
// training: button-mask translation, frame processing,
// and frame-stacked observations.
// The anydqn subpackage implements the learner.
package dreamwarrior
