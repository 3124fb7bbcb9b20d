// Package fsm defines the recording state machine driven by the orchestrator.
package fsm

import (
	"errors"
	"fmt"
)

type State string

type Event string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StateStopped   State = "stopped"
)

const (
	// EventToggle flips between idle and recording.
	EventToggle Event = "toggle"
	// EventAbort ends a recording whose capture failed underneath it.
	EventAbort Event = "abort"
	EventQuit  Event = "quit"
)

var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrUnknownState      = errors.New("unknown state")
)

// edges lists every legal move. StateStopped is terminal.
var edges = map[State]map[Event]State{
	StateIdle: {
		EventToggle: StateRecording,
		EventQuit:   StateStopped,
	},
	StateRecording: {
		EventToggle: StateIdle,
		EventAbort:  StateIdle,
		EventQuit:   StateStopped,
	},
	StateStopped: {},
}

// Transition returns the state event leads to. On error the current state is
// returned unchanged.
func Transition(current State, event Event) (State, error) {
	moves, known := edges[current]
	if !known {
		return current, fmt.Errorf("%w %q", ErrUnknownState, current)
	}
	next, ok := moves[event]
	if !ok {
		return current, fmt.Errorf("%w: %s --(%s)--> ?", ErrInvalidTransition, current, event)
	}
	return next, nil
}
