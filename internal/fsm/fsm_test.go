package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToggleCycles(t *testing.T) {
	state := StateIdle
	want := []State{StateRecording, StateIdle, StateRecording, StateIdle}
	for _, w := range want {
		var err error
		state, err = Transition(state, EventToggle)
		require.NoError(t, err)
		require.Equal(t, w, state)
	}
}

func TestTransition(t *testing.T) {
	tests := []struct {
		from  State
		event Event
		want  State
		err   error
	}{
		{from: StateIdle, event: EventQuit, want: StateStopped},
		{from: StateRecording, event: EventQuit, want: StateStopped},
		{from: StateRecording, event: EventAbort, want: StateIdle},
		{from: StateIdle, event: EventAbort, want: StateIdle, err: ErrInvalidTransition},
		{from: StateIdle, event: Event("start"), want: StateIdle, err: ErrInvalidTransition},
		{from: StateStopped, event: EventToggle, want: StateStopped, err: ErrInvalidTransition},
		{from: StateStopped, event: EventQuit, want: StateStopped, err: ErrInvalidTransition},
		{from: State("mystery"), event: EventToggle, want: State("mystery"), err: ErrUnknownState},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.event), func(t *testing.T) {
			next, err := Transition(tt.from, tt.event)
			require.Equal(t, tt.want, next)
			if tt.err == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.err)
		})
	}
}
