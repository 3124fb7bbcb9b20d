package tray

import _ "embed"

var (
	//go:embed assets/idle.png
	iconIdle []byte
	//go:embed assets/recording.png
	iconRecording []byte
)

func idleIcon() []byte { return iconIdle }

func recordingIcon() []byte { return iconRecording }
