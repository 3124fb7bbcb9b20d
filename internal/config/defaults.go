package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Hotkey: HotkeyConfig{Chord: "F8", Backend: "grab"},
		ASR: ASRConfig{
			Backend:     "faster-whisper",
			Language:    "fr",
			ModelSize:   "base",
			Device:      "cpu",
			ComputeType: "int8",
			BeamSize:    5,
			Python:      "python3",
			OpenAI: OpenAIConfig{
				Model:     "whisper-1",
				APIKeyEnv: "OPENAI_API_KEY",
			},
		},
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
		},
		Paste: PasteConfig{Enable: true, Shortcut: "CTRL,V", SettleMS: 100},
		Indicator: IndicatorConfig{
			Enable:         true,
			Backend:        "desktop",
			DesktopAppName: "cyberscribe",
			SoundEnable:    true,
			ErrorTimeoutMS: 1600,
		},
		Tray:       TrayConfig{Enable: true},
		Transcript: TranscriptConfig{TrailingSpace: false},
		Debug:      DebugConfig{},
	}
}
