// Package config resolves, parses, validates, persists, and defaults cyberscribe configuration.
package config

// Config is the fully materialized runtime configuration used by cyberscribe.
//
// Consumers receive it by value from a Store snapshot and must treat it as read-only;
// changes are applied by replacing the whole value.
type Config struct {
	Hotkey     HotkeyConfig
	ASR        ASRConfig
	Audio      AudioConfig
	Paste      PasteConfig
	Clipboard  CommandConfig
	PasteCmd   CommandConfig
	Indicator  IndicatorConfig
	Tray       TrayConfig
	Settings   SettingsConfig
	Transcript TranscriptConfig
	Debug      DebugConfig
}

// HotkeyConfig selects the global toggle chord and the registration backend.
type HotkeyConfig struct {
	Chord   string
	Backend string
}

// ASRConfig controls which speech model is loaded and how it is invoked.
type ASRConfig struct {
	Backend     string
	Language    string
	ModelSize   string
	Device      string
	ComputeType string
	BeamSize    int
	Python      string
	OpenAI      OpenAIConfig
}

// OpenAIConfig configures the OpenAI-compatible transcription backend.
type OpenAIConfig struct {
	Model     string
	BaseURL   string
	APIKeyEnv string
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string
	Fallback string
}

// PasteConfig controls post-transcription paste behavior.
type PasteConfig struct {
	Enable   bool
	Shortcut string
	SettleMS int
}

// IndicatorConfig controls notification and audio cue behavior.
type IndicatorConfig struct {
	Enable            bool
	Backend           string
	DesktopAppName    string
	SoundEnable       bool
	SoundStartFile    string
	SoundStopFile     string
	SoundCompleteFile string
	SoundErrorFile    string
	ErrorTimeoutMS    int
}

// TrayConfig toggles the system tray icon.
type TrayConfig struct {
	Enable bool
}

// SettingsConfig controls how the settings form is opened when no terminal is attached.
type SettingsConfig struct {
	TerminalCmd CommandConfig
}

// TranscriptConfig controls transcript formatting before delivery.
type TranscriptConfig struct {
	TrailingSpace bool
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	EnableAudioDump bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
