package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

type jsoncConfig struct {
	Hotkey     *jsoncHotkey     `json:"hotkey,omitempty"`
	ASR        *jsoncASR        `json:"asr,omitempty"`
	Audio      *jsoncAudio      `json:"audio,omitempty"`
	Paste      *jsoncPaste      `json:"paste,omitempty"`
	Indicator  *jsoncIndicator  `json:"indicator,omitempty"`
	Tray       *jsoncTray       `json:"tray,omitempty"`
	Settings   *jsoncSettings   `json:"settings,omitempty"`
	Transcript *jsoncTranscript `json:"transcript,omitempty"`

	ClipboardCmd *string     `json:"clipboard_cmd,omitempty"`
	PasteCmd     *string     `json:"paste_cmd,omitempty"`
	Debug        *jsoncDebug `json:"debug,omitempty"`
}

// jsoncHotkey accepts either a bare chord string or an object.
type jsoncHotkey struct {
	Chord   *string `json:"chord,omitempty"`
	Backend *string `json:"backend,omitempty"`
}

func (h *jsoncHotkey) UnmarshalJSON(data []byte) error {
	var chord string
	if err := json.Unmarshal(data, &chord); err == nil {
		h.Chord = &chord
		return nil
	}

	type plain jsoncHotkey
	var obj plain
	decoder := json.NewDecoder(strings.NewReader(string(data)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&obj); err != nil {
		return fmt.Errorf("hotkey: expected chord string or object: %w", err)
	}
	*h = jsoncHotkey(obj)
	return nil
}

type jsoncASR struct {
	Backend     *string      `json:"backend,omitempty"`
	Language    *string      `json:"language,omitempty"`
	ModelSize   *string      `json:"model_size,omitempty"`
	Device      *string      `json:"device,omitempty"`
	ComputeType *string      `json:"compute_type,omitempty"`
	BeamSize    *int         `json:"beam_size,omitempty"`
	Python      *string      `json:"python,omitempty"`
	OpenAI      *jsoncOpenAI `json:"openai,omitempty"`
}

type jsoncOpenAI struct {
	Model     *string `json:"model,omitempty"`
	BaseURL   *string `json:"base_url,omitempty"`
	APIKeyEnv *string `json:"api_key_env,omitempty"`
}

type jsoncAudio struct {
	Input    *string `json:"input,omitempty"`
	Fallback *string `json:"fallback,omitempty"`
}

type jsoncPaste struct {
	Enable   *bool   `json:"enable,omitempty"`
	Shortcut *string `json:"shortcut,omitempty"`
	SettleMS *int    `json:"settle_ms,omitempty"`
}

type jsoncIndicator struct {
	Enable            *bool   `json:"enable,omitempty"`
	Backend           *string `json:"backend,omitempty"`
	DesktopAppName    *string `json:"desktop_app_name,omitempty"`
	SoundEnable       *bool   `json:"sound_enable,omitempty"`
	SoundStartFile    *string `json:"sound_start_file,omitempty"`
	SoundStopFile     *string `json:"sound_stop_file,omitempty"`
	SoundCompleteFile *string `json:"sound_complete_file,omitempty"`
	SoundErrorFile    *string `json:"sound_error_file,omitempty"`
	ErrorTimeoutMS    *int    `json:"error_timeout_ms,omitempty"`
}

type jsoncTray struct {
	Enable *bool `json:"enable,omitempty"`
}

type jsoncSettings struct {
	TerminalCmd *string `json:"terminal_cmd,omitempty"`
}

type jsoncTranscript struct {
	TrailingSpace *bool `json:"trailing_space,omitempty"`
}

type jsoncDebug struct {
	AudioDump *bool `json:"audio_dump,omitempty"`
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, withPosition(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, withPosition(normalized, err)
	}

	cfg := base
	warnings, err := payload.merge(&cfg)
	if err != nil {
		return Config{}, nil, err
	}

	more, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, append(warnings, more...), nil
}

// merge copies every field present in the payload onto cfg.
func (p jsoncConfig) merge(cfg *Config) ([]Warning, error) {
	var warnings []Warning

	if h := p.Hotkey; h != nil {
		setTrimmed(&cfg.Hotkey.Chord, h.Chord)
		setLower(&cfg.Hotkey.Backend, h.Backend)
	}

	if a := p.ASR; a != nil {
		setLower(&cfg.ASR.Backend, a.Backend)
		if a.Language != nil {
			setLower(&cfg.ASR.Language, a.Language)
			if cfg.ASR.Language == "" {
				warnings = append(warnings, Warning{Message: "asr.language is empty; using auto-detect"})
				cfg.ASR.Language = "auto"
			}
		}
		setTrimmed(&cfg.ASR.ModelSize, a.ModelSize)
		setLower(&cfg.ASR.Device, a.Device)
		setLower(&cfg.ASR.ComputeType, a.ComputeType)
		set(&cfg.ASR.BeamSize, a.BeamSize)
		setTrimmed(&cfg.ASR.Python, a.Python)
		if o := a.OpenAI; o != nil {
			setTrimmed(&cfg.ASR.OpenAI.Model, o.Model)
			setTrimmed(&cfg.ASR.OpenAI.BaseURL, o.BaseURL)
			setTrimmed(&cfg.ASR.OpenAI.APIKeyEnv, o.APIKeyEnv)
		}
	}

	if a := p.Audio; a != nil {
		set(&cfg.Audio.Input, a.Input)
		set(&cfg.Audio.Fallback, a.Fallback)
	}

	if v := p.Paste; v != nil {
		set(&cfg.Paste.Enable, v.Enable)
		setTrimmed(&cfg.Paste.Shortcut, v.Shortcut)
		set(&cfg.Paste.SettleMS, v.SettleMS)
	}

	if ind := p.Indicator; ind != nil {
		set(&cfg.Indicator.Enable, ind.Enable)
		setTrimmed(&cfg.Indicator.Backend, ind.Backend)
		setTrimmed(&cfg.Indicator.DesktopAppName, ind.DesktopAppName)
		set(&cfg.Indicator.SoundEnable, ind.SoundEnable)
		setTrimmed(&cfg.Indicator.SoundStartFile, ind.SoundStartFile)
		setTrimmed(&cfg.Indicator.SoundStopFile, ind.SoundStopFile)
		setTrimmed(&cfg.Indicator.SoundCompleteFile, ind.SoundCompleteFile)
		setTrimmed(&cfg.Indicator.SoundErrorFile, ind.SoundErrorFile)
		set(&cfg.Indicator.ErrorTimeoutMS, ind.ErrorTimeoutMS)
	}

	if p.Tray != nil {
		set(&cfg.Tray.Enable, p.Tray.Enable)
	}
	if p.Transcript != nil {
		set(&cfg.Transcript.TrailingSpace, p.Transcript.TrailingSpace)
	}
	if p.Debug != nil {
		set(&cfg.Debug.EnableAudioDump, p.Debug.AudioDump)
	}

	commands := []struct {
		key string
		raw *string
		dst *CommandConfig
	}{
		{key: "clipboard_cmd", raw: p.ClipboardCmd, dst: &cfg.Clipboard},
		{key: "paste_cmd", raw: p.PasteCmd, dst: &cfg.PasteCmd},
	}
	if p.Settings != nil {
		commands = append(commands, struct {
			key string
			raw *string
			dst *CommandConfig
		}{key: "settings.terminal_cmd", raw: p.Settings.TerminalCmd, dst: &cfg.Settings.TerminalCmd})
	}
	for _, c := range commands {
		if c.raw == nil {
			continue
		}
		command, err := parseCommand(c.key, *c.raw)
		if err != nil {
			return nil, err
		}
		*c.dst = command
	}

	return warnings, nil
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setTrimmed(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setLower(dst *string, src *string) {
	if src != nil {
		*dst = strings.ToLower(strings.TrimSpace(*src))
	}
}

func parseCommand(key string, raw string) (CommandConfig, error) {
	argv, err := splitCommand(raw)
	if err != nil {
		return CommandConfig{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return CommandConfig{Raw: raw, Argv: argv}, nil
}
