package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Save writes cfg to path as indented JSON, replacing any existing file atomically.
func Save(path string, cfg Config) error {
	if _, err := Validate(cfg); err != nil {
		return fmt.Errorf("refusing to save invalid config: %w", err)
	}

	payload, err := json.MarshalIndent(toJSONC(cfg), "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	payload = append(payload, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.jsonc")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace config %q: %w", path, err)
	}
	return nil
}

func toJSONC(cfg Config) jsoncConfig {
	return jsoncConfig{
		Hotkey: &jsoncHotkey{
			Chord:   ptr(cfg.Hotkey.Chord),
			Backend: ptr(cfg.Hotkey.Backend),
		},
		ASR: &jsoncASR{
			Backend:     ptr(cfg.ASR.Backend),
			Language:    ptr(cfg.ASR.Language),
			ModelSize:   ptr(cfg.ASR.ModelSize),
			Device:      ptr(cfg.ASR.Device),
			ComputeType: ptr(cfg.ASR.ComputeType),
			BeamSize:    ptr(cfg.ASR.BeamSize),
			Python:      ptr(cfg.ASR.Python),
			OpenAI: &jsoncOpenAI{
				Model:     ptr(cfg.ASR.OpenAI.Model),
				BaseURL:   ptr(cfg.ASR.OpenAI.BaseURL),
				APIKeyEnv: ptr(cfg.ASR.OpenAI.APIKeyEnv),
			},
		},
		Audio: &jsoncAudio{
			Input:    ptr(cfg.Audio.Input),
			Fallback: ptr(cfg.Audio.Fallback),
		},
		Paste: &jsoncPaste{
			Enable:   ptr(cfg.Paste.Enable),
			Shortcut: ptr(cfg.Paste.Shortcut),
			SettleMS: ptr(cfg.Paste.SettleMS),
		},
		Indicator: &jsoncIndicator{
			Enable:            ptr(cfg.Indicator.Enable),
			Backend:           ptr(cfg.Indicator.Backend),
			DesktopAppName:    ptr(cfg.Indicator.DesktopAppName),
			SoundEnable:       ptr(cfg.Indicator.SoundEnable),
			SoundStartFile:    ptr(cfg.Indicator.SoundStartFile),
			SoundStopFile:     ptr(cfg.Indicator.SoundStopFile),
			SoundCompleteFile: ptr(cfg.Indicator.SoundCompleteFile),
			SoundErrorFile:    ptr(cfg.Indicator.SoundErrorFile),
			ErrorTimeoutMS:    ptr(cfg.Indicator.ErrorTimeoutMS),
		},
		Tray:         &jsoncTray{Enable: ptr(cfg.Tray.Enable)},
		Settings:     &jsoncSettings{TerminalCmd: ptr(cfg.Settings.TerminalCmd.Raw)},
		Transcript:   &jsoncTranscript{TrailingSpace: ptr(cfg.Transcript.TrailingSpace)},
		ClipboardCmd: ptr(cfg.Clipboard.Raw),
		PasteCmd:     ptr(cfg.PasteCmd.Raw),
		Debug:        &jsoncDebug{AudioDump: ptr(cfg.Debug.EnableAudioDump)},
	}
}

func ptr[T any](v T) *T { return &v }
