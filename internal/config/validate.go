package config

import (
	"fmt"
	"slices"
	"strings"
)

// Known option values offered by the settings form. Other values are accepted
// with a warning so newer model names keep working.
var (
	Languages    = []string{"auto", "en", "fr", "de", "es", "it", "ja", "zh", "nl", "uk", "pt", "ru", "ko", "pl", "tr", "ar", "cs", "el", "fi", "he", "hi", "hu", "id", "ms", "no", "ro", "sv", "th", "vi"}
	ModelSizes   = []string{"tiny", "base", "small", "medium", "large-v3"}
	Devices      = []string{"cpu", "cuda", "auto"}
	ComputeTypes = []string{"int8", "int8_float16", "float16", "float32"}
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if strings.TrimSpace(cfg.Hotkey.Chord) == "" {
		return nil, fmt.Errorf("hotkey.chord must not be empty")
	}
	if cfg.Hotkey.Backend != "grab" && cfg.Hotkey.Backend != "hook" {
		return nil, fmt.Errorf("hotkey.backend must be one of: grab, hook")
	}

	switch cfg.ASR.Backend {
	case "faster-whisper":
		if strings.TrimSpace(cfg.ASR.Python) == "" {
			return nil, fmt.Errorf("asr.python must not be empty when asr.backend=faster-whisper")
		}
	case "openai":
		if strings.TrimSpace(cfg.ASR.OpenAI.Model) == "" {
			return nil, fmt.Errorf("asr.openai.model must not be empty when asr.backend=openai")
		}
		if strings.TrimSpace(cfg.ASR.OpenAI.APIKeyEnv) == "" {
			return nil, fmt.Errorf("asr.openai.api_key_env must not be empty when asr.backend=openai")
		}
	default:
		return nil, fmt.Errorf("asr.backend must be one of: faster-whisper, openai")
	}
	if strings.TrimSpace(cfg.ASR.Language) == "" {
		return nil, fmt.Errorf("asr.language must not be empty")
	}
	if strings.TrimSpace(cfg.ASR.ModelSize) == "" {
		return nil, fmt.Errorf("asr.model_size must not be empty")
	}
	if strings.TrimSpace(cfg.ASR.Device) == "" {
		return nil, fmt.Errorf("asr.device must not be empty")
	}
	if strings.TrimSpace(cfg.ASR.ComputeType) == "" {
		return nil, fmt.Errorf("asr.compute_type must not be empty")
	}
	if cfg.ASR.BeamSize <= 0 {
		return nil, fmt.Errorf("asr.beam_size must be > 0")
	}
	warnings = appendUnknown(warnings, "asr.language", cfg.ASR.Language, Languages)
	warnings = appendUnknown(warnings, "asr.model_size", cfg.ASR.ModelSize, ModelSizes)
	warnings = appendUnknown(warnings, "asr.device", cfg.ASR.Device, Devices)
	warnings = appendUnknown(warnings, "asr.compute_type", cfg.ASR.ComputeType, ComputeTypes)

	if cfg.Paste.SettleMS < 0 {
		return nil, fmt.Errorf("paste.settle_ms must be >= 0")
	}
	if cfg.Paste.Enable && cfg.PasteCmd.Raw != "" && len(cfg.PasteCmd.Argv) == 0 {
		return nil, fmt.Errorf("paste_cmd is configured but empty")
	}
	if cfg.Paste.Enable && len(cfg.PasteCmd.Argv) == 0 && strings.TrimSpace(cfg.Paste.Shortcut) == "" {
		return nil, fmt.Errorf("paste.shortcut must not be empty when paste.enable=true and paste_cmd is unset")
	}
	if cfg.Clipboard.Raw != "" && len(cfg.Clipboard.Argv) == 0 {
		return nil, fmt.Errorf("clipboard_cmd is configured but empty")
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Indicator.Backend))
	if backend != "hypr" && backend != "desktop" {
		return nil, fmt.Errorf("indicator.backend must be one of: hypr, desktop")
	}
	if backend == "desktop" && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.backend=desktop")
	}
	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.error_timeout_ms must be >= 0")
	}

	return warnings, nil
}

func appendUnknown(warnings []Warning, key string, value string, known []string) []Warning {
	if slices.Contains(known, value) {
		return warnings
	}
	return append(warnings, Warning{Message: fmt.Sprintf("%s %q is not a known value (%s)", key, value, strings.Join(known, ", "))})
}
