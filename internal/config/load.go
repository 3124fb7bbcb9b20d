package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	appDir   = "cyberscribe"
	fileName = "config.jsonc"
)

// Loaded is the outcome of Load. Warnings describe anything that was ignored
// or replaced with a default.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// ResolvePath returns explicit when given (expanding a leading "~/"), or
// config.jsonc under the user config dir.
func ResolvePath(explicit string) (string, error) {
	explicit = strings.TrimSpace(explicit)
	if strings.HasPrefix(explicit, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand %q: %w", explicit, err)
		}
		return filepath.Join(home, explicit[2:]), nil
	}
	if explicit != "" {
		return explicit, nil
	}

	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, appDir, fileName), nil
}

// Load reads the config at explicit (or the default path). It only fails
// when the path cannot be resolved or read; a missing, malformed, or invalid
// file yields the defaults plus a warning.
func Load(explicit string) (Loaded, error) {
	path, err := ResolvePath(explicit)
	if err != nil {
		return Loaded{}, err
	}
	loaded := Loaded{Path: path, Config: Default()}

	content, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		loaded.Warnings = []Warning{{Message: fmt.Sprintf("config file %q not found; using defaults", path)}}
		return loaded, nil
	case err != nil:
		return Loaded{}, fmt.Errorf("read config %q: %w", path, err)
	}
	loaded.Exists = true

	cfg, warnings, err := Parse(string(content), loaded.Config)
	if err != nil {
		loaded.Warnings = []Warning{{Message: fmt.Sprintf("parse config %q: %v; using defaults", path, err)}}
		return loaded, nil
	}
	loaded.Config = cfg
	loaded.Warnings = warnings
	return loaded, nil
}

// Parse applies JSONC content on top of base and validates the result. Blank
// content validates base as is.
func Parse(content string, base Config) (Config, []Warning, error) {
	if strings.TrimSpace(content) != "" {
		return parseJSONC(content, base)
	}
	warnings, err := Validate(base)
	if err != nil {
		return Config{}, nil, err
	}
	return base, warnings, nil
}
