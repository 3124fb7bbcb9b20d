package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	xdg := t.TempDir()
	home := t.TempDir()

	tests := []struct {
		name     string
		explicit string
		xdg      string
		want     string
	}{
		{name: "explicit", explicit: "/tmp/custom.jsonc", xdg: xdg, want: "/tmp/custom.jsonc"},
		{name: "xdg", xdg: xdg, want: filepath.Join(xdg, "cyberscribe", "config.jsonc")},
		{name: "home", want: filepath.Join(home, ".config", "cyberscribe", "config.jsonc")},
		{name: "tilde", explicit: " ~/dotfiles/cyberscribe.jsonc ", want: filepath.Join(home, "dotfiles", "cyberscribe.jsonc")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HOME", home)
			t.Setenv("XDG_CONFIG_HOME", tt.xdg)

			got, err := ResolvePath(tt.explicit)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	tests := []struct {
		name     string
		contents *string
		exists   bool
		want     []string
	}{
		{name: "missing", want: []string{"not found"}},
		{name: "corrupt", contents: ptr("{ not-json }"), exists: true, want: []string{"parse config", "using defaults"}},
		{name: "invalid value", contents: ptr(`{"hotkey": "F2", "asr": {"beam_size": 0}}`), exists: true, want: []string{"asr.beam_size"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.jsonc")
			if tt.contents != nil {
				require.NoError(t, os.WriteFile(path, []byte(*tt.contents), 0o600))
			}

			loaded, err := Load(path)
			require.NoError(t, err)
			require.Equal(t, path, loaded.Path)
			require.Equal(t, tt.exists, loaded.Exists)
			require.Equal(t, Default(), loaded.Config)
			require.NotEmpty(t, loaded.Warnings)
			for _, want := range tt.want {
				require.Contains(t, loaded.Warnings[0].Message, want)
			}
		})
	}
}

func TestLoadJSONC(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`{
  // bare chord string
  "hotkey": "F10",
  "asr": {"language": "auto"},
  "paste": {
    "enable": false,
  },
}
`), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.True(t, loaded.Exists)
	require.Equal(t, "F10", loaded.Config.Hotkey.Chord)
	require.Equal(t, "auto", loaded.Config.ASR.Language)
	require.False(t, loaded.Config.Paste.Enable)
}

func TestLoadDirectoryFails(t *testing.T) {
	_, err := Load(t.TempDir())
	require.ErrorContains(t, err, "read config")
}
