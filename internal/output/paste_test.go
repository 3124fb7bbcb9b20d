package output

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/micmonay/keybd_event"
	"github.com/stretchr/testify/require"

	"github.com/rbright/cyberscribe/internal/config"
)

func TestPasteSendsShortcutToFocusedWindow(t *testing.T) {
	calls := installHyprctl(t, `{"address":"0x7f00","class":"Alacritty","title":"shell"}`, "")

	cfg := config.Default()
	cfg.PasteCmd = config.CommandConfig{}
	cfg.Paste.Shortcut = "CTRL SHIFT,V"

	require.NoError(t, paste(context.Background(), cfg, slog.New(slog.DiscardHandler)))

	data, err := os.ReadFile(calls)
	require.NoError(t, err)
	require.Equal(t, "--quiet dispatch sendshortcut CTRL SHIFT,V,address:0x7f00\n", string(data))
}

func TestPastePrefersConfiguredCommand(t *testing.T) {
	calls := installHyprctl(t, `{"address":"0x7f00"}`, "")
	marker := filepath.Join(t.TempDir(), "pasted")

	cfg := config.Default()
	cfg.PasteCmd = config.CommandConfig{Argv: []string{writeTouchScript(t, marker)}}

	require.NoError(t, paste(context.Background(), cfg, slog.New(slog.DiscardHandler)))

	_, err := os.Stat(marker)
	require.NoError(t, err)
	_, err = os.Stat(calls)
	require.True(t, os.IsNotExist(err))
}

func TestPasteFailsWithoutFocusedWindow(t *testing.T) {
	installHyprctl(t, `{"address":""}`, "")

	cfg := config.Default()
	cfg.PasteCmd = config.CommandConfig{}

	err := paste(context.Background(), cfg, slog.New(slog.DiscardHandler))
	require.ErrorContains(t, err, "no focused window")
}

func TestPasteRoute(t *testing.T) {
	withCmd := config.Default()
	withCmd.PasteCmd = config.CommandConfig{Argv: []string{"wtype"}}
	disabled := config.Default()
	disabled.Paste.Enable = false

	tests := []struct {
		name      string
		cfg       config.Config
		signature string
		want      Route
	}{
		{name: "disabled", cfg: disabled, signature: "abc", want: RouteDisabled},
		{name: "paste_cmd inside hyprland", cfg: withCmd, signature: "abc", want: RouteCommand},
		{name: "paste_cmd outside hyprland", cfg: withCmd, want: RouteCommand},
		{name: "default inside hyprland", cfg: config.Default(), signature: "abc", want: RouteHyprland},
		{name: "default outside hyprland", cfg: config.Default(), want: RouteUinput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HYPRLAND_INSTANCE_SIGNATURE", tt.signature)
			require.Equal(t, tt.want, PasteRoute(tt.cfg))
		})
	}
}

// fakeKeys swaps sendKeys for the duration of the test and records every tap.
func fakeKeys(t *testing.T, err error) *[]keyCombo {
	t.Helper()
	var taps []keyCombo
	previous := sendKeys
	sendKeys = func(_ context.Context, combo keyCombo) error {
		taps = append(taps, combo)
		return err
	}
	t.Cleanup(func() { sendKeys = previous })
	return &taps
}

func TestPasteTapsShortcutOutsideHyprland(t *testing.T) {
	t.Setenv("HYPRLAND_INSTANCE_SIGNATURE", "")
	dir := t.TempDir()
	calls := filepath.Join(dir, "calls.log")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hyprctl"), []byte("#!/bin/sh\necho called >> '"+calls+"'\n"), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))
	taps := fakeKeys(t, nil)

	cfg := config.Default()
	require.NoError(t, paste(context.Background(), cfg, slog.New(slog.DiscardHandler)))

	require.Equal(t, []keyCombo{{name: "CTRL,V", ctrl: true, key: keybd_event.VK_V}}, *taps)
	require.NoFileExists(t, calls)
}

func TestPasteReportsKeyboardFailure(t *testing.T) {
	t.Setenv("HYPRLAND_INSTANCE_SIGNATURE", "")
	fakeKeys(t, errors.New("permission denied"))

	err := paste(context.Background(), config.Default(), slog.New(slog.DiscardHandler))
	require.EqualError(t, err, "permission denied")
}

func TestSinkPastesWithVirtualKeyboardByDefault(t *testing.T) {
	t.Setenv("HYPRLAND_INSTANCE_SIGNATURE", "")
	taps := fakeKeys(t, nil)

	cfg := config.Default()
	target := clipboardFile(t, &cfg)
	cfg.Paste.SettleMS = 0

	require.NoError(t, NewSink(cfg, nil).Deliver(context.Background(), "test transcript"))
	requireFile(t, target, "test transcript")
	require.Len(t, *taps, 1)
	require.True(t, (*taps)[0].ctrl)
}

func TestSinkPrepareOnlyWarmsUinputRoute(t *testing.T) {
	var warmed int
	previous := warmKeyboard
	warmKeyboard = func() error {
		warmed++
		return nil
	}
	t.Cleanup(func() { warmKeyboard = previous })

	t.Setenv("HYPRLAND_INSTANCE_SIGNATURE", "abc")
	require.NoError(t, NewSink(config.Default(), nil).Prepare())
	require.Zero(t, warmed)

	t.Setenv("HYPRLAND_INSTANCE_SIGNATURE", "")
	require.NoError(t, NewSink(config.Default(), nil).Prepare())
	require.Equal(t, 1, warmed)
}

func TestParseShortcut(t *testing.T) {
	tests := []struct {
		in      string
		want    keyCombo
		wantErr string
	}{
		{in: "CTRL,V", want: keyCombo{name: "CTRL,V", ctrl: true, key: keybd_event.VK_V}},
		{in: "CTRL SHIFT,V", want: keyCombo{name: "CTRL SHIFT,V", ctrl: true, shift: true, key: keybd_event.VK_V}},
		{in: "control alt, v", want: keyCombo{name: "control alt, v", ctrl: true, alt: true, key: keybd_event.VK_V}},
		{in: "SUPER,V", wantErr: "modifier SUPER"},
		{in: "SHIFT,Insert", wantErr: "key must be a letter"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseShortcut(tt.in)
			if tt.wantErr != "" {
				require.ErrorIs(t, err, errUnsupportedKey)
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

// installHyprctl puts a hyprctl script on PATH. activeWindow answers
// "-j activewindow", failDispatch (when set) is printed to stderr with exit 1
// for dispatch calls, and successful dispatch calls land in the returned log.
func installHyprctl(t *testing.T, activeWindow, failDispatch string) string {
	t.Helper()

	dir := t.TempDir()
	logPath := filepath.Join(dir, "calls.log")
	body := "#!/usr/bin/env bash\nset -euo pipefail\n" +
		"if [[ \"${1:-}\" == \"-j\" && \"${2:-}\" == \"activewindow\" ]]; then\n" +
		"  echo '" + activeWindow + "'\n  exit 0\nfi\n"
	if failDispatch != "" {
		body += "echo '" + failDispatch + "' >&2\nexit 1\n"
	}
	body += "printf '%s\\n' \"$*\" >> \"" + logPath + "\"\n"

	require.NoError(t, os.WriteFile(filepath.Join(dir, "hyprctl"), []byte(body), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))
	t.Setenv("HYPRLAND_INSTANCE_SIGNATURE", "test-session")
	return logPath
}
