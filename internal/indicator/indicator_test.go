package indicator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rbright/cyberscribe/internal/config"
	"github.com/stretchr/testify/require"
)

func hyprConfig() config.IndicatorConfig {
	cfg := config.Default().Indicator
	cfg.Backend = "hypr"
	cfg.Enable = true
	cfg.SoundEnable = false
	return cfg
}

func TestNotifierHyprDispatchSequence(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "hypr-args.log")
	t.Setenv("HYPR_ARGS_FILE", argsFile)
	installHyprctlStub(t, `
printf '%s\n' "$*" >> "${HYPR_ARGS_FILE}"
`)

	notify := New(hyprConfig(), nil)
	notify.messages = messagesFor("en")
	notify.ShowRecording(context.Background())
	notify.ShowTranscribing(context.Background())
	notify.ShowError(context.Background(), "")
	notify.Hide(context.Background())

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Equal(t, []string{
		"--quiet dispatch notify 1 300000 rgb(f7768e) Recording…",
		"--quiet dispatch notify 2 300000 rgb(bb9af7) Transcribing…",
		"--quiet dispatch notify 3 1600 rgb(ff9e64) Speech recognition error",
		"--quiet dispatch dismissnotify",
	}, lines)
}

func TestNotifierShowErrorUsesProvidedTextAndDefaultTimeout(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "hypr-args.log")
	t.Setenv("HYPR_ARGS_FILE", argsFile)
	installHyprctlStub(t, `
printf '%s\n' "$*" >> "${HYPR_ARGS_FILE}"
`)

	cfg := hyprConfig()
	cfg.ErrorTimeoutMS = 0

	New(cfg, nil).ShowError(context.Background(), "Microphone unavailable")

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	require.Equal(t, "--quiet dispatch notify 3 1200 rgb(ff9e64) Microphone unavailable\n", string(data))
}

func TestNotifierDisabledSkipsDispatch(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "hypr-args.log")
	t.Setenv("HYPR_ARGS_FILE", argsFile)
	installHyprctlStub(t, `
printf '%s\n' "$*" >> "${HYPR_ARGS_FILE}"
`)

	cfg := hyprConfig()
	cfg.Enable = false

	notify := New(cfg, nil)
	notify.ShowRecording(context.Background())
	notify.ShowTranscribing(context.Background())
	notify.ShowError(context.Background(), "ignored")
	notify.CueComplete(context.Background())
	notify.Hide(context.Background())

	_, err := os.Stat(argsFile)
	require.True(t, os.IsNotExist(err))
}

func TestNotifierApplySwitchesBackend(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "hypr-args.log")
	t.Setenv("HYPR_ARGS_FILE", argsFile)
	installHyprctlStub(t, `
printf '%s\n' "$*" >> "${HYPR_ARGS_FILE}"
`)

	cfg := hyprConfig()
	cfg.Enable = false
	notify := New(cfg, nil)
	notify.ShowError(context.Background(), "first")

	notify.Apply(hyprConfig())
	notify.ShowError(context.Background(), "second")

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	require.Contains(t, string(data), "second")
	require.NotContains(t, string(data), "first")
}

func TestNotifierDesktopDismissWithoutNotificationIsNoop(t *testing.T) {
	cfg := hyprConfig()
	cfg.Backend = "desktop"
	t.Setenv("PATH", t.TempDir())

	notify := New(cfg, nil)
	require.NoError(t, notify.dismissDesktop(context.Background()))
	notify.Hide(context.Background())
}

func installHyprctlStub(t *testing.T, body string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "hyprctl")
	script := "#!/usr/bin/env bash\nset -euo pipefail\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))
}
