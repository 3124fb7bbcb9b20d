// Package doctor runs runtime readiness diagnostics for config, tools, audio,
// the speech backend, and the hotkey.
package doctor

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/atotto/clipboard"

	"github.com/rbright/cyberscribe/internal/audio"
	"github.com/rbright/cyberscribe/internal/config"
	"github.com/rbright/cyberscribe/internal/hotkey"
	"github.com/rbright/cyberscribe/internal/hypr"
	"github.com/rbright/cyberscribe/internal/output"
)

const (
	importTimeout = 20 * time.Second
	hyprTimeout   = 2 * time.Second
)

type Check struct {
	Name    string
	Pass    bool
	Message string
}

func pass(name, format string, args ...any) Check {
	return Check{Name: name, Pass: true, Message: fmt.Sprintf(format, args...)}
}

func fail(name, format string, args ...any) Check {
	return Check{Name: name, Message: fmt.Sprintf(format, args...)}
}

type Report struct {
	Checks []Check
}

func (r Report) OK() bool {
	for _, c := range r.Checks {
		if !c.Pass {
			return false
		}
	}
	return true
}

// String renders one "[OK] name: message" or "[FAIL] ..." line per check.
func (r Report) String() string {
	lines := make([]string, len(r.Checks))
	for i, c := range r.Checks {
		status := "FAIL"
		if c.Pass {
			status = "OK"
		}
		lines[i] = fmt.Sprintf("[%s] %s: %s", status, c.Name, c.Message)
	}
	return strings.Join(lines, "\n")
}

// Run checks everything a dictation round trip depends on. Paste checks
// follow output.PasteRoute.
func Run(loaded config.Loaded) Report {
	cfg := loaded.Config
	steps := []func() Check{
		func() Check { return checkConfig(loaded) },
		checkDisplay,
		func() Check { return checkHotkey(cfg.Hotkey) },
		func() Check { return checkClipboard(cfg.Clipboard) },
	}
	switch output.PasteRoute(cfg) {
	case output.RouteCommand:
		steps = append(steps, func() Check { return checkCommand(cfg.PasteCmd.Argv, "paste_cmd") })
	case output.RouteHyprland:
		steps = append(steps, checkHyprland, func() Check {
			return checkBinary("hyprctl", "Hyprland paste path requires hyprctl")
		})
	case output.RouteUinput:
		steps = append(steps, checkUinput)
	}
	steps = append(steps,
		func() Check { return checkAudioSelection(cfg) },
		func() Check { return checkEngine(cfg.ASR) },
	)

	report := Report{Checks: make([]Check, 0, len(steps))}
	for _, step := range steps {
		report.Checks = append(report.Checks, step())
	}
	return report
}

// checkConfig fails when the file produced warnings. A missing file is fine.
func checkConfig(loaded config.Loaded) Check {
	switch {
	case !loaded.Exists:
		return pass("config", "no file at %q, using defaults", loaded.Path)
	case len(loaded.Warnings) == 0:
		return pass("config", "loaded %q", loaded.Path)
	}

	problems := make([]string, len(loaded.Warnings))
	for i, w := range loaded.Warnings {
		problems[i] = w.Message
		if w.Line > 0 {
			problems[i] = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
	}
	return fail("config", "%q: %s", loaded.Path, strings.Join(problems, "; "))
}

func checkDisplay() Check {
	if strings.TrimSpace(os.Getenv("DISPLAY")) == "" {
		return fail("DISPLAY", "DISPLAY is empty; global hotkey and tray need X11 or XWayland")
	}
	return pass("DISPLAY", "X11 display available for the hotkey and tray")
}

func checkHotkey(cfg config.HotkeyConfig) Check {
	chord, err := hotkey.ParseChord(cfg.Chord)
	if err != nil {
		return fail("hotkey", "%v", err)
	}
	return pass("hotkey", "%s via %s backend", chord.Name, cfg.Backend)
}

func checkClipboard(cmd config.CommandConfig) Check {
	switch {
	case len(cmd.Argv) > 0:
		return checkCommand(cmd.Argv, "clipboard_cmd")
	case clipboard.Unsupported:
		return fail("clipboard", "no clipboard tool found (install wl-clipboard, xclip, or xsel, or set clipboard_cmd)")
	}
	return pass("clipboard", "system clipboard available")
}

func checkHyprland() Check {
	if !hypr.InSession() {
		return fail("hyprland", "HYPRLAND_INSTANCE_SIGNATURE is empty; set paste_cmd outside Hyprland")
	}

	ctx, cancel := context.WithTimeout(context.Background(), hyprTimeout)
	defer cancel()
	monitor, err := hypr.FocusedMonitor(ctx)
	if err != nil {
		return fail("hyprland", "query focused monitor: %v", err)
	}
	return pass("hyprland", "session detected (focused monitor %s)", monitor)
}

var uinputPath = "/dev/uinput"

// checkUinput confirms the virtual keyboard device can be opened for writing.
func checkUinput() Check {
	f, err := os.OpenFile(uinputPath, os.O_WRONLY, 0)
	if err != nil {
		return fail("uinput", "%v; add the user to the input group or set paste_cmd", err)
	}
	_ = f.Close()
	return pass("uinput", "%s is writable for paste keystrokes", uinputPath)
}

func checkCommand(argv []string, key string) Check {
	if len(argv) == 0 {
		return fail(key, "command is empty")
	}
	return checkBinary(argv[0], key+" command is available")
}

// checkBinary is named after the binary it looks up.
func checkBinary(bin, purpose string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return fail(bin, "binary not found in PATH: %s", bin)
	}
	return pass(bin, "found at %s (%s)", path, purpose)
}

// checkAudioSelection runs the same input/fallback selection a recording would.
func checkAudioSelection(cfg config.Config) Check {
	selection, err := audio.SelectDevice(context.Background(), cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return fail("audio.device", "%v", err)
	}
	if selection.Warning != "" {
		return pass("audio.device", "selected %q (%s)", selection.Device.ID, selection.Warning)
	}
	return pass("audio.device", "selected %q", selection.Device.ID)
}

func checkEngine(cfg config.ASRConfig) Check {
	if cfg.Backend != "openai" {
		return checkFasterWhisper(cfg.Python)
	}
	const name = "asr.openai"
	if strings.TrimSpace(os.Getenv(cfg.OpenAI.APIKeyEnv)) == "" {
		return fail(name, "%s is not set", cfg.OpenAI.APIKeyEnv)
	}
	return pass(name, "model %s, key from %s", cfg.OpenAI.Model, cfg.OpenAI.APIKeyEnv)
}

// checkFasterWhisper imports the module with the configured interpreter and
// reports the last line of any traceback.
func checkFasterWhisper(python string) Check {
	const name = "asr.faster_whisper"

	path, err := exec.LookPath(python)
	if err != nil {
		return fail(name, "python interpreter not found: %s", python)
	}

	ctx, cancel := context.WithTimeout(context.Background(), importTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, path, "-c", "import faster_whisper").CombinedOutput()
	if err == nil {
		return pass(name, "faster_whisper importable with %s", path)
	}

	detail := cmp.Or(strings.TrimSpace(string(out)), err.Error())
	if i := strings.LastIndexByte(detail, '\n'); i >= 0 {
		detail = detail[i+1:]
	}
	return fail(name, "%s cannot import faster_whisper: %s", path, detail)
}
