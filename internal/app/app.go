// Package app maps parsed CLI commands onto the daemon, the IPC client, and the
// local diagnostics.
package app

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/rbright/cyberscribe/internal/audio"
	"github.com/rbright/cyberscribe/internal/cli"
	"github.com/rbright/cyberscribe/internal/config"
	"github.com/rbright/cyberscribe/internal/doctor"
	"github.com/rbright/cyberscribe/internal/ipc"
	"github.com/rbright/cyberscribe/internal/logging"
	"github.com/rbright/cyberscribe/internal/settings"
	"github.com/rbright/cyberscribe/internal/version"
)

const forwardTimeout = 2 * time.Second

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	// Stdin is used by the settings form. It defaults to os.Stdin.
	Stdin  *os.File
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

// Execute runs one CLI invocation and returns the process exit code: 0 on
// success, 1 on failure, 2 on a usage error.
func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	switch {
	case err != nil:
		fmt.Fprintf(r.Stderr, "error: %v\n\n%s", err, cli.HelpText(version.Name))
		return 2
	case parsed.ShowHelp:
		fmt.Fprint(r.Stdout, cli.HelpText(version.Name))
		return 0
	case parsed.Command == cli.CommandVersion:
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logs, err := logging.New(r.logOptions(parsed.Command))
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logs.Close() }()
	logger := cmp.Or(r.Logger, logs.Logger)

	loaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	if parsed.Command != cli.CommandDoctor && !parsed.Command.Forwarded() {
		r.reportWarnings(loaded.Warnings, logger)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", loaded.Path,
		"log", logs.Path,
		"version", version.Short(),
	)

	switch parsed.Command {
	case cli.CommandRun:
		return r.commandRun(ctx, loaded, logger)
	case cli.CommandSettings:
		return r.commandSettings(ctx, loaded, logger)
	case cli.CommandDoctor:
		return r.commandDoctor(loaded)
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandToggle, cli.CommandQuit, cli.CommandReload:
		return r.forwardOrFail(ctx, string(parsed.Command))
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

// logOptions mirrors warnings to the terminal when the daemon runs in the
// foreground of one.
func (r Runner) logOptions(cmd cli.Command) logging.Options {
	if cmd != cli.CommandRun {
		return logging.Options{}
	}
	if f, ok := r.Stderr.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return logging.Options{Console: f, ConsoleLevel: slog.LevelWarn}
	}
	return logging.Options{}
}

func (r Runner) reportWarnings(warnings []config.Warning, logger *slog.Logger) {
	for _, w := range warnings {
		text := w.Message
		if w.Line > 0 {
			text = fmt.Sprintf("line %d: %s", w.Line, text)
		}
		fmt.Fprintln(r.Stderr, "warning:", text)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}
}

func (r Runner) commandDoctor(loaded config.Loaded) int {
	report := doctor.Run(loaded)
	fmt.Fprintln(r.Stdout, report.String())
	return exitCode(report.OK())
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	switch {
	case err != nil:
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	case len(devices) == 0:
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}
	for _, d := range devices {
		fmt.Fprintln(r.Stdout, deviceLine(d))
	}
	return 0
}

// deviceLine renders one source; the leading star marks the server default.
func deviceLine(d audio.Device) string {
	mark := " "
	if d.Default {
		mark = "*"
	}
	return fmt.Sprintf("%s id=%s | description=%q | state=%s | available=%s | muted=%s",
		mark, d.ID, d.Description, d.State, yesNo(d.Available), yesNo(d.Muted))
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func exitCode(ok bool) int {
	if ok {
		return 0
	}
	return 1
}

// forward sends command to the running daemon. running is false when no
// daemon answered.
func forward(ctx context.Context, command string) (resp ipc.Response, running bool, err error) {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		return ipc.Response{}, false, err
	}
	return ipc.Forward(ctx, socketPath, command, forwardTimeout)
}

// commandStatus prints "stopped" when no daemon answers.
func (r Runner) commandStatus(ctx context.Context) int {
	resp, running, err := forward(ctx, "status")
	switch {
	case !running:
		fmt.Fprintln(r.Stdout, "stopped")
		return 0
	case err != nil:
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	state := cmp.Or(resp.State, "idle")
	if resp.Message == "" {
		fmt.Fprintln(r.Stdout, state)
	} else {
		fmt.Fprintf(r.Stdout, "%s (%s)\n", state, resp.Message)
	}
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, command string) int {
	resp, running, err := forward(ctx, command)
	switch {
	case !running && err == nil:
		fmt.Fprintf(r.Stderr, "error: %s is not running (start it with `%s run`)\n", version.Name, version.Name)
		return 1
	case err != nil:
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// commandSettings edits the config in this terminal. A running daemon is told
// to reload; otherwise the file is picked up on next start.
func (r Runner) commandSettings(ctx context.Context, loaded config.Loaded, logger *slog.Logger) int {
	outcome, err := settings.Run(ctx, loaded.Config, settings.Options{
		ConfigPath:  loaded.Path,
		TerminalCmd: loaded.Config.Settings.TerminalCmd.Argv,
		SelfTest:    func() { r.forwardQuietly(ctx, "toggle", logger) },
		Input:       r.Stdin,
		Output:      r.Stdout,
	})
	if err != nil {
		if errors.Is(err, settings.ErrNoTerminal) {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: settings: %v\n", err)
		logger.Error("settings failed", "error", err.Error())
		return 1
	}

	switch {
	case outcome.Saved:
		if err := config.Save(loaded.Path, outcome.Config); err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			logger.Error("save config failed", "error", err.Error())
			return 1
		}
		fmt.Fprintf(r.Stdout, "saved %s\n", loaded.Path)
	case outcome.Reload:
	default:
		fmt.Fprintln(r.Stdout, "no changes")
		return 0
	}

	r.forwardQuietly(ctx, "reload", logger)
	return 0
}

// forwardQuietly sends command to a daemon if one is running.
func (r Runner) forwardQuietly(ctx context.Context, command string, logger *slog.Logger) {
	if _, running, err := forward(ctx, command); running && err != nil {
		logger.Warn("forward command failed", "command", command, "error", err.Error())
	}
}
