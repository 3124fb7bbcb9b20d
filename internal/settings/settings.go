// Package settings edits the user-facing subset of the config in a terminal form.
package settings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/rbright/cyberscribe/internal/config"
)

// ErrNoTerminal is returned when there is no TTY and no terminal command is configured.
var ErrNoTerminal = errors.New("settings need a terminal: run `cyberscribe settings` or set settings.terminal_cmd")

// Outcome reports what the settings surface did.
type Outcome struct {
	// Saved is true when the form was confirmed in-process; Config holds the result.
	Saved  bool
	Config config.Config
	// Reload is true when an external terminal edited the file and the caller
	// should re-read it.
	Reload bool
}

// Options configure how the form is presented.
type Options struct {
	ConfigPath  string
	TerminalCmd []string
	// SelfTest is invoked when the user presses the self-test key.
	SelfTest func()

	// Input and Output default to the process stdio.
	Input  *os.File
	Output io.Writer
}

// Run shows the form on the controlling terminal, or in a new terminal window
// when the process has none.
func Run(ctx context.Context, cfg config.Config, opts Options) (Outcome, error) {
	in := opts.Input
	if in == nil {
		in = os.Stdin
	}
	if isTerminal(in) {
		return runForm(ctx, cfg, opts, in)
	}
	if len(opts.TerminalCmd) > 0 {
		return runExternal(ctx, opts)
	}
	return Outcome{}, ErrNoTerminal
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func runForm(ctx context.Context, cfg config.Config, opts Options, in *os.File) (Outcome, error) {
	programOpts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithInput(in)}
	if opts.Output != nil {
		programOpts = append(programOpts, tea.WithOutput(opts.Output))
	}

	final, err := tea.NewProgram(newModel(cfg, opts.SelfTest), programOpts...).Run()
	if err != nil {
		return Outcome{}, fmt.Errorf("run settings form: %w", err)
	}
	m, ok := final.(model)
	if !ok || !m.saved {
		return Outcome{}, nil
	}
	return Outcome{Saved: true, Config: m.result()}, nil
}

// runExternal launches `<terminal_cmd> <self> settings --config <path>` and waits.
func runExternal(ctx context.Context, opts Options) (Outcome, error) {
	self, err := os.Executable()
	if err != nil {
		return Outcome{}, fmt.Errorf("resolve executable: %w", err)
	}

	argv := append([]string(nil), opts.TerminalCmd...)
	argv = append(argv, self, "settings")
	if opts.ConfigPath != "" {
		argv = append(argv, "--config", opts.ConfigPath)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if err := cmd.Run(); err != nil {
		return Outcome{}, fmt.Errorf("run %s: %w", argv[0], err)
	}
	return Outcome{Reload: true}, nil
}
