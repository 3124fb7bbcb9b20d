// Package cli parses the cyberscribe command line.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandRun      Command = "run"
	CommandToggle   Command = "toggle"
	CommandStatus   Command = "status"
	CommandQuit     Command = "quit"
	CommandReload   Command = "reload"
	CommandSettings Command = "settings"
	CommandDevices  Command = "devices"
	CommandDoctor   Command = "doctor"
	CommandVersion  Command = "version"
	CommandHelp     Command = "help"
)

// commands lists every command in help order.
var commands = []struct {
	name    Command
	summary string
}{
	{CommandRun, "Start the dictation daemon (hotkey, tray, speech model)"},
	{CommandToggle, "Start or stop recording in the running daemon"},
	{CommandStatus, "Print the daemon state and speech model state"},
	{CommandQuit, "Stop the running daemon"},
	{CommandReload, "Re-read the config file in the running daemon"},
	{CommandSettings, "Edit settings in this terminal and apply them"},
	{CommandDevices, "List available input devices"},
	{CommandDoctor, "Run configuration and environment checks"},
	{CommandVersion, "Print version information"},
	{CommandHelp, "Show this help"},
}

// Forwarded reports whether the command is sent to a running daemon over IPC.
func (c Command) Forwarded() bool {
	switch c {
	case CommandToggle, CommandStatus, CommandQuit, CommandReload:
		return true
	}
	return false
}

type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch {
		case arg == "-h" || arg == "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case arg == "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case arg == "--config":
			i++
			if i >= len(args) || strings.TrimSpace(args[i]) == "" {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		case strings.HasPrefix(arg, "--config="):
			path := strings.TrimPrefix(arg, "--config=")
			if strings.TrimSpace(path) == "" {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = path
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if !known(cmd) {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			if i != len(args)-1 {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
			}
		}
	}

	return parsed, nil
}

func known(cmd Command) bool {
	for _, c := range commands {
		if c.name == cmd {
			return true
		}
	}
	return false
}

func HelpText(binaryName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Usage:\n  %s [--config PATH] <command>\n\nCommands:\n", binaryName)
	for _, c := range commands {
		fmt.Fprintf(&b, "  %-9s %s\n", c.name, c.summary)
	}
	b.WriteString(`
Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/cyberscribe/config.jsonc)
  -h, --help      Show help
  --version       Show version
`)
	return b.String()
}
