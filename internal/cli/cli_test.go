package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		args    string
		want    Parsed
		wantErr string
	}{
		{args: "", want: Parsed{Command: CommandHelp, ShowHelp: true}},
		{args: "-h", want: Parsed{Command: CommandHelp, ShowHelp: true}},
		{args: "help", want: Parsed{Command: CommandHelp, ShowHelp: true}},
		{args: "--version", want: Parsed{Command: CommandVersion}},
		{args: "run", want: Parsed{Command: CommandRun}},
		{args: "toggle", want: Parsed{Command: CommandToggle}},
		{args: "--config /etc/cs.jsonc doctor", want: Parsed{Command: CommandDoctor, ConfigPath: "/etc/cs.jsonc"}},
		{args: "--config=~/cs.jsonc settings", want: Parsed{Command: CommandSettings, ConfigPath: "~/cs.jsonc"}},
		{args: "status --config /tmp/x", wantErr: "unexpected arguments after command"},
		{args: "reload now", wantErr: "unexpected arguments"},
		{args: "--config", wantErr: "--config requires a path"},
		{args: "--config= quit", wantErr: "--config requires a path"},
		{args: "-v", wantErr: "unknown flag: -v"},
		{args: "record", wantErr: "unknown command: record"},
		{args: "stop", wantErr: "unknown command: stop"},
	}

	for _, tt := range tests {
		t.Run(tt.args, func(t *testing.T) {
			got, err := Parse(strings.Fields(tt.args))
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestHelpTextListsEveryCommand(t *testing.T) {
	text := HelpText("cyberscribe")
	require.True(t, strings.HasPrefix(text, "Usage:\n  cyberscribe [--config PATH] <command>"))
	for _, c := range commands {
		require.Contains(t, text, "  "+string(c.name)+" ", c.name)
	}
	require.Contains(t, text, "$XDG_CONFIG_HOME/cyberscribe/config.jsonc")
}

func TestForwarded(t *testing.T) {
	forwarded := map[Command]bool{
		CommandToggle: true, CommandStatus: true, CommandQuit: true, CommandReload: true,
		CommandRun: false, CommandSettings: false, CommandDoctor: false, CommandDevices: false, CommandVersion: false,
	}
	for cmd, want := range forwarded {
		require.Equal(t, want, cmd.Forwarded(), cmd)
	}
}
