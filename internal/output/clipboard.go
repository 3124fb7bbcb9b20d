package output

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/atotto/clipboard"
)

const (
	clipboardTimeout = 2 * time.Second
	// waitDelay bounds how long a daemonizing helper such as wl-copy may
	// hold inherited pipes after it exits.
	waitDelay = 250 * time.Millisecond
)

var (
	errNoClipboard = errors.New("no clipboard utility found (install wl-clipboard, xclip, or xsel)")

	// writeClipboard backs clipboard writes when clipboard_cmd is unset.
	writeClipboard = clipboard.WriteAll
)

func setClipboard(ctx context.Context, argv []string, text string) error {
	switch {
	case len(argv) > 0:
		ctx, cancel := context.WithTimeout(ctx, clipboardTimeout)
		defer cancel()
		return pipeTo(ctx, argv, text)
	case clipboard.Unsupported:
		return errNoClipboard
	default:
		return writeClipboard(text)
	}
}

// pipeTo runs argv with input on its stdin and waits for it to exit.
func pipeTo(ctx context.Context, argv []string, input string) error {
	if len(argv) == 0 {
		return errors.New("command argv cannot be empty")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = strings.NewReader(input)
	cmd.WaitDelay = waitDelay
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run %s: %w", argv[0], err)
	}
	return nil
}
