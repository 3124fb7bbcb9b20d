// Package hypr talks to a running Hyprland compositor through the hyprctl
// binary. Every call shells out, so callers bound them with a context.
package hypr

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const signatureEnv = "HYPRLAND_INSTANCE_SIGNATURE"

// InSession reports whether HYPRLAND_INSTANCE_SIGNATURE is set.
func InSession() bool {
	return strings.TrimSpace(os.Getenv(signatureEnv)) != ""
}

// Icon selects the glyph drawn next to a notification.
type Icon int

const (
	IconWarning Icon = 0
	IconInfo    Icon = 1
	IconHint    Icon = 2
	IconError   Icon = 3
	IconOK      Icon = 5
)

const defaultNotifyColor = "rgb(7aa2f7)"

// Notification is one "hyprctl dispatch notify" call. A zero Color falls back
// to the cyberscribe accent.
type Notification struct {
	Icon    Icon
	Timeout time.Duration
	Color   string
	Text    string
}

// Notify shows n on the focused monitor.
func Notify(ctx context.Context, n Notification) error {
	color := strings.TrimSpace(n.Color)
	if color == "" {
		color = defaultNotifyColor
	}
	return dispatch(ctx, "notify",
		strconv.Itoa(int(n.Icon)),
		strconv.FormatInt(n.Timeout.Milliseconds(), 10),
		color,
		n.Text,
	)
}

// DismissNotify clears every visible Hyprland notification.
func DismissNotify(ctx context.Context) error {
	return dispatch(ctx, "dismissnotify")
}

// dispatch runs "hyprctl --quiet dispatch <name> <args...>".
func dispatch(ctx context.Context, name string, args ...string) error {
	_, err := hyprctl(ctx, append([]string{"--quiet", "dispatch", name}, args...)...)
	return err
}

// query runs "hyprctl -j <target>" and decodes the reply into out.
func query(ctx context.Context, target string, out any) error {
	raw, err := hyprctl(ctx, "-j", target)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode hyprctl %s: %w", target, err)
	}
	return nil
}

func hyprctl(ctx context.Context, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, "hyprctl", args...).CombinedOutput()
	if err == nil {
		return out, nil
	}
	detail := strings.TrimSpace(string(out))
	if detail == "" {
		return nil, fmt.Errorf("hyprctl %s: %w", strings.Join(args, " "), err)
	}
	return nil, fmt.Errorf("hyprctl %s: %w: %s", strings.Join(args, " "), err, detail)
}
