package hypr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoWindow is returned when Hyprland reports no focused client.
var ErrNoWindow = errors.New("hyprland has no focused window")

// Window identifies the focused client a paste is aimed at.
type Window struct {
	Address string `json:"address"`
	Class   string `json:"class"`
	Title   string `json:"title"`
}

// ActiveWindow returns the focused client. An empty address maps to ErrNoWindow.
func ActiveWindow(ctx context.Context) (Window, error) {
	var w Window
	if err := query(ctx, "activewindow", &w); err != nil {
		return Window{}, err
	}
	w.Address = strings.TrimSpace(w.Address)
	w.Class = strings.TrimSpace(w.Class)
	w.Title = strings.TrimSpace(w.Title)
	if w.Address == "" {
		return Window{}, ErrNoWindow
	}
	return w, nil
}

// FocusedMonitor names the focused output, or the first one listed when none
// reports focus.
func FocusedMonitor(ctx context.Context) (string, error) {
	var monitors []struct {
		Name    string `json:"name"`
		Focused bool   `json:"focused"`
	}
	if err := query(ctx, "monitors", &monitors); err != nil {
		return "", err
	}
	if len(monitors) == 0 {
		return "", errors.New("hyprland reports no monitors")
	}
	name := monitors[0].Name
	for _, m := range monitors {
		if m.Focused {
			name = m.Name
			break
		}
	}
	return strings.TrimSpace(name), nil
}

// Retry bounds how often Paste looks up the focused window.
type Retry struct {
	Attempts int
	Delay    time.Duration
}

// Paste sends shortcut (for example "CTRL,V") to the focused window and
// returns the window it targeted.
func Paste(ctx context.Context, shortcut string, retry Retry) (Window, error) {
	shortcut = strings.TrimSpace(shortcut)
	if shortcut == "" {
		return Window{}, errors.New("paste shortcut is empty")
	}

	w, err := focusedWithRetry(ctx, retry)
	if err != nil {
		return Window{}, err
	}
	if err := dispatch(ctx, "sendshortcut", shortcutTarget(shortcut, w.Address)); err != nil {
		return w, err
	}
	return w, nil
}

func shortcutTarget(shortcut, address string) string {
	return shortcut + ",address:" + address
}

func focusedWithRetry(ctx context.Context, retry Retry) (Window, error) {
	attempts := max(retry.Attempts, 1)

	var lastErr error
	for attempt := 1; ; attempt++ {
		w, err := ActiveWindow(ctx)
		if err == nil {
			return w, nil
		}
		lastErr = err
		if attempt >= attempts {
			break
		}
		select {
		case <-ctx.Done():
			return Window{}, ctx.Err()
		case <-time.After(retry.Delay):
		}
	}
	return Window{}, fmt.Errorf("find paste target after %d attempts: %w", attempts, lastErr)
}
