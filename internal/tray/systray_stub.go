//go:build !cgo

package tray

import (
	"errors"
	"log/slog"
)

// ErrUnsupported is returned when the tray is not compiled in.
var ErrUnsupported = errors.New("system tray not supported in this build")

// Systray is unavailable without cgo.
type Systray struct{ Headless }

// New reports that the tray is not compiled in.
func New(*slog.Logger) (*Systray, error) {
	return nil, ErrUnsupported
}
