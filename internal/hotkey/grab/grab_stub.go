//go:build !cgo || !linux

// Package grab registers chords as exclusive X11 key grabs.
package grab

import "github.com/rbright/cyberscribe/internal/hotkey"

// Backend is unavailable without cgo on Linux.
type Backend struct{}

// New reports that the grab backend is not compiled in.
func New() (*Backend, error) {
	return nil, hotkey.ErrUnsupported
}

func (*Backend) Name() string { return "grab" }

func (*Backend) Register(hotkey.Chord) (hotkey.Binding, error) {
	return nil, hotkey.ErrUnsupported
}
