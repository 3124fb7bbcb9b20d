//go:build !cgo

// Package hook watches every key through a passive global keyboard hook and
// matches the chord in-process.
package hook

import "github.com/rbright/cyberscribe/internal/hotkey"

// Backend is unavailable without cgo.
type Backend struct{}

// New reports that the hook backend is not compiled in.
func New() (*Backend, error) {
	return nil, hotkey.ErrUnsupported
}

func (*Backend) Name() string { return "hook" }

func (*Backend) Register(hotkey.Chord) (hotkey.Binding, error) {
	return nil, hotkey.ErrUnsupported
}
