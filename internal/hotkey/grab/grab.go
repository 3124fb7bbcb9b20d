//go:build cgo && linux

// Package grab registers chords as exclusive X11 key grabs.
package grab

import (
	"sync"

	xhotkey "golang.design/x/hotkey"

	"github.com/rbright/cyberscribe/internal/hotkey"
)

// Backend grabs the chord on the X server so the focused window never sees it.
type Backend struct{}

// New returns the grab backend.
func New() (*Backend, error) {
	return &Backend{}, nil
}

func (*Backend) Name() string { return "grab" }

// Register grabs chord and forwards its keydown/keyup notifications.
func (*Backend) Register(chord hotkey.Chord) (hotkey.Binding, error) {
	hk := xhotkey.New(modifiers(chord.Mods), xhotkey.Key(chord.Key))
	if err := hk.Register(); err != nil {
		return nil, err
	}

	b := &binding{
		hk:     hk,
		events: make(chan hotkey.KeyEvent, 8),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go b.forward()
	return b, nil
}

func modifiers(mods hotkey.Modifier) []xhotkey.Modifier {
	out := make([]xhotkey.Modifier, 0, 4)
	if mods&hotkey.ModCtrl != 0 {
		out = append(out, xhotkey.ModCtrl)
	}
	if mods&hotkey.ModShift != 0 {
		out = append(out, xhotkey.ModShift)
	}
	if mods&hotkey.ModAlt != 0 {
		out = append(out, xhotkey.Mod1)
	}
	if mods&hotkey.ModSuper != 0 {
		out = append(out, xhotkey.Mod4)
	}
	return out
}

type binding struct {
	hk     *xhotkey.Hotkey
	events chan hotkey.KeyEvent
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

func (b *binding) Events() <-chan hotkey.KeyEvent { return b.events }

func (b *binding) Unregister() error {
	var err error
	b.once.Do(func() {
		close(b.stop)
		<-b.done
		err = b.hk.Unregister()
	})
	return err
}

func (b *binding) forward() {
	defer close(b.done)
	defer close(b.events)

	for {
		var ev hotkey.KeyEvent
		select {
		case <-b.stop:
			return
		case <-b.hk.Keydown():
			ev = hotkey.KeyEvent{Pressed: true}
		case <-b.hk.Keyup():
			ev = hotkey.KeyEvent{Pressed: false}
		}
		select {
		case b.events <- ev:
		case <-b.stop:
			return
		}
	}
}
