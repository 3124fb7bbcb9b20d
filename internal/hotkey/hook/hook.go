//go:build cgo

// Package hook watches every key through a passive global keyboard hook and
// matches the chord in-process.
package hook

import (
	"sync"

	gohook "github.com/robotn/gohook"

	"github.com/rbright/cyberscribe/internal/hotkey"
)

// Backend uses libuiohook. Only one binding may be live at a time.
type Backend struct{}

// New returns the hook backend.
func New() (*Backend, error) {
	return &Backend{}, nil
}

func (*Backend) Name() string { return "hook" }

// Register starts the global hook and filters it down to chord transitions.
func (*Backend) Register(chord hotkey.Chord) (hotkey.Binding, error) {
	raw := gohook.Start()
	b := &binding{
		raw:     raw,
		matcher: hotkey.NewMatcher(chord),
		events:  make(chan hotkey.KeyEvent, 8),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go b.forward()
	return b, nil
}

type binding struct {
	raw     chan gohook.Event
	matcher *hotkey.Matcher
	events  chan hotkey.KeyEvent
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func (b *binding) Events() <-chan hotkey.KeyEvent { return b.events }

func (b *binding) Unregister() error {
	b.once.Do(func() {
		close(b.stop)
		gohook.End()
		<-b.done
	})
	return nil
}

func (b *binding) forward() {
	defer close(b.done)
	defer close(b.events)

	for {
		select {
		case <-b.stop:
			return
		case ev, ok := <-b.raw:
			if !ok {
				return
			}
			var pressed bool
			switch ev.Kind {
			case gohook.KeyDown, gohook.KeyHold:
				pressed = true
			case gohook.KeyUp:
				pressed = false
			default:
				continue
			}
			out, matched := b.matcher.Feed(hotkey.Keysym(ev.Rawcode), pressed)
			if !matched {
				continue
			}
			select {
			case b.events <- out:
			case <-b.stop:
				return
			}
		}
	}
}
