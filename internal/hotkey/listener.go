package hotkey

import (
	"fmt"
	"log/slog"
	"sync"
)

// KeyEvent is one transition of the bound chord.
type KeyEvent struct {
	Pressed bool
}

// Binding is an active registration of one chord.
type Binding interface {
	Events() <-chan KeyEvent
	Unregister() error
}

// Backend registers chords with the windowing system.
type Backend interface {
	Name() string
	Register(Chord) (Binding, error)
}

// Listener owns at most one binding and emits one toggle per press.
type Listener struct {
	backend Backend
	emit    func()
	logger  *slog.Logger

	mu      sync.Mutex
	chord   Chord
	binding Binding
	stop    chan struct{}
	done    chan struct{}
}

// NewListener constructs an unbound listener.
func NewListener(backend Backend, emit func(), logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Listener{backend: backend, emit: emit, logger: logger}
}

// Bind replaces the current binding with one for text. On registration
// failure the listener is left without a binding.
func (l *Listener) Bind(text string) error {
	chord, err := ParseChord(text)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.teardownLocked()

	binding, err := l.backend.Register(chord)
	if err != nil {
		l.logger.Error("hotkey registration failed",
			"backend", l.backend.Name(),
			"chord", chord.Name,
			"error", err.Error(),
		)
		return fmt.Errorf("register %s via %s: %w", chord.Name, l.backend.Name(), err)
	}

	l.chord = chord
	l.binding = binding
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	go l.pump(binding.Events(), l.stop, l.done)

	l.logger.Info("hotkey bound", "backend", l.backend.Name(), "chord", chord.Name)
	return nil
}

// Chord returns the bound chord and whether a binding is active.
func (l *Listener) Chord() (Chord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.chord, l.binding != nil
}

// Close releases the binding.
func (l *Listener) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.teardownLocked()
}

func (l *Listener) teardownLocked() {
	if l.binding == nil {
		return
	}
	close(l.stop)
	if err := l.binding.Unregister(); err != nil {
		l.logger.Warn("hotkey unregister failed", "chord", l.chord.Name, "error", err.Error())
	}
	<-l.done

	l.binding = nil
	l.chord = Chord{}
	l.stop = nil
	l.done = nil
}

func (l *Listener) pump(events <-chan KeyEvent, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	latched := false
	for {
		select {
		case <-stop:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if !ev.Pressed {
				latched = false
				continue
			}
			if latched {
				continue
			}
			latched = true
			l.emit()
		}
	}
}
