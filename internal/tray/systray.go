//go:build cgo

package tray

import (
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/getlantern/systray"
)

const stopTimeout = 2 * time.Second

// Systray is the tray icon backed by the desktop's StatusNotifier/GTK tray.
type Systray struct {
	logger *slog.Logger

	mu      sync.Mutex
	started bool
	ready   bool
	pending *bool

	done     chan struct{}
	quit     chan struct{}
	stopOnce sync.Once
}

// New returns a tray icon. It is shown by Start.
func New(logger *slog.Logger) (*Systray, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Systray{
		logger: logger,
		done:   make(chan struct{}),
		quit:   make(chan struct{}),
	}, nil
}

// Start runs the tray loop on its own locked OS thread.
func (s *Systray) Start(emit func(Item)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("tray already started")
	}
	s.started = true

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		systray.Run(func() { s.onReady(emit) }, func() {
			s.logger.Debug("tray exited")
			close(s.done)
		})
	}()
	return nil
}

func (s *Systray) onReady(emit func(Item)) {
	systray.SetIcon(idleIcon())
	systray.SetTitle(titleIdle)
	systray.SetTooltip(titleIdle)

	settings := systray.AddMenuItem("Settings", "Open settings")
	systray.AddSeparator()
	quit := systray.AddMenuItem("Quit", "Quit CyberScribe")

	s.mu.Lock()
	s.ready = true
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	if pending != nil {
		s.apply(*pending)
	}

	go func() {
		for {
			select {
			case <-settings.ClickedCh:
				emit(ItemSettings)
			case <-quit.ClickedCh:
				emit(ItemQuit)
			case <-s.quit:
				return
			}
		}
	}()
}

// SetRecording swaps the icon and tooltip.
func (s *Systray) SetRecording(recording bool) {
	s.mu.Lock()
	if !s.ready {
		s.pending = &recording
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.apply(recording)
}

func (s *Systray) apply(recording bool) {
	icon := idleIcon()
	if recording {
		icon = recordingIcon()
	}
	systray.SetIcon(icon)
	systray.SetTitle(Title(recording))
	systray.SetTooltip(Title(recording))
}

func (s *Systray) Done() <-chan struct{} { return s.done }

// Stop removes the icon and waits briefly for the tray loop to exit.
func (s *Systray) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
		s.mu.Lock()
		started := s.started
		s.mu.Unlock()
		if !started {
			close(s.done)
			return
		}
		systray.Quit()
		select {
		case <-s.done:
		case <-time.After(stopTimeout):
			s.logger.Warn("tray did not exit in time")
		}
	})
}
