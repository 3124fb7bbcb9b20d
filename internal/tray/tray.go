// Package tray shows the recording state in the system tray and offers the
// Settings and Quit menu entries.
package tray

import "sync"

// Item is a tray menu entry the user clicked.
type Item string

const (
	ItemSettings Item = "open_settings"
	ItemQuit     Item = "quit"
)

const (
	titleIdle      = "CyberScribe - Ready"
	titleRecording = "CyberScribe - Recording..."
)

// Controller is the tray surface driven by the orchestrator.
type Controller interface {
	// Start shows the icon; menu clicks are reported through emit.
	Start(emit func(Item)) error
	SetRecording(recording bool)
	// Done is closed when the tray goes away.
	Done() <-chan struct{}
	Stop()
}

// Title returns the tooltip text for a recording state.
func Title(recording bool) string {
	if recording {
		return titleRecording
	}
	return titleIdle
}

// Headless is a tray without a display. It only remembers its state.
type Headless struct {
	mu        sync.Mutex
	recording bool
	done      chan struct{}
	once      sync.Once
}

// NewHeadless returns a tray that never exits on its own.
func NewHeadless() *Headless {
	return &Headless{done: make(chan struct{})}
}

func (h *Headless) Start(func(Item)) error { return nil }

func (h *Headless) SetRecording(recording bool) {
	h.mu.Lock()
	h.recording = recording
	h.mu.Unlock()
}

// Recording reports the last state set.
func (h *Headless) Recording() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.recording
}

func (h *Headless) Done() <-chan struct{} { return h.done }

func (h *Headless) Stop() {
	h.once.Do(func() { close(h.done) })
}
