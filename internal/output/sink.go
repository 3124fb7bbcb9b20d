// Package output delivers transcribed text to the focused application.
package output

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/cyberscribe/internal/config"
)

// Sink places text on the clipboard and then asks the focused window to paste it.
type Sink struct {
	logger *slog.Logger

	mu     sync.Mutex
	config config.Config
}

// NewSink constructs a sink from a config snapshot.
func NewSink(cfg config.Config, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sink{config: cfg, logger: logger}
}

// Apply swaps in a new config snapshot for subsequent deliveries.
func (s *Sink) Apply(cfg config.Config) {
	s.mu.Lock()
	s.config = cfg
	s.mu.Unlock()
}

// Prepare opens the virtual keyboard when the current config pastes through
// uinput, and does nothing on the other routes.
func (s *Sink) Prepare() error {
	s.mu.Lock()
	cfg := s.config
	s.mu.Unlock()

	if PasteRoute(cfg) != RouteUinput {
		return nil
	}
	return warmKeyboard()
}

var warmKeyboard = virtualKeyboard.warm

// Deliver sets the clipboard, waits for it to settle, and dispatches the paste
// keystroke. Paste failures are logged and leave the clipboard set.
func (s *Sink) Deliver(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	s.mu.Lock()
	cfg := s.config
	s.mu.Unlock()

	if err := setClipboard(ctx, cfg.Clipboard.Argv, text); err != nil {
		return fmt.Errorf("set clipboard: %w", err)
	}

	if !cfg.Paste.Enable {
		return nil
	}

	if settle := time.Duration(cfg.Paste.SettleMS) * time.Millisecond; settle > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(settle):
		}
	}

	if err := paste(ctx, cfg, s.logger); err != nil {
		s.logger.Error("paste dispatch failed; clipboard remains set", "error", err.Error())
	}
	return nil
}

// Preview shortens text for logs.
func Preview(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "…"
}
