// Package indicator shows recording state notifications and plays audio cues.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/cyberscribe/internal/config"
	"github.com/rbright/cyberscribe/internal/hypr"
)

// Controller is the orchestrator-facing indicator contract. Every call is
// best-effort and returns promptly.
type Controller interface {
	ShowRecording(context.Context)
	ShowTranscribing(context.Context)
	ShowError(context.Context, string)
	CueComplete(context.Context)
	Hide(context.Context)
}

// Notifier routes notifications via Hyprland or desktop DBus and plays cues
// through Pulse.
type Notifier struct {
	logger   *slog.Logger
	messages messages

	mu                    sync.Mutex
	cfg                   config.IndicatorConfig
	desktopNotificationID uint32

	soundMu sync.Mutex
}

// New creates a notifier from config.
func New(cfg config.IndicatorConfig, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Notifier{
		cfg:      cfg,
		logger:   logger,
		messages: messagesFor(localeFromEnv()),
	}
}

// Apply swaps in new indicator settings.
func (n *Notifier) Apply(cfg config.IndicatorConfig) {
	n.mu.Lock()
	n.cfg = cfg
	n.mu.Unlock()
}

func (n *Notifier) config() config.IndicatorConfig {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.cfg
}

// ShowRecording plays the start cue and shows the recording notification.
func (n *Notifier) ShowRecording(ctx context.Context) {
	cfg := n.config()
	n.sound(cueStart, cfg)
	if !cfg.Enable {
		return
	}
	n.run(ctx, func(ctx context.Context) error {
		return n.notify(ctx, cfg, recordingStyle, n.messages.recording)
	})
}

// ShowTranscribing plays the stop cue and shows the processing notification.
func (n *Notifier) ShowTranscribing(ctx context.Context) {
	cfg := n.config()
	n.sound(cueStop, cfg)
	if !cfg.Enable {
		return
	}
	n.run(ctx, func(ctx context.Context) error {
		return n.notify(ctx, cfg, transcribingStyle, n.messages.transcribing)
	})
}

// ShowError plays the error cue and shows text, or the default error message.
func (n *Notifier) ShowError(ctx context.Context, text string) {
	cfg := n.config()
	n.sound(cueError, cfg)
	if !cfg.Enable {
		return
	}
	if text == "" {
		text = n.messages.failure
	}
	style := errorStyle
	if cfg.ErrorTimeoutMS > 0 {
		style.timeout = time.Duration(cfg.ErrorTimeoutMS) * time.Millisecond
	}
	n.run(ctx, func(ctx context.Context) error {
		return n.notify(ctx, cfg, style, text)
	})
}

// CueComplete plays the delivered cue.
func (n *Notifier) CueComplete(context.Context) {
	n.sound(cueComplete, n.config())
}

// Hide dismisses the active notification.
func (n *Notifier) Hide(ctx context.Context) {
	cfg := n.config()
	if !cfg.Enable {
		return
	}
	n.run(ctx, func(ctx context.Context) error {
		return n.dismiss(ctx, cfg)
	})
}

// style is how one indicator state looks on the Hyprland backend. The desktop
// backend only honors the timeout.
type style struct {
	icon    hypr.Icon
	color   string
	timeout time.Duration
}

var (
	recordingStyle    = style{icon: hypr.IconInfo, color: "rgb(f7768e)", timeout: 5 * time.Minute}
	transcribingStyle = style{icon: hypr.IconHint, color: "rgb(bb9af7)", timeout: 5 * time.Minute}
	errorStyle        = style{icon: hypr.IconError, color: "rgb(ff9e64)", timeout: 1200 * time.Millisecond}
)

func (n *Notifier) notify(ctx context.Context, cfg config.IndicatorConfig, st style, text string) error {
	if isDesktop(cfg) {
		return n.notifyDesktop(ctx, cfg, int(st.timeout.Milliseconds()), text)
	}
	return hypr.Notify(ctx, hypr.Notification{Icon: st.icon, Color: st.color, Timeout: st.timeout, Text: text})
}

func (n *Notifier) dismiss(ctx context.Context, cfg config.IndicatorConfig) error {
	if isDesktop(cfg) {
		return n.dismissDesktop(ctx)
	}
	return hypr.DismissNotify(ctx)
}

func isDesktop(cfg config.IndicatorConfig) bool {
	return strings.EqualFold(strings.TrimSpace(cfg.Backend), "desktop")
}

// notifyDesktop sends a replaceable desktop notification and stores its ID.
func (n *Notifier) notifyDesktop(ctx context.Context, cfg config.IndicatorConfig, timeoutMS int, text string) error {
	n.mu.Lock()
	replaceID := n.desktopNotificationID
	n.mu.Unlock()

	appName := strings.TrimSpace(cfg.DesktopAppName)
	if appName == "" {
		appName = "cyberscribe"
	}

	id, err := desktopNotify(ctx, appName, replaceID, text, timeoutMS)
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.desktopNotificationID = id
	n.mu.Unlock()
	return nil
}

func (n *Notifier) dismissDesktop(ctx context.Context) error {
	n.mu.Lock()
	id := n.desktopNotificationID
	n.desktopNotificationID = 0
	n.mu.Unlock()

	if id == 0 {
		return nil
	}
	return desktopDismiss(ctx, id)
}

// run executes a notification call with a bounded timeout.
func (n *Notifier) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
	defer cancel()
	if err := fn(runCtx); err != nil {
		n.logger.Debug("indicator dispatch failed", "error", err.Error())
	}
}

// sound plays c on a background goroutine, one cue at a time.
func (n *Notifier) sound(c cue, cfg config.IndicatorConfig) {
	if !cfg.SoundEnable {
		return
	}
	go func() {
		n.soundMu.Lock()
		defer n.soundMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 4*time.Second)
		defer cancel()
		if err := playCue(ctx, c, cfg); err != nil {
			n.logger.Debug("indicator audio cue failed", "error", err.Error())
		}
	}()
}
