// Package logging writes structured JSON logs to a rotating file under the
// XDG state dir, optionally mirroring warnings to a console.
package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	levelEnv = "CYBERSCRIBE_LOG_LEVEL"
	fileName = "log.jsonl"
)

// Options configures New. The zero value logs to the default file only.
type Options struct {
	// Path overrides the log file location.
	Path string
	// Console, when set, also receives records at ConsoleLevel and above as
	// human-readable text.
	Console      io.Writer
	ConsoleLevel slog.Level
}

// Runtime owns the logger and the rotating file behind it.
type Runtime struct {
	Logger *slog.Logger
	Path   string
	file   *lumberjack.Logger
}

// Close flushes and closes the log file.
func (r Runtime) Close() error {
	if r.file == nil {
		return nil
	}
	return r.file.Close()
}

// New opens the log file, creating its directory, and returns a logger at the
// level named by CYBERSCRIBE_LOG_LEVEL (info when unset).
func New(opts Options) (Runtime, error) {
	path := opts.Path
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return Runtime{}, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return Runtime{}, err
	}

	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}

	var handler slog.Handler = slog.NewJSONHandler(file, &slog.HandlerOptions{Level: ParseLevel(os.Getenv(levelEnv))})
	if opts.Console != nil {
		console := slog.NewTextHandler(opts.Console, &slog.HandlerOptions{Level: opts.ConsoleLevel})
		handler = fanout{handler, console}
	}
	return Runtime{Logger: slog.New(handler), Path: path, file: file}, nil
}

// DefaultPath is $XDG_STATE_HOME/cyberscribe/log.jsonl, or the same under
// ~/.local/state.
func DefaultPath() (string, error) {
	state := strings.TrimSpace(os.Getenv("XDG_STATE_HOME"))
	if state == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.New("cannot locate log dir: neither XDG_STATE_HOME nor HOME is set")
		}
		state = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(state, "cyberscribe", fileName), nil
}

// ParseLevel maps debug, warn, warning and error to their levels and anything
// else to info.
func ParseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// fanout sends every record to each handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, record.Level) {
			errs = append(errs, h.Handle(ctx, record.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
