// Package engine owns the speech model lifecycle and the blocking transcribe call.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rbright/cyberscribe/internal/transcript"
)

// ModelState is the load state of the engine's model.
type ModelState string

const (
	StateUnloaded ModelState = "unloaded"
	StateLoading  ModelState = "loading"
	StateReady    ModelState = "ready"
	StateFailed   ModelState = "failed"
)

var (
	// ErrNotReady is returned immediately while a load is in flight.
	ErrNotReady = errors.New("speech model is still loading")
	// ErrNotLoaded is returned when a synchronous reload also failed.
	ErrNotLoaded = errors.New("speech model not loaded")
	// ErrTranscription matches any *TranscriptionError.
	ErrTranscription = errors.New("transcription failed")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("engine closed")
)

// TranscriptionError wraps a failure raised by the model while transcribing.
type TranscriptionError struct {
	Err error
}

func (e *TranscriptionError) Error() string {
	return "transcription failed: " + e.Err.Error()
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

func (e *TranscriptionError) Is(target error) bool { return target == ErrTranscription }

// Spec identifies the model to load and how to invoke it.
type Spec struct {
	Backend     string
	ModelSize   string
	Device      string
	ComputeType string
	Language    string
	BeamSize    int
}

// Options are the per-call model parameters.
type Options struct {
	BeamSize int
	// Language is empty for auto-detection.
	Language string
}

// Segment is one time-bounded unit of recognized text.
type Segment struct {
	Start float64
	End   float64
	Text  string
}

// Model is a loaded speech model.
type Model interface {
	Transcribe(ctx context.Context, audioPath string, opts Options) ([]Segment, error)
	Close() error
}

// Loader constructs a model for spec. It may block for a long time.
type Loader func(ctx context.Context, spec Spec) (Model, error)

const loadKey = "model"

// Engine loads its model in the background and serves blocking Transcribe calls.
//
// The value is immutable once built: a settings change builds a new Engine and
// closes the old one.
type Engine struct {
	spec   Spec
	load   Loader
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	loads  singleflight.Group

	mu       sync.Mutex
	state    ModelState
	model    Model
	lastErr  error
	closed   bool
	inflight sync.WaitGroup
}

// New returns immediately and schedules the model load in the background.
func New(spec Spec, load Loader, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		spec:   spec,
		load:   load,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		state:  StateUnloaded,
	}

	e.mu.Lock()
	e.state = StateLoading
	e.inflight.Add(1)
	e.mu.Unlock()
	go func() {
		defer e.inflight.Done()
		_ = e.join()
	}()
	return e
}

// Spec returns the model spec this engine was built for.
func (e *Engine) Spec() Spec {
	return e.spec
}

// State reports the current model state.
func (e *Engine) State() ModelState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// LastError returns the most recent load failure, if any.
func (e *Engine) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Transcribe runs the model on the clip at audioPath and returns the trimmed text.
//
// While a load is in flight it returns ErrNotReady without blocking. From the
// failed or unloaded state it attempts one synchronous reload first.
func (e *Engine) Transcribe(ctx context.Context, audioPath string) (string, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return "", ErrClosed
	}
	state := e.state
	e.mu.Unlock()

	switch state {
	case StateLoading:
		return "", ErrNotReady
	case StateFailed, StateUnloaded:
		e.logger.Info("reloading speech model", "model_state", string(state))
		if err := e.ensureLoaded(); err != nil {
			return "", fmt.Errorf("%w: %w", ErrNotLoaded, err)
		}
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return "", ErrClosed
	}
	model := e.model
	if model == nil {
		e.mu.Unlock()
		return "", ErrNotLoaded
	}
	e.inflight.Add(1)
	e.mu.Unlock()
	defer e.inflight.Done()

	started := time.Now()
	segments, err := model.Transcribe(ctx, audioPath, Options{
		BeamSize: e.spec.BeamSize,
		Language: modelLanguage(e.spec.Language),
	})
	if err != nil {
		return "", &TranscriptionError{Err: err}
	}

	texts := make([]string, 0, len(segments))
	for _, segment := range segments {
		texts = append(texts, segment.Text)
	}
	text := transcript.Assemble(texts, transcript.Options{})
	e.logger.Debug("transcription finished",
		"segments", len(segments),
		"chars", len(text),
		"latency_ms", time.Since(started).Milliseconds(),
	)
	return text, nil
}

// Close cancels a pending load, waits for in-flight loads and transcriptions,
// then releases the model.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.cancel()
	e.inflight.Wait()

	e.mu.Lock()
	model := e.model
	e.model = nil
	e.state = StateUnloaded
	e.mu.Unlock()

	if model != nil {
		return model.Close()
	}
	return nil
}

// ensureLoaded performs or joins the single in-flight load attempt. Close does
// not return while the attempt runs.
func (e *Engine) ensureLoaded() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.inflight.Add(1)
	e.mu.Unlock()
	defer e.inflight.Done()

	return e.join()
}

func (e *Engine) join() error {
	_, err, _ := e.loads.Do(loadKey, func() (any, error) {
		return nil, e.loadModel()
	})
	return err
}

func (e *Engine) loadModel() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.state == StateReady && e.model != nil {
		e.mu.Unlock()
		return nil
	}
	e.state = StateLoading
	e.mu.Unlock()

	e.logger.Info("loading speech model",
		"backend", e.spec.Backend,
		"model_size", e.spec.ModelSize,
		"device", e.spec.Device,
		"compute_type", e.spec.ComputeType,
	)
	started := time.Now()
	model, err := e.load(e.ctx, e.spec)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		e.state = StateUnloaded
		if model != nil {
			_ = model.Close()
		}
		return ErrClosed
	}
	if err != nil {
		e.state = StateFailed
		e.lastErr = err
		e.logger.Error("speech model load failed", "error", err.Error())
		return err
	}

	e.model = model
	e.state = StateReady
	e.lastErr = nil
	e.logger.Info("speech model ready", "load_ms", time.Since(started).Milliseconds())
	return nil
}

// DescribeError renders a transcription failure as text suitable for pasting.
func DescribeError(err error) string {
	var tErr *TranscriptionError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotReady):
		return "Error: speech model is still loading..."
	case errors.Is(err, ErrNotLoaded):
		return "Error: speech model not loaded."
	case errors.As(err, &tErr):
		return "Error during transcription: " + tErr.Err.Error()
	default:
		return "Error during transcription: " + err.Error()
	}
}

func modelLanguage(language string) string {
	if language == "auto" {
		return ""
	}
	return language
}
