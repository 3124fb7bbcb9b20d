// Package recording owns the capture lifecycle of one dictation clip at a time.
package recording

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rbright/cyberscribe/internal/clip"
)

// ErrDevice wraps failures to open or read the audio input.
var ErrDevice = errors.New("audio device error")

// ErrStreamEnded is reported when a stream closes without being asked to.
var ErrStreamEnded = errors.New("audio stream ended unexpectedly")

// Stream is an open audio input delivering s16 mono PCM chunks.
type Stream interface {
	// Chunks is closed when the stream ends, either after Close or on its own.
	Chunks() <-chan []byte
	// Err reports why a stream ended on its own.
	Err() error
	Close() error
}

// Opener opens a fresh input stream at the fixed capture format.
type Opener func(ctx context.Context) (Stream, error)

// Recorder runs at most one capture goroutine and turns its buffer into a clip.
type Recorder struct {
	open       Opener
	dir        string
	sampleRate int
	logger     *slog.Logger

	mu     sync.Mutex
	active *session
	closed bool

	faults chan error
}

type session struct {
	stream Stream
	stop   chan struct{}
	done   chan struct{}

	// pcm is written by the capture goroutine and read after done is closed.
	pcm []byte

	release sync.Once
	err     error
}

// New builds a recorder that writes finished clips into dir.
func New(open Opener, dir string, sampleRate int, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Recorder{
		open:       open,
		dir:        dir,
		sampleRate: sampleRate,
		logger:     logger,
		faults:     make(chan error, 1),
	}
}

// Faults delivers one error per recording whose stream ended without Stop.
func (r *Recorder) Faults() <-chan error {
	return r.faults
}

// Recording reports whether a capture goroutine is active.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

// Start opens a stream and launches the capture goroutine. It is a no-op while recording.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("%w: recorder closed", ErrDevice)
	}
	if r.active != nil {
		return nil
	}

	stream, err := r.open(ctx)
	if err != nil {
		return fmt.Errorf("%w: open input: %v", ErrDevice, err)
	}

	s := &session{
		stream: stream,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	r.active = s
	go r.capture(s)

	r.logger.Debug("capture started")
	return nil
}

func (r *Recorder) capture(s *session) {
	defer close(s.done)

	for chunk := range s.stream.Chunks() {
		s.pcm = append(s.pcm, chunk...)
	}

	select {
	case <-s.stop:
		return
	default:
	}

	cause := s.stream.Err()
	if cause == nil {
		cause = ErrStreamEnded
	}
	select {
	case r.faults <- fmt.Errorf("%w: %w", ErrDevice, cause):
	default:
	}
}

// Stop ends the active recording and returns its clip.
//
// ok is false when nothing was recording or no frames were captured. The
// stream is always closed before Stop returns.
func (r *Recorder) Stop() (c clip.Clip, ok bool, err error) {
	r.mu.Lock()
	s := r.active
	r.active = nil
	r.mu.Unlock()

	if s == nil {
		return clip.Clip{}, false, nil
	}

	closeErr := r.finish(s)
	if closeErr != nil {
		r.logger.Warn("close audio stream failed", "error", closeErr.Error())
	}

	if len(s.pcm) < 2 {
		return clip.Clip{}, false, nil
	}

	c, err = clip.Write(r.dir, s.pcm, r.sampleRate)
	if err != nil {
		return clip.Clip{}, false, fmt.Errorf("write clip: %w", err)
	}
	r.logger.Debug("capture stopped", "clip_path", c.Path, "frames", c.Frames)
	return c, true, nil
}

// Abort ends the active recording and discards whatever was captured.
func (r *Recorder) Abort() {
	r.mu.Lock()
	s := r.active
	r.active = nil
	r.mu.Unlock()

	if s == nil {
		return
	}
	if err := r.finish(s); err != nil {
		r.logger.Warn("close audio stream failed", "error", err.Error())
	}
}

// Close aborts any active recording and refuses further starts.
func (r *Recorder) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.Abort()
}

// finish signals stop, releases the stream, and waits for the capture goroutine.
// A fault the session raised before it was finished is dropped so it cannot
// be mistaken for one raised by a later session.
func (r *Recorder) finish(s *session) error {
	s.release.Do(func() {
		close(s.stop)
		s.err = s.stream.Close()
	})
	<-s.done

	select {
	case <-r.faults:
	default:
	}
	return s.err
}
