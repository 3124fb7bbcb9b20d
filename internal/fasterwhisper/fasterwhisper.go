// Package fasterwhisper runs a persistent faster-whisper helper process and
// exposes it as an engine.Model.
package fasterwhisper

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rbright/cyberscribe/internal/engine"
)

//go:embed assets/worker.py
var workerScript []byte

// helperScript is the program handed to the interpreter.
var helperScript = workerScript

const (
	closeGrace    = 5 * time.Second
	maxLineBytes  = 4 << 20
	stderrTailLen = 512
)

type readyLine struct {
	Ready bool   `json:"ready"`
	Error string `json:"error"`
}

type request struct {
	ID       uint64 `json:"id"`
	Audio    string `json:"audio"`
	BeamSize int    `json:"beam_size"`
	Language string `json:"language,omitempty"`
}

type response struct {
	ID       uint64 `json:"id"`
	Language string `json:"language"`
	Error    string `json:"error"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Model is a loaded faster-whisper model living in a helper process.
type Model struct {
	logger *slog.Logger
	script string

	cmd     *exec.Cmd
	stdin   io.WriteCloser
	lines   chan []byte
	stderr  *tailBuffer
	exited  chan struct{}
	exitErr error

	mu     sync.Mutex
	nextID uint64
	closed bool
}

// Loader returns an engine.Loader that starts the helper with interpreter python.
func Loader(python string, logger *slog.Logger) engine.Loader {
	return func(ctx context.Context, spec engine.Spec) (engine.Model, error) {
		return Load(ctx, python, spec, logger)
	}
}

// Load starts the helper and blocks until it reports the model is ready.
func Load(ctx context.Context, python string, spec engine.Spec, logger *slog.Logger) (*Model, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	python = strings.TrimSpace(python)
	if python == "" {
		python = "python3"
	}

	script, err := writeScript()
	if err != nil {
		return nil, err
	}

	args := []string{script, "--model", spec.ModelSize}
	if spec.Device != "" {
		args = append(args, "--device", spec.Device)
	}
	if spec.ComputeType != "" {
		args = append(args, "--compute-type", spec.ComputeType)
	}

	cmd := exec.Command(python, args...)
	cmd.Env = os.Environ()
	stdin, err := cmd.StdinPipe()
	if err != nil {
		_ = os.Remove(script)
		return nil, fmt.Errorf("open helper stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = os.Remove(script)
		return nil, fmt.Errorf("open helper stdout: %w", err)
	}
	stderr := &tailBuffer{limit: stderrTailLen}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		_ = os.Remove(script)
		return nil, fmt.Errorf("start %s: %w", python, err)
	}

	m := &Model{
		logger: logger,
		script: script,
		cmd:    cmd,
		stdin:  stdin,
		lines:  make(chan []byte, 1),
		stderr: stderr,
		exited: make(chan struct{}),
	}
	go m.readLines(stdout)

	first, err := m.next(ctx)
	if err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("load model %q: %w", spec.ModelSize, err)
	}
	var ready readyLine
	if err := json.Unmarshal(first, &ready); err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("load model %q: parse helper handshake: %w", spec.ModelSize, err)
	}
	if ready.Error != "" {
		_ = m.Close()
		return nil, errors.New(ready.Error)
	}
	if !ready.Ready {
		_ = m.Close()
		return nil, fmt.Errorf("load model %q: helper did not report ready", spec.ModelSize)
	}

	logger.Debug("faster-whisper helper ready", "pid", cmd.Process.Pid, "model_size", spec.ModelSize)
	return m, nil
}

// Transcribe sends one clip to the helper. Calls are serialized.
func (m *Model) Transcribe(ctx context.Context, audioPath string, opts engine.Options) ([]engine.Segment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errors.New("faster-whisper helper closed")
	}

	m.nextID++
	req := request{ID: m.nextID, Audio: audioPath, BeamSize: opts.BeamSize, Language: opts.Language}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	if _, err := m.stdin.Write(append(payload, '\n')); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	for {
		raw, err := m.next(ctx)
		if err != nil {
			return nil, err
		}
		var resp response
		if err := json.Unmarshal(raw, &resp); err != nil {
			return nil, fmt.Errorf("parse helper output: %w", err)
		}
		if resp.ID != 0 && resp.ID != req.ID {
			m.logger.Warn("discarding stale helper response", "id", resp.ID, "want", req.ID)
			continue
		}
		if resp.Error != "" {
			return nil, errors.New(resp.Error)
		}

		segments := make([]engine.Segment, 0, len(resp.Segments))
		for _, s := range resp.Segments {
			segments = append(segments, engine.Segment{Start: s.Start, End: s.End, Text: s.Text})
		}
		return segments, nil
	}
}

// Close stops the helper: stdin is closed first, then the process is killed
// if it has not exited within the grace period.
func (m *Model) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	_ = m.stdin.Close()
	go func() {
		for range m.lines {
		}
	}()
	select {
	case <-m.exited:
	case <-time.After(closeGrace):
		_ = m.cmd.Process.Kill()
		<-m.exited
	}
	_ = os.Remove(m.script)
	return nil
}

func (m *Model) readLines(stdout io.Reader) {
	defer close(m.exited)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		data := append([]byte(nil), scanner.Bytes()...)
		if len(strings.TrimSpace(string(data))) == 0 {
			continue
		}
		m.lines <- data
	}

	err := m.cmd.Wait()
	if scanErr := scanner.Err(); scanErr != nil {
		err = scanErr
	}
	m.exitErr = m.exitError(err)
	close(m.lines)
}

func (m *Model) next(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case data, ok := <-m.lines:
		if !ok {
			return nil, m.exitErr
		}
		return data, nil
	}
}

func (m *Model) exitError(err error) error {
	tail := strings.TrimSpace(m.stderr.String())
	switch {
	case err != nil && tail != "":
		return fmt.Errorf("faster-whisper helper exited: %w: %s", err, tail)
	case err != nil:
		return fmt.Errorf("faster-whisper helper exited: %w", err)
	case tail != "":
		return fmt.Errorf("faster-whisper helper exited: %s", tail)
	default:
		return errors.New("faster-whisper helper exited")
	}
}

func writeScript() (string, error) {
	f, err := os.CreateTemp("", "cyberscribe-worker-*.py")
	if err != nil {
		return "", fmt.Errorf("write helper script: %w", err)
	}
	if _, err := f.Write(helperScript); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write helper script: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write helper script: %w", err)
	}
	return f.Name(), nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
