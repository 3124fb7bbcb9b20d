package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// ErrAlreadyRunning means another cyberscribe instance owns the socket.
var ErrAlreadyRunning = errors.New("cyberscribe is already running")

// SocketName is the control socket file inside XDG_RUNTIME_DIR.
const SocketName = "cyberscribe.sock"

// RuntimeSocketPath resolves the control socket for the current user session.
func RuntimeSocketPath() (string, error) {
	runtimeDir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if runtimeDir == "" {
		return "", errors.New("XDG_RUNTIME_DIR is not set")
	}
	return filepath.Join(runtimeDir, SocketName), nil
}

// AcquireOptions tunes how Acquire treats an existing socket file.
type AcquireOptions struct {
	// ProbeTimeout bounds the status probe sent to an existing socket.
	ProbeTimeout time.Duration
	// Retries is how many extra listen attempts follow a stale-socket removal.
	Retries int
	// OnStale, when set, is called after a dead socket file is unlinked.
	OnStale func(path string)
}

// Acquire listens on path so that only one instance runs per session. A
// socket that answers a status probe yields ErrAlreadyRunning; one nobody
// answers on is unlinked and listening is retried, backing off after the first
// retry.
func Acquire(ctx context.Context, path string, opts AcquireOptions) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create socket dir: %w", err)
	}

	for attempt := 0; ; attempt++ {
		listener, err := net.Listen("unix", path)
		if err == nil {
			_ = os.Chmod(path, 0o600)
			return listener, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("listen on %s: %w", path, err)
		}

		alive, probeErr := Probe(ctx, path, opts.ProbeTimeout)
		switch {
		case alive:
			return nil, ErrAlreadyRunning
		case probeErr != nil:
			// Something accepted the probe but never replied; leave it alone.
			return nil, fmt.Errorf("probe existing socket %s: %w", path, probeErr)
		}

		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale socket %s: %w", path, err)
		}
		if opts.OnStale != nil {
			opts.OnStale(path)
		}

		if attempt > opts.Retries {
			return nil, fmt.Errorf("socket %s still busy after %d retries", path, opts.Retries)
		}
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 25 * time.Millisecond):
			}
		}
	}
}

// Release closes listener and unlinks its socket file.
func Release(listener net.Listener, path string) error {
	closeErr := listener.Close()
	if errors.Is(closeErr, net.ErrClosed) {
		closeErr = nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Join(closeErr, fmt.Errorf("remove socket %s: %w", path, err))
	}
	return closeErr
}
