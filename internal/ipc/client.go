package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"
)

// Send performs one request/response exchange on the socket at path. timeout
// covers dialing, writing, and reading.
func Send(ctx context.Context, path string, req Request, timeout time.Duration) (Response, error) {
	conn, err := (&net.Dialer{Timeout: timeout}).DialContext(ctx, "unix", path)
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return Response{}, fmt.Errorf("set deadline: %w", err)
	}
	if err := writeMessage(conn, "request", req); err != nil {
		return Response{}, err
	}

	var resp Response
	if err := readMessage(conn, "response", &resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}

// Forward sends command to a running instance.
//
// handled is false when no instance is listening, so the caller can fall back
// to local behavior. A response with OK=false is returned as an error.
func Forward(ctx context.Context, path string, command string, timeout time.Duration) (resp Response, handled bool, err error) {
	resp, err = Send(ctx, path, Request{Command: command}, timeout)
	if err != nil {
		if noListener(err) {
			return Response{}, false, nil
		}
		return Response{}, true, fmt.Errorf("forward command %q: %w", command, err)
	}
	if !resp.OK {
		return resp, true, errors.New(resp.Error)
	}
	return resp, true, nil
}

// Probe checks whether a responsive instance is currently listening on path.
func Probe(ctx context.Context, path string, timeout time.Duration) (bool, error) {
	_, err := Send(ctx, path, Request{Command: "status"}, timeout)
	if err == nil {
		return true, nil
	}
	if noListener(err) {
		return false, nil
	}
	return false, fmt.Errorf("probe socket: %w", err)
}

// noListener reports dial failures that mean nothing is serving path.
func noListener(err error) bool {
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED)
}
