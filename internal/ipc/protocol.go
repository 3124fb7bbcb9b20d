// Package ipc is the local control plane: one JSON request line and one JSON
// response line per unix-socket connection.
package ipc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// maxMessageBytes caps a single request or response line.
const maxMessageBytes = 4096

var errMessageTooLarge = fmt.Errorf("message exceeds %d bytes", maxMessageBytes)

// Request names one command for the running instance.
type Request struct {
	Command string `json:"command"`
}

// Response reports whether the command was accepted and the recording state
// at the time it was handled.
type Response struct {
	OK      bool   `json:"ok"`
	State   string `json:"state,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// readMessage decodes one newline-terminated JSON value into v. what names the
// message in errors ("request" or "response").
func readMessage(r io.Reader, what string, v any) error {
	line, err := bufio.NewReader(io.LimitReader(r, maxMessageBytes+1)).ReadBytes('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > maxMessageBytes {
			err = errMessageTooLarge
		}
		return fmt.Errorf("read %s: %w", what, err)
	}
	if err := json.Unmarshal(line, v); err != nil {
		return fmt.Errorf("decode %s: %w", what, err)
	}
	return nil
}

// writeMessage encodes v as a single JSON line.
func writeMessage(w io.Writer, what string, v any) error {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", what, err)
	}
	return nil
}
