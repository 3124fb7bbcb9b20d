package ipc

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// startServer serves handler on a fresh socket until the test ends.
func startServer(t *testing.T, handler HandlerFunc) string {
	t.Helper()

	socketPath := filepath.Join(t.TempDir(), SocketName)
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, listener, handler) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return socketPath
}

// startRaw accepts one connection and lets reply drive it by hand.
func startRaw(t *testing.T, reply func(net.Conn)) string {
	t.Helper()

	socketPath := filepath.Join(t.TempDir(), SocketName)
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		reply(conn)
	}()
	return socketPath
}

func TestSendRoundTrip(t *testing.T) {
	socketPath := startServer(t, func(_ context.Context, req Request) Response {
		return Response{OK: true, State: "transcribing", Message: "got " + req.Command}
	})

	resp, err := Send(context.Background(), socketPath, Request{Command: "status"}, 200*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, Response{OK: true, State: "transcribing", Message: "got status"}, resp)
}

func TestSendReportsBadReplies(t *testing.T) {
	tests := []struct {
		name    string
		reply   func(net.Conn)
		wantErr string
	}{
		{
			name: "garbage",
			reply: func(c net.Conn) {
				_, _ = bufio.NewReader(c).ReadBytes('\n')
				_, _ = c.Write([]byte("<html>\n"))
			},
			wantErr: "decode response",
		},
		{
			name:    "hangup",
			reply:   func(net.Conn) {},
			wantErr: "read response",
		},
		{
			name: "silence",
			reply: func(c net.Conn) {
				_, _ = bufio.NewReader(c).ReadBytes('\n')
				time.Sleep(300 * time.Millisecond)
			},
			wantErr: "i/o timeout",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			socketPath := startRaw(t, tt.reply)
			_, err := Send(context.Background(), socketPath, Request{Command: "status"}, 100*time.Millisecond)
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestServeAnswersMalformedRequests(t *testing.T) {
	socketPath := startServer(t, func(context.Context, Request) Response {
		return Response{OK: true}
	})

	tests := map[string]struct {
		payload []byte
		wantErr string
	}{
		"not json": {payload: []byte("toggle\n"), wantErr: "decode request"},
		"too long": {payload: bytes.Repeat([]byte("a"), maxMessageBytes+64), wantErr: "exceeds 4096 bytes"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			conn, err := net.Dial("unix", socketPath)
			require.NoError(t, err)
			defer conn.Close()

			_, err = conn.Write(tt.payload)
			require.NoError(t, err)

			var resp Response
			require.NoError(t, readMessage(conn, "response", &resp))
			require.False(t, resp.OK)
			require.Contains(t, resp.Error, tt.wantErr)
		})
	}
}

func TestProbe(t *testing.T) {
	socketPath := startServer(t, func(context.Context, Request) Response {
		return Response{OK: true, State: "idle"}
	})

	alive, err := Probe(context.Background(), socketPath, 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, alive)

	alive, err = Probe(context.Background(), filepath.Join(t.TempDir(), SocketName), 100*time.Millisecond)
	require.NoError(t, err)
	require.False(t, alive)
}

func TestForward(t *testing.T) {
	socketPath := startServer(t, func(_ context.Context, req Request) Response {
		if req.Command == "toggle" {
			return Response{OK: true, State: "recording", Message: "toggle queued"}
		}
		return Response{OK: false, State: "idle", Error: "unknown command: " + req.Command}
	})

	resp, handled, err := Forward(context.Background(), socketPath, "toggle", 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, handled)
	require.Equal(t, "toggle queued", resp.Message)

	_, handled, err = Forward(context.Background(), socketPath, "dance", 200*time.Millisecond)
	require.True(t, handled)
	require.EqualError(t, err, "unknown command: dance")

	_, handled, err = Forward(context.Background(), filepath.Join(t.TempDir(), SocketName), "toggle", 100*time.Millisecond)
	require.NoError(t, err)
	require.False(t, handled)
}
