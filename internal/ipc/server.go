package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// connTimeout bounds how long one client may hold a connection, covering both
// the request read and the handler.
const connTimeout = 5 * time.Second

// Handler answers one request.
type Handler interface {
	Handle(context.Context, Request) Response
}

type HandlerFunc func(context.Context, Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// Serve answers clients on listener until ctx ends or the listener closes. It
// waits for in-flight connections before returning.
func Serve(ctx context.Context, listener net.Listener, handler Handler) error {
	stop := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer stop()

	var conns sync.WaitGroup
	defer conns.Wait()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept control connection: %w", err)
		}
		conns.Go(func() { serveConn(ctx, conn, handler) })
	}
}

func serveConn(ctx context.Context, conn net.Conn, handler Handler) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(connTimeout))

	var req Request
	if err := readMessage(conn, "request", &req); err != nil {
		_ = writeMessage(conn, "response", Response{Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, connTimeout)
	defer cancel()
	_ = writeMessage(conn, "response", handler.Handle(ctx, req))
}
