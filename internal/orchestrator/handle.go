package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rbright/cyberscribe/internal/ipc"
)

const submitTimeout = 2 * time.Second

// Handle serves IPC commands by queueing them on the loop.
func (o *Orchestrator) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	if req.Command == "status" {
		status := o.Status()
		return ipc.Response{
			OK:    true,
			State: string(status.State),
			Message: fmt.Sprintf("model=%s hotkey=%s pending=%d",
				status.Model, status.Chord, status.Pending),
		}
	}

	submitCtx, cancel := context.WithTimeout(ctx, submitTimeout)
	defer cancel()

	cmd := Command(req.Command)
	if err := o.Submit(submitCtx, cmd); err != nil {
		resp := ipc.Response{OK: false, State: string(o.State()), Error: err.Error()}
		if errors.Is(err, ErrUnknownCommand) {
			resp.Error = fmt.Sprintf("unknown command: %s", req.Command)
		}
		return resp
	}
	return ipc.Response{OK: true, State: string(o.State()), Message: fmt.Sprintf("%s queued", cmd)}
}
