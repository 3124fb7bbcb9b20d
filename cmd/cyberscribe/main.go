// Command cyberscribe is a push-to-talk dictation daemon and the CLI that
// controls it.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rbright/cyberscribe/internal/app"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes one CLI invocation. SIGINT, SIGTERM and SIGHUP cancel it, which
// shuts a running daemon down cleanly.
func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	runner := app.Runner{Stdout: os.Stdout, Stderr: os.Stderr, Stdin: os.Stdin}
	return runner.Execute(ctx, args)
}
