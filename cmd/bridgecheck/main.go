// File: cmd/bridgecheck/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/xkilldash9x/bridgecheck/cmd"
	"github.com/xkilldash9x/bridgecheck/internal/observability"
)

// Allows mocking os.Exit in tests.
var osExit = os.Exit

func main() {
	defer handlePanic()

	// The first SIGINT or SIGTERM cancels the run; scenarios still capture
	// evidence and close their browsers before the process exits.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	osExit(run(ctx, os.Args[1:]))
}

// run executes the command line and returns the process status.
func run(ctx context.Context, args []string) int {
	if err := cmd.Execute(ctx, args); err != nil {
		return cmd.ExitCode(err)
	}
	return 0
}

func handlePanic() {
	if r := recover(); r != nil {
		observability.Sync()
		fmt.Fprintf(os.Stderr, "panic: %v\n\n%s\n", r, debug.Stack())
		osExit(1)
	}
}
