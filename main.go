// ./main.go
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/triage-cli/cmd"
)

// main is the entry point for the triage CLI application.
func main() {
	// Interrupt signals cancel the command context so open browser sessions
	// and tracked handles are released before exit.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd.Execute(ctx)
}
