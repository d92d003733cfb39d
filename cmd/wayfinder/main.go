// File: cmd/wayfinder/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/draven0x/wayfinder/cmd"
	"github.com/draven0x/wayfinder/internal/observability"
)

// main is the installable entrypoint, kept separate from the repository-root
// binary so `go install ./cmd/wayfinder` works.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cmd.Execute(ctx)
	observability.Sync()
	if err != nil {
		os.Exit(1)
	}
}
