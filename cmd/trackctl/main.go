// Command trackctl is the operator CLI for the click tracker.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sakif/clicktrail/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
