package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cdp-skill/cdp-skill/internal/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	o := cmd.NewOptions()
	root := cmd.NewRootCommand(o)
	root.SetContext(ctx)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
	os.Exit(o.ExitCode)
}
