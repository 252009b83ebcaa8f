package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"recarchive/internal/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cli.NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "recarchive: %v\n", err)
		cancel()
		os.Exit(1)
	}
}
