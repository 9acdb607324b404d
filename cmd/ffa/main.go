package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chrissnell/floodfreq/internal/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	log.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ffa: %v\n", err)
		os.Exit(1)
	}
}
