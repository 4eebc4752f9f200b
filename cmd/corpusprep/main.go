package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/23skdu/longbow-corpus/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logger.Log.Error("corpusprep failed", "error", err)
		stop()
		os.Exit(1)
	}
}
