package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.design/x/hotkey/mainthread"

	"dictakey/internal/config"
	"dictakey/internal/logging"
)

func main() {
	// Hotkey registration must happen on the main thread on macOS.
	mainthread.Init(run)
}

func run() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "dictakey:", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = NewApp(cfg, logger).Run(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
