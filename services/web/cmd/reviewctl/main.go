package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jbytow/coffeetica/pkg/logger"
	"github.com/jbytow/coffeetica/services/web/internal/config"
)

func main() {
	// Load configuration from .env and environment variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Diagnostics go to stderr; command output goes to stdout.
	log := logger.NewText(cfg.LogLevel, os.Stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, cfg, log, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}
