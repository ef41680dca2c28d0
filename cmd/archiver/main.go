// Package main runs the system log archiver as a one-shot job, intended for
// a cron schedule. It moves request log rows past the retention age into
// compressed NDJSON archives on disk and purges them from the hot table.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"recordstack/internal/archiver"
	"recordstack/internal/config"
	"recordstack/internal/db"
	"recordstack/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var provider config.SecretProvider
	if os.Getenv("APP_ENV") != "local" {
		provider = config.NewSSMProvider(os.Getenv("AWS_REGION"))
	}
	cfg, err := config.LoadConfig(provider)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("archiver starting",
		"environment", cfg.Environment,
		"dir", cfg.Archive.Dir,
		"retention_age", cfg.Archive.RetentionAge,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database pool: %w", err)
	}
	defer pool.Close()

	arch := archiver.New(db.NewSystemLogRepository(pool), archiver.Config{
		Dir:          cfg.Archive.Dir,
		RetentionAge: cfg.Archive.RetentionAge,
		BatchSize:    cfg.Archive.BatchSize,
	}, types.RealClock{}, logger)

	archived, err := arch.Run(ctx)
	if err != nil {
		return fmt.Errorf("archive run: %w", err)
	}

	logger.Info("archiver finished", "archived", archived)
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
