package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwcc-clan/polebot-go/internal/config"
	"github.com/bwcc-clan/polebot-go/internal/db"
	"github.com/bwcc-clan/polebot-go/internal/orchestrator"
)

const DefaultConfigPath = "config/polebot.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfgPath := config.PathFromEnv(DefaultConfigPath)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))
	slog.Info("polebot starting", "config", cfgPath)

	dsn, err := cfg.Database.DSN()
	if err != nil {
		return fmt.Errorf("resolving database DSN: %w", err)
	}

	if err := db.RunMigrations(ctx, dsn); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database migrations applied")

	database, err := db.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer database.Close()
	slog.Info("database connected")

	orch := orchestrator.New(database.ServerRepository(), orchestrator.Config{
		HTTPTimeout:   time.Duration(cfg.HTTP.Timeout),
		HTTPRetry:     cfg.HTTP.Retry.ToBackoff(),
		WSOpenTimeout: time.Duration(cfg.WebSocket.OpenTimeout),
	}, slog.Default())

	if err := orch.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	slog.Info("polebot stopped")
	return nil
}

// parseLogLevel converts a string log level to slog.Level, defaulting to
// Info if invalid or empty.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
