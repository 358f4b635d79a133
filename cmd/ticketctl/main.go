package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spec-kit/helpdesk-service/internal/bootstrap"
	"github.com/spec-kit/helpdesk-service/internal/cli"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	// Keep stdout for command output.
	cfg.Logger.Level = "warn"
	cfg.Logger.Format = "console"
	cfg.Logger.Output = "stderr"
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(func(ctx context.Context) (*bootstrap.Engine, error) {
		return bootstrap.Build(ctx, cfg, logger, bootstrap.Options{})
	})
	if err := root.ExecuteContext(ctx); err != nil {
		cli.WriteError(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
