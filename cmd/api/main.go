package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk-service/internal/api/http"
	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/bootstrap"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()
	engine, err := bootstrap.Build(ctx, cfg, logger, bootstrap.Options{Metrics: metrics})
	if err != nil {
		logger.Fatal("failed to build ticket engine", zap.Error(err))
	}
	defer engine.Close()

	var tokens *auth.TokenManager
	if cfg.Auth.JWTSecret != "" {
		tokens = auth.NewTokenManager(cfg.Auth.JWTSecret, 60, nil)
	} else {
		logger.Warn("AUTH_JWT_SECRET not provided; all writes are stamped with the default actor",
			zap.String("actor", cfg.Auth.DefaultActor))
	}

	dependencies := map[string]handlers.Pinger{}
	if engine.Postgres.Enabled() {
		dependencies["postgres"] = engine.Postgres
	}
	if engine.Redis != nil {
		dependencies["redis"] = engine.Redis
	}

	app := httptransport.NewApp(cfg.App.Name)
	httptransport.Setup(app, logger, cfg.App.RequestTimeout(), httptransport.RouteConfig{
		Health:    handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, engine.Backend, dependencies),
		Tickets:   handlers.NewTicketsHandler(engine.Tickets, engine.Advanced),
		Reference: handlers.NewReferenceHandler(engine.References),
		Analytics: handlers.NewAnalyticsHandler(engine.Analytics),
		Actor:     auth.NewActorMiddleware(tokens, cfg.Auth.DefaultActor),
		Metrics:   metrics,
	})

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
