// Package bootstrap assembles the ticket engine from configuration. The HTTP
// server and the CLI share it.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/cache"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/repository/memory"
	"github.com/spec-kit/helpdesk-service/internal/service"
	"github.com/spec-kit/helpdesk-service/internal/worker"
)

// Store backends reported by Engine.Backend.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Engine holds every long-lived component of the service.
type Engine struct {
	Config       *config.Config
	Logger       *zap.Logger
	Metrics      *observability.Metrics
	Postgres     *persistence.Postgres
	Redis        *persistence.Redis
	Repositories repository.Repositories
	Cache        *cache.Cache
	Dispatcher   events.Dispatcher
	Tickets      *service.TicketService
	Advanced     *service.AdvancedQueryService
	Analytics    *service.AnalyticsService
	References   *service.ReferenceService
	Backend      string
}

// Options overrides collaborators, mostly for tests.
type Options struct {
	Clock   clock.Clock
	Metrics *observability.Metrics
}

// Build connects the stores and constructs the services. Without a
// Postgres DSN the engine runs on a seeded in-memory store.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}

	e := &Engine{Config: cfg, Logger: logger, Metrics: opts.Metrics}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	e.Postgres = pg
	if pg.Enabled() {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.Pool, cfg.Postgres.MigrationsDir, logger); err != nil {
				pg.Close()
				return nil, err
			}
		}
		e.Repositories = repository.NewPostgresRepositories(pg.Pool)
		e.Backend = BackendPostgres
	} else {
		e.Repositories = memory.NewSeeded().Repositories()
		e.Backend = BackendMemory
	}

	e.Redis = persistence.NewRedis(ctx, cfg.Redis, logger)
	var remote cache.Remote
	if cfg.Cache.Remote && e.Redis != nil {
		remote = cache.NewRedisRemote(e.Redis.Client, cfg.Cache.KeyPrefix)
	}
	e.Cache = cache.New(cache.Options{
		Enabled:    cfg.Cache.Enabled,
		DefaultTTL: cfg.Cache.DefaultTTL(),
		Clock:      opts.Clock,
		Remote:     remote,
		Logger:     logger.Named("cache"),
		Metrics:    opts.Metrics,
	})

	e.Dispatcher = events.NewInMemoryDispatcher()
	worker.StartNotificationWorker(service.NewNotificationService(e.Dispatcher, nil, logger.Named("notifications"), cfg.Notification), logger)

	e.Tickets = service.NewTicketService(service.TicketDependencies{
		Repositories: e.Repositories,
		Dispatcher:   e.Dispatcher,
		Logger:       logger.Named("tickets"),
		Metrics:      opts.Metrics,
		Clock:        opts.Clock,
		SlowQuery:    cfg.Query.SlowQuery(),
	})
	e.Advanced = service.NewAdvancedQueryService(service.AdvancedQueryDependencies{
		Repositories: e.Repositories,
		Logger:       logger.Named("query"),
		Metrics:      opts.Metrics,
		Clock:        opts.Clock,
	})
	e.Analytics = service.NewAnalyticsService(service.AnalyticsDependencies{
		Repositories: e.Repositories,
		Cache:        e.Cache,
		Logger:       logger.Named("analytics"),
		Clock:        opts.Clock,
		SLADays:      cfg.Reports.SLADays,
		TrendDays:    cfg.Reports.TrendDays,
	})
	e.References = service.NewReferenceService(e.Repositories.References, e.Cache)

	logger.Info("ticket engine ready",
		zap.String("store", e.Backend),
		zap.Bool("cache_enabled", cfg.Cache.Enabled),
		zap.Bool("cache_remote", remote != nil))
	return e, nil
}

// Close disposes the cache and the store connections.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.Cache.Close()
	e.Redis.Close()
	e.Postgres.Close()
}
