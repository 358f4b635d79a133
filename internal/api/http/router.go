package http

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health    *handlers.HealthHandler
	Tickets   *handlers.TicketsHandler
	Reference *handlers.ReferenceHandler
	Analytics *handlers.AnalyticsHandler
	Actor     *auth.ActorMiddleware
	Metrics   *observability.Metrics
}

// NewApp builds a fiber app using go-json for request and response bodies.
func NewApp(appName string) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:               appName,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          15 * time.Second,
	})
}

// Setup attaches middlewares and routes to app.
func Setup(app *fiber.App, logger *zap.Logger, timeout time.Duration, cfg RouteConfig) {
	RegisterMiddlewares(app, logger, cfg.Metrics, timeout)
	RegisterRoutes(app, cfg)
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))

	tickets := app.Group("/tickets", cfg.Actor.Handle)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/search", cfg.Tickets.SearchTickets)
	tickets.Post("/query", cfg.Tickets.QueryTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Put("/:id", cfg.Tickets.UpdateTicket)
	tickets.Get("/:id/messages", cfg.Tickets.ListMessages)
	tickets.Post("/:id/messages", cfg.Tickets.AddMessage)
	tickets.Get("/:id/attachments", cfg.Tickets.ListAttachments)
	tickets.Get("/:id/history", cfg.Tickets.ListHistory)

	reference := app.Group("/reference", cfg.Actor.Handle)
	reference.Get("/statuses", cfg.Reference.Statuses)
	reference.Get("/severities", cfg.Reference.Severities)
	reference.Get("/sites", cfg.Reference.Sites)
	reference.Get("/assets", cfg.Reference.Assets)
	reference.Get("/categories", cfg.Reference.Categories)
	reference.Get("/vendors", cfg.Reference.Vendors)
	reference.Get("/resolve", cfg.Reference.Resolve)

	analytics := app.Group("/analytics", cfg.Actor.Handle)
	analytics.Get("/tickets-by-status", cfg.Analytics.TicketsByStatus)
	analytics.Get("/open-by-site", cfg.Analytics.OpenBySite)
	analytics.Get("/open-by-assignee", cfg.Analytics.OpenByAssignee)
	analytics.Get("/waiting-on-user", cfg.Analytics.WaitingOnUser)
	analytics.Get("/sla-breaches", cfg.Analytics.SLABreaches)
	analytics.Get("/trend", cfg.Analytics.Trend)
	analytics.Get("/staff", cfg.Analytics.Staff)
	analytics.Delete("/cache", cfg.Analytics.ClearCache)
}
