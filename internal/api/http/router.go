package http

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/oaps-analytics/zendesk-reporting/internal/api/http/handlers"
	"github.com/oaps-analytics/zendesk-reporting/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health      *handlers.HealthHandler
	Tickets     *handlers.TicketsHandler
	Export      *handlers.ExportHandler
	Users       *handlers.UsersHandler
	AccessGuard *auth.Middleware
	RateLimiter *RateLimiter
}

// RegisterRoutes wires the HTTP surface. The legacy /api prefix and the
// current /api/v2 prefix are mounted in parallel for backward
// compatibility.
func RegisterRoutes(app *fiber.App, cfg RouteConfig, logger *zap.Logger) {
	app.Get("/", cfg.Health.Root)
	app.Get("/health", cfg.Health.Root)

	for _, prefix := range []string{"/api", "/api/v2"} {
		group := app.Group(prefix,
			cfg.AccessGuard.Handle,
			RateLimitMiddleware(cfg.RateLimiter, logger),
		)

		tickets := group.Group("/tickets")
		tickets.Get("/meeting-window", cfg.Tickets.MeetingWindow)
		tickets.Get("/export/last", cfg.Export.Last)
		tickets.Post("/export", cfg.Export.Export)
		tickets.Get("/users", cfg.Users.List)
		tickets.Get("/", cfg.Tickets.List)
		tickets.Get("", cfg.Tickets.List)
		tickets.Patch("/:id", cfg.Tickets.Patch)
		tickets.Post("/:id/comments", cfg.Tickets.PostComment)
		tickets.Get("/:id/comments", cfg.Tickets.GetComments)

		users := group.Group("/users")
		users.Get("/", cfg.Users.List)
		users.Get("", cfg.Users.List)
	}
}
