package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-reconciler/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health *handlers.HealthHandler
	Sync   *handlers.SyncHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api/v1")
	api.Post("/sync/:kind", cfg.Sync.Trigger)
	api.Get("/jobs", cfg.Sync.ListJobs)
	api.Get("/jobs/:id", cfg.Sync.JobStatus)
}
