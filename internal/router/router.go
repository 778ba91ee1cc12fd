package router

import (
	"github.com/gofiber/fiber/v3"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/subhajitsr/data-assignment-SPH/internal/handler"
	"github.com/subhajitsr/data-assignment-SPH/internal/middleware"
)

// Handlers holds all handler instances needed by the router.
type Handlers struct {
	Health *handler.HealthHandler
	Runs   *handler.RunsHandler // nil when the run ledger is disabled
}

// Setup configures the middleware stack and the ops routes on the given Fiber app.
func Setup(app *fiber.App, h *Handlers, gatherer prometheus.Gatherer, log zerolog.Logger) {
	// Middleware stack (order matters)
	app.Use(recoverer.New())
	app.Use(middleware.NewRequestLogger(log))
	app.Use(handler.MetricsMiddleware())

	app.Get("/health/live", h.Health.Live)
	app.Get("/health/ready", h.Health.Ready)
	app.Get("/metrics", handler.MetricsHandler(gatherer))

	if h.Runs != nil {
		app.Get("/runs", h.Runs.List)
	}
}
