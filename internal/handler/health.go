package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
)

// Check probes one dependency.
type Check func(ctx context.Context) error

// Dependency is a named readiness check. A nil Check reports "disabled".
// A failing required dependency makes the process unready; a failing
// optional one only degrades it.
type Dependency struct {
	Name     string
	Check    Check
	Required bool
}

type HealthHandler struct {
	deps    []Dependency
	running func() bool
	startAt time.Time
}

// NewHealthHandler creates the probe handler. running reports whether a cycle
// is active and may be nil.
func NewHealthHandler(running func() bool, deps ...Dependency) *HealthHandler {
	return &HealthHandler{
		deps:    deps,
		running: running,
		startAt: time.Now(),
	}
}

// Live handles GET /health/live.
func (h *HealthHandler) Live(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Ready handles GET /health/ready. It returns 503 only when a required dependency is down.
func (h *HealthHandler) Ready(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
	defer cancel()

	checks := make(fiber.Map, len(h.deps))
	overallStatus := "healthy"

	for _, d := range h.deps {
		result := check(ctx, d.Check)
		checks[d.Name] = result
		if result["status"] != "down" {
			continue
		}
		if d.Required {
			overallStatus = "unhealthy"
		} else if overallStatus == "healthy" {
			overallStatus = "degraded"
		}
	}

	resp := fiber.Map{
		"status":         overallStatus,
		"checks":         checks,
		"uptime_seconds": int(time.Since(h.startAt).Seconds()),
	}
	if h.running != nil {
		resp["cycle_running"] = h.running()
	}

	status := fiber.StatusOK
	if overallStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(resp)
}

func check(ctx context.Context, fn Check) fiber.Map {
	if fn == nil {
		return fiber.Map{
			"status": "disabled",
		}
	}

	start := time.Now()
	err := fn(ctx)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return fiber.Map{
			"status":     "down",
			"latency_ms": latency,
			"error":      "connection failed",
		}
	}
	return fiber.Map{
		"status":     "up",
		"latency_ms": latency,
	}
}
