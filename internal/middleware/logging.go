package middleware

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
)

// NewRequestLogger returns a Fiber middleware that logs each request as
// structured JSON via zerolog. Probe and scrape requests log at debug.
func NewRequestLogger(log zerolog.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		path := string([]byte(c.Path()))

		err := c.Next()

		duration := time.Since(start)
		status := c.Response().StatusCode()

		evt := log.Info()
		switch {
		case status >= 500:
			evt = log.Error()
		case status >= 400:
			evt = log.Warn()
		case quiet(path):
			evt = log.Debug()
		}

		evt.
			Str("method", c.Method()).
			Str("path", path).
			Int("status", status).
			Dur("duration_ms", duration).
			Int("bytes_sent", len(c.Response().Body())).
			Msg("request")

		return err
	}
}

func quiet(path string) bool {
	return path == "/metrics" || path == "/health/live" || path == "/health/ready"
}
