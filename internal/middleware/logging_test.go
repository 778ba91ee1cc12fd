package middleware

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
)

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.InfoLevel)

	app := fiber.New()
	app.Use(NewRequestLogger(log))
	app.Get("/runs", func(c fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/health/live", func(c fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/boom", func(c fiber.Ctx) error { return c.SendStatus(fiber.StatusInternalServerError) })

	for _, path := range []string{"/runs", "/health/live", "/boom"} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
	}

	out := buf.String()
	if !strings.Contains(out, `"path":"/runs"`) {
		t.Errorf("expected /runs to be logged, got %s", out)
	}
	if strings.Contains(out, `"path":"/health/live"`) {
		t.Errorf("probe requests should log at debug, got %s", out)
	}
	if !strings.Contains(out, `"level":"error"`) {
		t.Errorf("expected 5xx at error level, got %s", out)
	}
}
