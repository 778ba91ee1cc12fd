package router

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/subhajitsr/data-assignment-SPH/internal/handler"
)

func TestSetupRoutes(t *testing.T) {
	app := fiber.New()
	Setup(app, &Handlers{Health: handler.NewHealthHandler(nil)}, prometheus.NewRegistry(), zerolog.Nop())

	tests := []struct {
		path string
		want int
	}{
		{"/health/live", 200},
		{"/health/ready", 200},
		{"/metrics", 200},
		{"/runs", 404},
	}
	for _, tt := range tests {
		resp, err := app.Test(httptest.NewRequest("GET", tt.path, nil))
		if err != nil {
			t.Fatalf("GET %s: %v", tt.path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != tt.want {
			t.Errorf("GET %s = %d, want %d", tt.path, resp.StatusCode, tt.want)
		}
	}
}
