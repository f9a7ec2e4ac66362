package http

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler_Ready(t *testing.T) {
	tests := []struct {
		name       string
		check      HealthChecker
		wantStatus int
		wantCheck  string
	}{
		{"healthy", pingFunc(func(context.Context) error { return nil }), fiber.StatusOK, "healthy"},
		{"unhealthy", pingFunc(func(context.Context) error { return errors.New("down") }), fiber.StatusServiceUnavailable, "unhealthy: down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			NewHealthHandler(nil, nil).
				WithCheck("mongodb", tt.check).
				WithStats("emitter", func() any { return map[string]int{"dropped": 2} }).
				Register(app)

			resp, err := app.Test(httptest.NewRequest("GET", "/ready", nil))
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}

			var body struct {
				Checks map[string]string         `json:"checks"`
				Stats  map[string]map[string]int `json:"stats"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Checks["mongodb"] != tt.wantCheck {
				t.Errorf("mongodb check = %q, want %q", body.Checks["mongodb"], tt.wantCheck)
			}
			if body.Checks["postgres"] != "not configured" {
				t.Errorf("postgres check = %q", body.Checks["postgres"])
			}
			if body.Stats["emitter"]["dropped"] != 2 {
				t.Errorf("emitter stats = %v", body.Stats["emitter"])
			}
		})
	}
}

func TestHealthHandler_NilCheckIgnored(t *testing.T) {
	h := NewHealthHandler(nil, nil).WithCheck("neo4j", nil)
	if len(h.extra) != 0 {
		t.Fatalf("nil checker registered: %v", h.extra)
	}

	app := fiber.New()
	h.Register(app)
	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
