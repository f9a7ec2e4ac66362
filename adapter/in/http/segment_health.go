package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"segment_server/pkg/metrics"
)

type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and readiness. Every dependency is optional.
type HealthHandler struct {
	db    *pgxpool.Pool
	redis *redis.Client
	extra map[string]HealthChecker
	stats map[string]func() any
}

func NewHealthHandler(db *pgxpool.Pool, redis *redis.Client) *HealthHandler {
	return &HealthHandler{
		db:    db,
		redis: redis,
		extra: make(map[string]HealthChecker),
		stats: make(map[string]func() any),
	}
}

// WithCheck adds a named dependency to the readiness probe.
func (h *HealthHandler) WithCheck(name string, checker HealthChecker) *HealthHandler {
	if checker != nil {
		h.extra[name] = checker
	}
	return h
}

// WithStats adds a named value to the readiness payload.
func (h *HealthHandler) WithStats(name string, read func() any) *HealthHandler {
	h.stats[name] = read
	return h
}

func (h *HealthHandler) Register(app fiber.Router) {
	app.Get("/health", h.Health)
	app.Get("/ready", h.Ready)
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true
	record := func(name string, err error) {
		if err != nil {
			checks[name] = "unhealthy: " + err.Error()
			allHealthy = false
			return
		}
		checks[name] = "healthy"
	}

	if h.db != nil {
		record("postgres", h.db.Ping(ctx))
	} else {
		checks["postgres"] = "not configured"
	}

	if h.redis != nil {
		record("redis", h.redis.Ping(ctx).Err())
	} else {
		checks["redis"] = "not configured"
	}

	for name, checker := range h.extra {
		record(name, checker.Ping(ctx))
	}

	stats := fiber.Map{}
	if h.db != nil {
		stats["postgres_pool"] = metrics.PgxPoolStats(h.db)
	}
	for name, read := range h.stats {
		stats[name] = read()
	}

	status := "ready"
	statusCode := fiber.StatusOK
	if !allHealthy {
		status = "not ready"
		statusCode = fiber.StatusServiceUnavailable
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":    status,
		"checks":    checks,
		"stats":     stats,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
