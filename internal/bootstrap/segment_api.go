package bootstrap

import (
	"context"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"segment_server/adapter/in/http"
	"segment_server/infra/middleware"
	"segment_server/pkg/logger"
	"segment_server/pkg/ratelimit"
)

// NewAPI builds the HTTP server on top of deps.
func NewAPI(deps *Dependencies) *fiber.App {
	cfg := deps.Config

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,

		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		BodyLimit: 4 * 1024 * 1024,
	})

	// Global middleware stack (order matters)
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger(deps.Metrics.ObserveHTTP))
	app.Use(middleware.Recover())
	app.Use(middleware.SecurityHeaders())

	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	allowCredentials := true
	if allowOrigins == "" || allowOrigins == "*" {
		if cfg.IsProduction() {
			allowOrigins = ""
			allowCredentials = false
		} else {
			allowOrigins = "http://localhost:3000,http://localhost:5173"
		}
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Request-ID",
		ExposeHeaders:    "X-Request-ID,X-RateLimit-Limit,X-RateLimit-Remaining,X-RateLimit-Reset",
		AllowCredentials: allowCredentials,
		MaxAge:           86400,
	}))

	// Health and metrics (no auth required)
	health := http.NewHealthHandler(deps.DB, deps.Redis).
		WithStats("emitter", func() any {
			return map[string]uint64{
				"delivered": deps.Emitter.Delivered(),
				"dropped":   deps.Emitter.Dropped(),
			}
		}).
		WithStats("latency", func() any { return deps.Latency.AllStats() })
	if deps.MongoDB != nil {
		health.WithCheck("mongodb", pingFunc(func(ctx context.Context) error {
			return deps.MongoDB.Ping(ctx, readpref.Primary())
		}))
	}
	if deps.Neo4j != nil {
		health.WithCheck("neo4j", pingFunc(deps.Neo4j.VerifyConnectivity))
	}
	health.Register(app)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))

	// API routes
	api := app.Group("/api/v1")
	if cfg.JWTSecret != "" {
		api.Use(middleware.JWTAuth(cfg.JWTSecret))
	} else {
		logger.Warn("JWT_SECRET not set, API authentication is disabled")
	}

	handler := http.NewSegmentHandler(deps.Segmentation, http.SegmentHandlerDeps{
		Jobs:       deps.Jobs,
		Snapshots:  deps.Snapshots,
		Migrations: migrationReader(deps),
		Latency:    deps.Latency,
	})
	limit := middleware.NewRateLimiter(60, time.Minute).Handler()
	if deps.Redis != nil {
		limit = middleware.SharedRateLimit(ratelimit.NewSlidingWindowLimiter(deps.Redis, 60, time.Minute))
	}
	handler.Register(api, limit)

	logger.Info("API server initialized successfully")
	return app
}
