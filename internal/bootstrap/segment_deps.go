package bootstrap

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"segment_server/adapter/out/graph"
	"segment_server/adapter/out/messaging"
	metricsadapter "segment_server/adapter/out/metrics"
	"segment_server/adapter/out/mongodb"
	"segment_server/adapter/out/persistence"
	"segment_server/config"
	"segment_server/core/agent/llm"
	"segment_server/core/port/out"
	"segment_server/core/service/segmentation"
	"segment_server/infra/database"
	"segment_server/pkg/cache"
	"segment_server/pkg/logger"
	"segment_server/pkg/metrics"
	"segment_server/pkg/resilience"
)

const memoryCacheItems = 100000

type Dependencies struct {
	Config  *config.Config
	DB      *pgxpool.Pool
	SQLDB   *sqlx.DB
	Redis   *redis.Client
	MongoDB *mongo.Client
	Neo4j   neo4j.DriverWithContext

	// Ports
	Purchases  *persistence.PurchaseAdapter
	Customers  *persistence.CustomerAdapter
	Cache      out.CacheStore
	Advisory   out.AdvisoryClassifier
	Snapshots  out.SnapshotRepository
	Migrations *graph.MigrationAdapter
	Notifier   out.NotificationSink
	Jobs       out.JobProducer

	// Metrics
	Registry *prometheus.Registry
	Metrics  *metricsadapter.PrometheusSink
	Latency  *metrics.LatencyRegistry

	// Services
	Emitter      *segmentation.Emitter
	Segmentation *segmentation.Service
}

// InitLogger configures the package logger from cfg.
func InitLogger(cfg *config.Config) {
	level := logger.ParseLevel(cfg.LogLevel)
	if cfg.IsDevelopment() && cfg.LogLevel == "" {
		level = logger.LevelDebug
	}
	logger.Init(logger.Config{
		Level:   level,
		Output:  os.Stdout,
		Service: "segment-server",
		Console: cfg.IsDevelopment(),
	})
}

// NewDependencies connects every configured backend and wires the
// segmentation service. The returned cleanup releases them in reverse order.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	zlog := logger.Default().Zerolog()

	// PostgreSQL holds customers and purchases.
	if cfg.DatabaseURL == "" {
		return nil, nil, errors.New("DATABASE_URL is required")
	}
	db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return fail(err)
	}
	deps.DB = db
	cleanups = append(cleanups, db.Close)

	sqlDB, err := database.NewSQLX(ctx, cfg.DatabaseURL)
	if err != nil {
		return fail(err)
	}
	deps.SQLDB = sqlDB
	cleanups = append(cleanups, func() { _ = sqlDB.Close() })

	deps.Purchases = persistence.NewPurchaseAdapter(sqlDB)
	deps.Customers = persistence.NewCustomerAdapter(db)

	// Redis (optional): cache, event stream, batch jobs.
	if cfg.RedisURL != "" {
		rdb, err := database.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fail(err)
		}
		deps.Redis = rdb
		cleanups = append(cleanups, func() { _ = rdb.Close() })
		deps.Jobs = messaging.NewRedisProducer(rdb)
	}

	// Assignment cache
	switch cfg.CacheBackend {
	case config.CacheBackendRedis:
		if deps.Redis != nil {
			deps.Cache = cache.NewRedisStore(deps.Redis)
		} else {
			logger.Warn("REDIS_URL not set, using in-memory assignment cache")
			deps.Cache = cache.NewMemoryStore(memoryCacheItems)
		}
	case config.CacheBackendBadger:
		store, err := cache.NewBadgerStore(cache.BadgerOptions{Dir: cfg.BadgerDir, Logger: zlog})
		if err != nil {
			return fail(err)
		}
		deps.Cache = store
		cleanups = append(cleanups, func() { _ = store.Close() })
	default:
		deps.Cache = cache.NewMemoryStore(memoryCacheItems)
	}

	// MongoDB (optional): run snapshots.
	if cfg.MongoDBURL != "" {
		client, err := mongodb.NewClient(ctx, cfg.MongoDBURL)
		if err != nil {
			return fail(err)
		}
		deps.MongoDB = client
		cleanups = append(cleanups, func() { _ = client.Disconnect(context.Background()) })

		snapshots := mongodb.NewSnapshotAdapter(client.Database(cfg.MongoDBName))
		if err := snapshots.EnsureIndexes(ctx); err != nil {
			logger.WithError(err).Warn("failed to create snapshot indexes")
		}
		deps.Snapshots = snapshots
	}

	// Neo4j (optional): migration history.
	if cfg.Neo4jURL != "" {
		driver, err := graph.NewDriver(ctx, cfg.Neo4jURL, cfg.Neo4jUsername, cfg.Neo4jPassword)
		if err != nil {
			return fail(err)
		}
		deps.Neo4j = driver
		cleanups = append(cleanups, func() { _ = driver.Close(context.Background()) })

		deps.Migrations = graph.NewMigrationAdapter(driver, "")
		if err := deps.Migrations.EnsureConstraints(ctx); err != nil {
			logger.WithError(err).Warn("failed to create neo4j constraints")
		}
	}

	// Event sink
	switch cfg.EventSink {
	case config.EventSinkKafka:
		publisher := messaging.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		deps.Notifier = publisher
		cleanups = append(cleanups, func() { _ = publisher.Close() })
	case config.EventSinkRedis:
		if deps.Redis != nil {
			deps.Notifier = messaging.NewRedisProducer(deps.Redis)
		} else {
			logger.Warn("REDIS_URL not set, segment update events are disabled")
		}
	}

	// Advisory model
	if cfg.AdvisoryAvailable() {
		client := llm.NewClientWithConfig(llm.ClientConfig{
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.LLMModel,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
		})
		breaker := resilience.NewBreaker(resilience.DefaultBreakerConfig("advisory"), zlog)
		deps.Advisory = llm.NewProfileClient(client, breaker)
		logger.Info("advisory classifier enabled (model %s)", client.Model())
	}

	// Metrics
	deps.Registry = prometheus.NewRegistry()
	deps.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	deps.Metrics = metricsadapter.NewPrometheusSink(deps.Registry)
	deps.Latency = metrics.NewLatencyRegistry(1000)

	sinks := segmentation.EmitterSinks{
		Notifier: deps.Notifier,
		Metrics:  deps.Metrics,
	}
	if deps.Migrations != nil {
		sinks.History = deps.Migrations
	}
	deps.Emitter = segmentation.NewEmitter(segmentation.EmitterConfig{
		QueueSize: cfg.EventQueueSize,
	}, sinks, zlog)
	cleanups = append(cleanups, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := deps.Emitter.Close(ctx); err != nil {
			logger.WithError(err).Warn("emitter did not drain")
		}
	})
	deps.Metrics.WatchCounter("segment_emitter_dropped_total",
		"Side effects dropped because the emitter queue was full.",
		func() float64 { return float64(deps.Emitter.Dropped()) })
	deps.Metrics.WatchCounter("segment_emitter_delivered_total",
		"Side effects delivered by the emitter.",
		func() float64 { return float64(deps.Emitter.Delivered()) })

	segCfg := segmentation.DefaultConfig()
	segCfg.ClusterThreshold = cfg.ClusterThreshold
	segCfg.CacheTTL = cfg.SegmentCacheTTL
	segCfg.AccessorTimeout = cfg.AccessorTimeout
	segCfg.AdvisoryTimeout = cfg.AdvisoryTimeout
	segCfg.KMeans.Seed = cfg.KMeansSeed

	deps.Segmentation = segmentation.NewService(&segmentation.Deps{
		Purchases: deps.Purchases,
		Customers: deps.Customers,
		Cache:     deps.Cache,
		Advisory:  deps.Advisory,
		Snapshots: deps.Snapshots,
		Emitter:   deps.Emitter,
	}, segCfg)

	logger.WithFields(map[string]any{
		"cache":      cfg.CacheBackend,
		"event_sink": cfg.EventSink,
		"advisory":   deps.Advisory != nil,
		"snapshots":  deps.Snapshots != nil,
		"history":    deps.Migrations != nil,
	}).Info("dependencies initialized")

	return deps, cleanup, nil
}

// pingFunc adapts a client-specific health call to http.HealthChecker.
type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func componentLogger(name string) zerolog.Logger {
	return logger.Default().Component(name)
}

func migrationReader(deps *Dependencies) out.MigrationReader {
	if deps.Migrations == nil {
		return nil
	}
	return deps.Migrations
}
