package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// generateWorkerID creates a unique worker ID using hostname and PID
func generateWorkerID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "segment-worker"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

// Event sinks
const (
	EventSinkRedis = "redis"
	EventSinkKafka = "kafka"
	EventSinkNone  = "none"
)

// Cache backends
const (
	CacheBackendRedis  = "redis"
	CacheBackendBadger = "badger"
	CacheBackendMemory = "memory"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	// Database
	DatabaseURL string
	MongoDBURL  string
	MongoDBName string
	RedisURL    string

	// Neo4j
	Neo4jURL      string
	Neo4jUsername string
	Neo4jPassword string

	// Kafka
	KafkaBrokers []string
	KafkaTopic   string

	// Side effects
	EventSink      string
	EventQueueSize int

	// Cache
	CacheBackend    string
	BadgerDir       string
	SegmentCacheTTL time.Duration

	// OpenAI
	OpenAIAPIKey    string
	LLMModel        string
	LLMMaxTokens    int
	LLMTemperature  float64
	AdvisoryEnabled bool
	AdvisoryTimeout time.Duration

	// Segmentation
	AccessorTimeout  time.Duration
	ClusterThreshold int
	KMeansSeed       uint64

	// JWT
	JWTSecret string

	// Worker
	WorkerID        string
	WorkerMax       int
	WorkerQueueSize int

	// Consumer (Redis Stream)
	ConsumerBlockMS    int
	ConsumerMaxRetries int

	// CORS
	AllowedOrigins []string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", ""),
		MongoDBURL:  getEnv("MONGODB_URL", ""),
		MongoDBName: getEnv("MONGODB_DATABASE", "segments"),
		RedisURL:    getEnv("REDIS_URL", ""),

		// Neo4j
		Neo4jURL:      getEnv("NEO4J_URL", ""),
		Neo4jUsername: getEnv("NEO4J_USERNAME", "neo4j"),
		Neo4jPassword: getEnv("NEO4J_PASSWORD", ""),

		// Kafka
		KafkaBrokers: getEnvSlice("KAFKA_BROKERS", nil),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "segment-updates"),

		// Side effects
		EventSink:      strings.ToLower(getEnv("EVENT_SINK", EventSinkRedis)),
		EventQueueSize: getEnvInt("EVENT_QUEUE_SIZE", 256),

		// Cache
		CacheBackend:    strings.ToLower(getEnv("CACHE_BACKEND", CacheBackendRedis)),
		BadgerDir:       getEnv("BADGER_DIR", "./data/badger"),
		SegmentCacheTTL: time.Duration(getEnvInt("SEGMENT_CACHE_TTL_SEC", 3600)) * time.Second,

		// OpenAI
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		LLMModel:        getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMMaxTokens:    getEnvInt("LLM_MAX_TOKENS", 1024),
		LLMTemperature:  getEnvFloat("LLM_TEMPERATURE", 0.2),
		AdvisoryEnabled: getEnvBool("ADVISORY_ENABLED", true),
		AdvisoryTimeout: time.Duration(getEnvInt("ADVISORY_TIMEOUT_SEC", 5)) * time.Second,

		// Segmentation
		AccessorTimeout:  time.Duration(getEnvInt("ACCESSOR_TIMEOUT_SEC", 3)) * time.Second,
		ClusterThreshold: getEnvInt("CLUSTER_THRESHOLD", 50),
		KMeansSeed:       uint64(getEnvInt("KMEANS_SEED", 42)),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", ""),

		// Worker
		WorkerID:        getEnv("WORKER_ID", generateWorkerID()),
		WorkerMax:       getEnvInt("WORKER_MAX", 4),
		WorkerQueueSize: getEnvInt("WORKER_QUEUE_SIZE", 100),

		// Consumer
		ConsumerBlockMS:    getEnvInt("CONSUMER_BLOCK_MS", 5000),
		ConsumerMaxRetries: getEnvInt("CONSUMER_MAX_RETRIES", 3),

		// CORS
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings that cannot be wired.
func (c *Config) Validate() error {
	switch c.EventSink {
	case EventSinkRedis, EventSinkNone:
	case EventSinkKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("config: EVENT_SINK=kafka requires KAFKA_BROKERS")
		}
	default:
		return fmt.Errorf("config: unknown EVENT_SINK %q", c.EventSink)
	}

	switch c.CacheBackend {
	case CacheBackendRedis, CacheBackendMemory:
	case CacheBackendBadger:
		if c.BadgerDir == "" {
			return fmt.Errorf("config: CACHE_BACKEND=badger requires BADGER_DIR")
		}
	default:
		return fmt.Errorf("config: unknown CACHE_BACKEND %q", c.CacheBackend)
	}

	if c.ClusterThreshold <= 0 {
		return fmt.Errorf("config: CLUSTER_THRESHOLD must be positive")
	}
	if c.IsProduction() && c.JWTSecret == "" {
		return fmt.Errorf("config: JWT_SECRET is required in production")
	}
	return nil
}

// AdvisoryAvailable reports whether the external profiling model can be used.
func (c *Config) AdvisoryAvailable() bool {
	return c.AdvisoryEnabled && c.OpenAIAPIKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
