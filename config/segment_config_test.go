package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "EVENT_SINK", "CACHE_BACKEND", "CLUSTER_THRESHOLD", "SEGMENT_CACHE_TTL_SEC", "KAFKA_BROKERS"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" || cfg.EventSink != EventSinkRedis || cfg.CacheBackend != CacheBackendRedis {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.ClusterThreshold != 50 || cfg.SegmentCacheTTL != time.Hour {
		t.Errorf("threshold=%d ttl=%s", cfg.ClusterThreshold, cfg.SegmentCacheTTL)
	}
	if !cfg.IsDevelopment() {
		t.Error("default environment should be development")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("EVENT_SINK", "Kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("CACHE_BACKEND", "memory")
	t.Setenv("ADVISORY_TIMEOUT_SEC", "2")
	t.Setenv("CLUSTER_THRESHOLD", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.EventSink != EventSinkKafka {
		t.Errorf("event sink = %q", cfg.EventSink)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Errorf("brokers = %v", cfg.KafkaBrokers)
	}
	if cfg.AdvisoryTimeout != 2*time.Second {
		t.Errorf("advisory timeout = %s", cfg.AdvisoryTimeout)
	}
	if cfg.ClusterThreshold != 50 {
		t.Errorf("invalid int should fall back to default, got %d", cfg.ClusterThreshold)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Environment:      "development",
			EventSink:        EventSinkNone,
			CacheBackend:     CacheBackendMemory,
			ClusterThreshold: 50,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"kafka without brokers", func(c *Config) { c.EventSink = EventSinkKafka }, true},
		{"unknown sink", func(c *Config) { c.EventSink = "sqs" }, true},
		{"unknown cache", func(c *Config) { c.CacheBackend = "memcached" }, true},
		{"badger without dir", func(c *Config) { c.CacheBackend = CacheBackendBadger }, true},
		{"production without secret", func(c *Config) { c.Environment = "production" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAdvisoryAvailable(t *testing.T) {
	c := Config{AdvisoryEnabled: true}
	if c.AdvisoryAvailable() {
		t.Error("advisory needs an API key")
	}
	c.OpenAIAPIKey = "sk-test"
	if !c.AdvisoryAvailable() {
		t.Error("advisory should be available with key and flag")
	}
}
