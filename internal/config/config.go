// Package config defines all configuration structures for the TRAXX-Intelligence
// fleet service.  No I/O or parsing logic lives here, only plain data types and
// validation.
package config

import (
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level       string   `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format      string   `mapstructure:"format"` // "json" | "console"
	OutputPaths []string `mapstructure:"output_paths"`
}

// RedisConfig holds Redis connection parameters.  When Enabled is false the
// conversation store and context cache run in process memory.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds the telemetry feed consumer and alert producer settings.
type KafkaConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Brokers        []string      `mapstructure:"brokers"`
	GroupID        string        `mapstructure:"group_id"`
	ScanTopic      string        `mapstructure:"scan_topic"`
	AlertTopic     string        `mapstructure:"alert_topic"`
	DLQTopic       string        `mapstructure:"dlq_topic"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
	CommitInterval time.Duration `mapstructure:"commit_interval"`
	BatchTimeout   time.Duration `mapstructure:"batch_timeout"`
}

// MQTTConfig holds the device-telemetry subscriber settings.
type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Topic    string `mapstructure:"topic"`
	QoS      byte   `mapstructure:"qos"`
}

// KindRadius holds one value per map entity kind.
type KindRadius struct {
	Tracker  float64 `mapstructure:"tracker"`
	Facility float64 `mapstructure:"facility"`
	Alert    float64 `mapstructure:"alert"`
}

// PixelOffset is a screen-space displacement applied to rendered markers.
type PixelOffset struct {
	X float64 `mapstructure:"x"`
	Y float64 `mapstructure:"y"`
}

// KindOffset holds one render offset per map entity kind.
type KindOffset struct {
	Tracker  PixelOffset `mapstructure:"tracker"`
	Facility PixelOffset `mapstructure:"facility"`
	Alert    PixelOffset `mapstructure:"alert"`
}

// MapConfig holds clustering, camera, and highlight tunables.  These are the
// values hot-reloaded by Watch.
type MapConfig struct {
	ClusterRadius  KindRadius    `mapstructure:"cluster_radius"`
	ClusterMaxZoom float64       `mapstructure:"cluster_max_zoom"`
	RenderOffset   KindOffset    `mapstructure:"render_offset"`
	SpreadPx       float64       `mapstructure:"spread_px"`
	TileSize       float64       `mapstructure:"tile_size"`
	MinZoom        float64       `mapstructure:"min_zoom"`
	MaxZoom        float64       `mapstructure:"max_zoom"`
	FocusZoom      float64       `mapstructure:"focus_zoom"`
	DefaultLat     float64       `mapstructure:"default_lat"`
	DefaultLng     float64       `mapstructure:"default_lng"`
	DefaultZoom    float64       `mapstructure:"default_zoom"`
	FrameInterval  time.Duration `mapstructure:"frame_interval"`
	HighlightTTL   time.Duration `mapstructure:"highlight_ttl"`
}

// QueryConfig holds the remote reasoning and realtime context endpoints.  An
// empty BaseURL disables the remote path; every question is answered locally.
type QueryConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	APIKey          string        `mapstructure:"api_key"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RetryMax        int           `mapstructure:"retry_max"`
	ContextBaseURL  string        `mapstructure:"context_base_url"`
	ContextTimeout  time.Duration `mapstructure:"context_timeout"`
	ContextCacheTTL time.Duration `mapstructure:"context_cache_ttl"`
	MaxRows         int           `mapstructure:"max_rows"`
	MaxActionable   int           `mapstructure:"max_actionable"`
	MaxTurns        int           `mapstructure:"max_turns"`
	ConversationTTL time.Duration `mapstructure:"conversation_ttl"`
	// Per-client token bucket on POST /query.  Zero RatePerSecond disables it.
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	RateBurst     int     `mapstructure:"rate_burst"`
}

// IngestionConfig selects the initial data source.
type IngestionConfig struct {
	Source      string `mapstructure:"source"` // "generator" | "fixture"
	FixturePath string `mapstructure:"fixture_path"`
	Seed        int64  `mapstructure:"seed"`
	Trackers    int    `mapstructure:"trackers"`
	Facilities  int    `mapstructure:"facilities"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Map       MapConfig       `mapstructure:"map"`
	Query     QueryConfig     `mapstructure:"query"`
	Ingestion IngestionConfig `mapstructure:"ingestion"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config and
// returns the first error encountered.
func (c *Config) Validate() error {
	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	// Redis
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required when redis is enabled")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be >= 0, got %d", c.Redis.DB)
	}

	// Kafka
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
		}
		if c.Kafka.GroupID == "" {
			return fmt.Errorf("config: kafka.group_id is required")
		}
	}

	// MQTT
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("config: mqtt.broker is required when mqtt is enabled")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("config: mqtt.qos %d is invalid; expected 0|1|2", c.MQTT.QoS)
	}

	// Map
	if err := c.Map.Validate(); err != nil {
		return err
	}

	// Query
	if c.Query.Timeout <= 0 {
		return fmt.Errorf("config: query.timeout must be > 0")
	}
	if c.Query.MaxRows < 1 {
		return fmt.Errorf("config: query.max_rows must be >= 1, got %d", c.Query.MaxRows)
	}
	if c.Query.MaxActionable < 1 {
		return fmt.Errorf("config: query.max_actionable must be >= 1, got %d", c.Query.MaxActionable)
	}
	if c.Query.RatePerSecond < 0 {
		return fmt.Errorf("config: query.rate_per_second must be >= 0")
	}

	// Ingestion
	switch c.Ingestion.Source {
	case "generator":
	case "fixture":
		if c.Ingestion.FixturePath == "" {
			return fmt.Errorf("config: ingestion.fixture_path is required for the fixture source")
		}
	default:
		return fmt.Errorf("config: ingestion.source %q is invalid; expected generator|fixture", c.Ingestion.Source)
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}

// Validate checks the map tunables on their own so hot-reloads can be
// screened without the rest of the config.
func (m MapConfig) Validate() error {
	for name, r := range map[string]float64{
		"tracker":  m.ClusterRadius.Tracker,
		"facility": m.ClusterRadius.Facility,
		"alert":    m.ClusterRadius.Alert,
	} {
		if r < 0 {
			return fmt.Errorf("config: map.cluster_radius.%s must be >= 0, got %v", name, r)
		}
	}
	if m.TileSize <= 0 {
		return fmt.Errorf("config: map.tile_size must be > 0")
	}
	if m.MinZoom < 0 || m.MaxZoom < m.MinZoom {
		return fmt.Errorf("config: map zoom range [%v, %v] is invalid", m.MinZoom, m.MaxZoom)
	}
	if m.ClusterMaxZoom < m.MinZoom || m.ClusterMaxZoom > m.MaxZoom {
		return fmt.Errorf("config: map.cluster_max_zoom %v is outside [%v, %v]", m.ClusterMaxZoom, m.MinZoom, m.MaxZoom)
	}
	if m.SpreadPx < 0 {
		return fmt.Errorf("config: map.spread_px must be >= 0")
	}
	if m.HighlightTTL <= 0 {
		return fmt.Errorf("config: map.highlight_ttl must be > 0")
	}
	if m.FrameInterval <= 0 {
		return fmt.Errorf("config: map.frame_interval must be > 0")
	}
	return nil
}

//Personal.AI order the ending
