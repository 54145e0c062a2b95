package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerPort            = 8080
	DefaultServerMode            = "release"
	DefaultServerReadTimeout     = 15 * time.Second
	DefaultServerWriteTimeout    = 30 * time.Second
	DefaultServerShutdownTimeout = 10 * time.Second
	DefaultServerMaxBodySize     = 1 << 20

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisPoolSize  = 10
	DefaultRedisTTL       = 30 * time.Minute
	DefaultRedisKeyPrefix = "traxx:"

	DefaultKafkaBroker     = "localhost:9092"
	DefaultKafkaGroupID    = "traxx-fleet"
	DefaultKafkaScanTopic  = "traxx.tracker.scans"
	DefaultKafkaAlertTopic = "traxx.fleet.alerts"
	DefaultKafkaDLQTopic   = "traxx.tracker.scans.dlq"

	DefaultMQTTClientID = "traxx-fleet"
	DefaultMQTTTopic    = "traxx/trackers/+/scan"

	DefaultTrackerClusterRadius  = 60.0
	DefaultFacilityClusterRadius = 50.0
	DefaultAlertClusterRadius    = 40.0
	DefaultClusterMaxZoom        = 17.0
	DefaultSpreadPx              = 14.0
	DefaultTileSize              = 256.0
	DefaultMinZoom               = 0.0
	DefaultMaxZoom               = 20.0
	DefaultFocusZoom             = 14.0
	DefaultMapLat                = 39.8283
	DefaultMapLng                = -98.5795
	DefaultMapZoom               = 4.0
	DefaultFrameInterval         = 16 * time.Millisecond
	DefaultHighlightTTL          = 5 * time.Second

	DefaultQueryTimeout         = 10 * time.Second
	DefaultQueryContextTimeout  = 3 * time.Second
	DefaultQueryContextCacheTTL = 15 * time.Second
	DefaultQueryMaxRows         = 8
	DefaultQueryMaxActionable   = 3
	DefaultQueryMaxTurns        = 20
	DefaultConversationTTL      = 24 * time.Hour
	DefaultQueryRateBurst       = 5

	DefaultIngestionSource     = "generator"
	DefaultIngestionSeed       = 42
	DefaultIngestionTrackers   = 500
	DefaultIngestionFacilities = 40

	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "traxx"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// ApplyDefaults fills every zero-value field in cfg with the service default.
// Explicitly configured (non-zero) values are left untouched.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultServerReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultServerWriteTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultServerShutdownTimeout
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = DefaultServerMaxBodySize
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = DefaultRedisPoolSize
	}
	if cfg.Redis.DefaultTTL == 0 {
		cfg.Redis.DefaultTTL = DefaultRedisTTL
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.ScanTopic == "" {
		cfg.Kafka.ScanTopic = DefaultKafkaScanTopic
	}
	if cfg.Kafka.AlertTopic == "" {
		cfg.Kafka.AlertTopic = DefaultKafkaAlertTopic
	}
	if cfg.Kafka.DLQTopic == "" {
		cfg.Kafka.DLQTopic = DefaultKafkaDLQTopic
	}
	if cfg.Kafka.MaxRetries == 0 {
		cfg.Kafka.MaxRetries = 3
	}
	if cfg.Kafka.RetryBackoff == 0 {
		cfg.Kafka.RetryBackoff = 500 * time.Millisecond
	}
	if cfg.Kafka.CommitInterval == 0 {
		cfg.Kafka.CommitInterval = time.Second
	}
	if cfg.Kafka.BatchTimeout == 0 {
		cfg.Kafka.BatchTimeout = 50 * time.Millisecond
	}

	// ── MQTT ──────────────────────────────────────────────────────────────────
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = DefaultMQTTClientID
	}
	if cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = DefaultMQTTTopic
	}

	// ── Map ───────────────────────────────────────────────────────────────────
	ApplyMapDefaults(&cfg.Map)

	// ── Query ─────────────────────────────────────────────────────────────────
	if cfg.Query.Timeout == 0 {
		cfg.Query.Timeout = DefaultQueryTimeout
	}
	if cfg.Query.ContextTimeout == 0 {
		cfg.Query.ContextTimeout = DefaultQueryContextTimeout
	}
	if cfg.Query.ContextCacheTTL == 0 {
		cfg.Query.ContextCacheTTL = DefaultQueryContextCacheTTL
	}
	if cfg.Query.ContextBaseURL == "" {
		cfg.Query.ContextBaseURL = cfg.Query.BaseURL
	}
	if cfg.Query.MaxRows == 0 {
		cfg.Query.MaxRows = DefaultQueryMaxRows
	}
	if cfg.Query.MaxActionable == 0 {
		cfg.Query.MaxActionable = DefaultQueryMaxActionable
	}
	if cfg.Query.MaxTurns == 0 {
		cfg.Query.MaxTurns = DefaultQueryMaxTurns
	}
	if cfg.Query.ConversationTTL == 0 {
		cfg.Query.ConversationTTL = DefaultConversationTTL
	}
	if cfg.Query.RatePerSecond > 0 && cfg.Query.RateBurst == 0 {
		cfg.Query.RateBurst = DefaultQueryRateBurst
	}

	// ── Ingestion ─────────────────────────────────────────────────────────────
	if cfg.Ingestion.Source == "" {
		cfg.Ingestion.Source = DefaultIngestionSource
	}
	if cfg.Ingestion.Seed == 0 {
		cfg.Ingestion.Seed = DefaultIngestionSeed
	}
	if cfg.Ingestion.Trackers == 0 {
		cfg.Ingestion.Trackers = DefaultIngestionTrackers
	}
	if cfg.Ingestion.Facilities == 0 {
		cfg.Ingestion.Facilities = DefaultIngestionFacilities
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}

// ApplyMapDefaults fills zero-value map tunables.  A zero cluster radius is
// treated as unset.
func ApplyMapDefaults(m *MapConfig) {
	if m.ClusterRadius.Tracker == 0 {
		m.ClusterRadius.Tracker = DefaultTrackerClusterRadius
	}
	if m.ClusterRadius.Facility == 0 {
		m.ClusterRadius.Facility = DefaultFacilityClusterRadius
	}
	if m.ClusterRadius.Alert == 0 {
		m.ClusterRadius.Alert = DefaultAlertClusterRadius
	}
	if m.ClusterMaxZoom == 0 {
		m.ClusterMaxZoom = DefaultClusterMaxZoom
	}
	if m.SpreadPx == 0 {
		m.SpreadPx = DefaultSpreadPx
	}
	if m.RenderOffset == (KindOffset{}) {
		m.RenderOffset = KindOffset{
			Tracker:  PixelOffset{X: -8, Y: 0},
			Facility: PixelOffset{X: 8, Y: 0},
			Alert:    PixelOffset{X: 0, Y: -12},
		}
	}
	if m.TileSize == 0 {
		m.TileSize = DefaultTileSize
	}
	if m.MaxZoom == 0 {
		m.MaxZoom = DefaultMaxZoom
	}
	if m.FocusZoom == 0 {
		m.FocusZoom = DefaultFocusZoom
	}
	if m.DefaultLat == 0 && m.DefaultLng == 0 {
		m.DefaultLat = DefaultMapLat
		m.DefaultLng = DefaultMapLng
	}
	if m.DefaultZoom == 0 {
		m.DefaultZoom = DefaultMapZoom
	}
	if m.FrameInterval == 0 {
		m.FrameInterval = DefaultFrameInterval
	}
	if m.HighlightTTL == 0 {
		m.HighlightTTL = DefaultHighlightTTL
	}
}

//Personal.AI order the ending
