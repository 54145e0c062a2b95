package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all service settings.
const envPrefix = "TRAXX"

// newViper builds a Viper instance with YAML file type, TRAXX_ env prefix,
// automatic env binding, and a "." → "_" key replacer so "map.highlight_ttl"
// resolves to TRAXX_MAP_HIGHLIGHT_TTL.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindEnvKeys(v)
	return v
}

// bindEnvKeys registers the keys that may be supplied only through the
// environment.  AutomaticEnv alone does not make Unmarshal see keys absent
// from the config file.
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"server.port", "server.mode",
		"log.level", "log.format",
		"redis.enabled", "redis.addr", "redis.password", "redis.db",
		"kafka.enabled", "kafka.brokers", "kafka.group_id",
		"mqtt.enabled", "mqtt.broker", "mqtt.username", "mqtt.password",
		"map.highlight_ttl", "map.cluster_radius.tracker", "map.cluster_radius.facility", "map.cluster_radius.alert",
		"map.cluster_max_zoom", "map.spread_px", "map.focus_zoom",
		"query.base_url", "query.api_key", "query.timeout", "query.context_base_url", "query.rate_per_second",
		"ingestion.source", "ingestion.fixture_path", "ingestion.seed",
		"metrics.enabled",
	} {
		_ = v.BindEnv(key)
	}
}

// Load reads the YAML file at configPath, merges TRAXX_* environment
// overrides, applies defaults, and validates the result.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config from TRAXX_* environment variables and
// defaults only.
//
//	TRAXX_<SECTION>_<FIELD>   e.g.  TRAXX_QUERY_BASE_URL, TRAXX_REDIS_ADDR
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// Watch monitors configPath and invokes onChange with the re-parsed Config
// after every write.  A change that fails to parse or validate is reported to
// onError (when non-nil) and onChange is skipped.  Callers apply only the
// hot-reloadable subset (log level, map tunables).
func Watch(configPath string, onChange func(*Config), onError func(error)) error {
	v := newViper()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// MustLoad wraps Load and panics on error.  For main() only.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}

//Personal.AI order the ending
