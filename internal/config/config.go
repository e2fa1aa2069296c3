// Package config binds the daemon's recognized options through
// github.com/spf13/viper so every threshold (model tiers, cache TTLs,
// timeouts, telemetry queue sizing, the free-tier rate limit) is tunable
// without a rebuild.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config is the fully-resolved set of options cmd/aided wires into the
// orchestrator, llm, telemetry, and classifier packages.
type Config struct {
	L2Model       string `mapstructure:"l2_model"`
	L3Model       string `mapstructure:"l3_model"`
	L4Model       string `mapstructure:"l4_model"`
	L2ShadowModel string `mapstructure:"l2_shadow_model"`
	L3ShadowModel string `mapstructure:"l3_shadow_model"`

	// AnnotationModel enables the post-turn annotation pass when set.
	AnnotationModel string `mapstructure:"annotation_model"`

	CacheTTLL2 time.Duration `mapstructure:"cache_ttl_l2"`
	CacheTTLL3 time.Duration `mapstructure:"cache_ttl_l3"`
	CacheTTLL4 time.Duration `mapstructure:"cache_ttl_l4"`

	DelayProfile string `mapstructure:"delay_profile"`

	TurnTimeoutSeconds int `mapstructure:"turn_timeout_seconds"`
	LockTimeoutSeconds int `mapstructure:"lock_timeout_seconds"`

	TelemetryQueueSize    int `mapstructure:"telemetry_queue_size"`
	TelemetryBatchSize    int `mapstructure:"telemetry_batch_size"`
	TelemetryFlushSeconds int `mapstructure:"telemetry_flush_seconds"`

	FreeTierTurnsPerWeek int `mapstructure:"free_tier_turns_per_week"`

	OpenRouterAPIKey string `mapstructure:"openrouter_api_key"`
	OpenRouterURL    string `mapstructure:"openrouter_base_url"`
	DBPath           string `mapstructure:"db_path"`
}

// TurnTimeout is the configured per-turn deadline as a time.Duration.
func (c Config) TurnTimeout() time.Duration {
	return time.Duration(c.TurnTimeoutSeconds) * time.Second
}

// LockTimeout is how long a second caller waits on a busy aide's per-aide
// lock before the orchestrator returns a "busy" error.
func (c Config) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutSeconds) * time.Second
}

// TelemetryFlush is the background uploader's periodic flush interval.
func (c Config) TelemetryFlush() time.Duration {
	return time.Duration(c.TelemetryFlushSeconds) * time.Second
}

// setDefaults registers every recognized key; values without a sensible
// default stay empty/zero so an operator notices a missing model
// configuration rather than silently hitting a wrong one.
func setDefaults(v *viper.Viper) {
	// Keys without a meaningful default still need registering, or
	// AutomaticEnv values never reach Unmarshal.
	v.SetDefault("l2_model", "")
	v.SetDefault("l3_model", "")
	v.SetDefault("l4_model", "")
	v.SetDefault("l2_shadow_model", "")
	v.SetDefault("l3_shadow_model", "")
	v.SetDefault("annotation_model", "")
	v.SetDefault("openrouter_api_key", "")
	v.SetDefault("openrouter_base_url", "")
	v.SetDefault("cache_ttl_l2", 5*time.Minute)
	v.SetDefault("cache_ttl_l3", 5*time.Minute)
	v.SetDefault("cache_ttl_l4", 5*time.Minute)
	v.SetDefault("delay_profile", "instant")
	v.SetDefault("turn_timeout_seconds", 60)
	v.SetDefault("lock_timeout_seconds", 10)
	v.SetDefault("telemetry_queue_size", 10_000)
	v.SetDefault("telemetry_batch_size", 100)
	v.SetDefault("telemetry_flush_seconds", 60)
	v.SetDefault("free_tier_turns_per_week", 50)
	v.SetDefault("db_path", "aide.db")
}

// New builds a *viper.Viper bound to the AIDE_ environment prefix (so
// L2_MODEL is read from AIDE_L2_MODEL) plus an optional config file.
// cmd/aided binds pflag flags on top of this before calling Load.
func New(configFile string) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("AIDE")
	v.AutomaticEnv()
	if configFile != "" {
		v.SetConfigFile(configFile)
	}
	return v
}

// Load reads configFile (if set on v) and unmarshals the result into a
// Config. A missing config file is not an error: defaults plus environment
// variables plus bound flags are enough to run.
func Load(v *viper.Viper) (Config, error) {
	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
