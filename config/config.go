// Package config loads pipeline settings from a YAML file and environment
// variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Pipeline    PipelineConfig    `mapstructure:"pipeline"`
	Chains      map[string]string `mapstructure:"chains"`
	DB          DBConfig          `mapstructure:"db"`
	Broadcaster BroadcasterConfig `mapstructure:"broadcaster"`
}

type PipelineConfig struct {
	EstimateTimeout time.Duration `mapstructure:"estimate_timeout"`
	WatchInterval   time.Duration `mapstructure:"watch_interval"`
	PendingTimeout  time.Duration `mapstructure:"pending_timeout"`
	IdempotencyTTL  time.Duration `mapstructure:"idempotency_ttl"`
}

type DBConfig struct {
	// DSN is the Postgres connection string for the transaction ledger.
	// Empty keeps the ledger in memory.
	DSN string `mapstructure:"dsn"`
}

type BroadcasterConfig struct {
	// SelectionMode is "random", "manual" or "cheapest_for_token".
	SelectionMode string   `mapstructure:"selection_mode"`
	BlockedRelays []string `mapstructure:"blocked_relays"`
}

// Load reads the config file at path (or the defaults when path is empty) and
// overlays environment variables prefixed with PIPELINE_.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("PIPELINE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pipeline.estimate_timeout", "10s")
	v.SetDefault("pipeline.watch_interval", "5s")
	v.SetDefault("pipeline.pending_timeout", "5m")
	v.SetDefault("pipeline.idempotency_ttl", "1h")
	v.SetDefault("broadcaster.selection_mode", "random")
}
