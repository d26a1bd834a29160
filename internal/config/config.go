// Kyara Discovery - Personalized Media Feed Engine
// Copyright 2026 Kyarahub
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kyarahub/discovery

// Package config loads layered service configuration with Koanf v2:
// struct defaults, then an optional YAML file, then environment
// variables, with ENV > file > defaults precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/kyarahub/discovery/internal/discovery"
)

// DefaultConfigPaths lists where config files are searched, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/kyara-discovery/config.yaml",
	"/etc/kyara-discovery/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Config is the full service configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server" validate:"required"`
	Store      StoreConfig      `koanf:"store" validate:"required"`
	Discovery  discovery.Config `koanf:"discovery"`
	Aggregator AggregatorConfig `koanf:"aggregator"`
	Retention  RetentionConfig  `koanf:"retention"`
	Catalog    CatalogConfig    `koanf:"catalog"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// CatalogConfig points at the candidate pool source.
type CatalogConfig struct {
	// Path is a JSON file holding the candidate pool. Empty means
	// requests must carry candidates inline.
	Path string `koanf:"path"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host    string        `koanf:"host" validate:"required"`
	Port    int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout" validate:"min=1s"`

	// RateLimit is requests per minute per client IP; zero disables.
	RateLimit int `koanf:"rate_limit" validate:"min=0"`
}

// StoreConfig configures the embedded BadgerDB stores.
type StoreConfig struct {
	// Path is the BadgerDB directory holding interaction state and the
	// preference cache.
	Path string `koanf:"path" validate:"required"`

	// InMemory keeps all data in process memory. Development only.
	InMemory bool `koanf:"in_memory"`
}

// AggregatorConfig configures the nightly preference aggregation.
type AggregatorConfig struct {
	Enabled bool `koanf:"enabled"`

	// Interval between runs. The first run fires one interval after
	// startup so a crash-looping process does not hammer the stores.
	Interval time.Duration `koanf:"interval" validate:"min=1m"`

	// UsersPerSecond throttles analysis; zero means unthrottled.
	UsersPerSecond float64 `koanf:"users_per_second" validate:"min=0"`
}

// RetentionConfig configures the periodic state retention sweep.
type RetentionConfig struct {
	// SweepInterval between retention sweeps.
	SweepInterval time.Duration `koanf:"sweep_interval" validate:"min=1m"`

	// StateDays is how long untouched user records are kept.
	StateDays int `koanf:"state_days" validate:"min=1"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns the built-in defaults, applied before the file
// and environment layers.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:      "0.0.0.0",
			Port:      8480,
			Timeout:   30 * time.Second,
			RateLimit: 300,
		},
		Store: StoreConfig{
			Path:     "/data/discovery",
			InMemory: false,
		},
		Discovery: *discovery.DefaultConfig(),
		Aggregator: AggregatorConfig{
			Enabled:        true,
			Interval:       24 * time.Hour,
			UsersPerSecond: 20,
		},
		Retention: RetentionConfig{
			SweepInterval: 6 * time.Hour,
			StateDays:     90,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file,
// and environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate checks struct constraints and engine invariants.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return err
	}
	return c.Discovery.Validate()
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps environment variable names onto koanf config
// paths. Only allowlisted variables participate so unrelated
// environment noise never lands in the config tree.
//
//	HTTP_PORT            -> server.port
//	STORE_PATH           -> store.path
//	AGGREGATOR_INTERVAL  -> aggregator.interval
//	LOG_LEVEL            -> logging.level
func envTransformFunc(key string) string {
	mappings := map[string]string{
		"http_host":       "server.host",
		"http_port":       "server.port",
		"http_timeout":    "server.timeout",
		"http_rate_limit": "server.rate_limit",

		"store_path":      "store.path",
		"store_in_memory": "store.in_memory",

		"discovery_default_limit":    "discovery.limits.default_limit",
		"discovery_max_limit":        "discovery.limits.max_limit",
		"discovery_pool_multiplier":  "discovery.limits.pool_multiplier",
		"discovery_state_timeout":    "discovery.limits.state_timeout",
		"discovery_seed":             "discovery.seed",
		"discovery_tag_match_weight": "discovery.weights.tag_match",

		"aggregator_enabled":          "aggregator.enabled",
		"aggregator_interval":         "aggregator.interval",
		"aggregator_users_per_second": "aggregator.users_per_second",

		"retention_sweep_interval": "retention.sweep_interval",
		"retention_state_days":     "retention.state_days",

		"catalog_path": "catalog.path",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if path, ok := mappings[strings.ToLower(key)]; ok {
		return path
	}
	return ""
}
