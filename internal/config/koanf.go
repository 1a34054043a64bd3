// Bingelog - Personal Media Tracking and Viewing Analytics
// Copyright 2026 Bingelog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bingelog/bingelog

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/bingelog/config.yaml",
	"/etc/bingelog/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "BINGELOG_CONFIG"

// envPrefix namespaces the environment variables read by Load.
const envPrefix = "BINGELOG_"

// Default returns a Config with all default values applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8460,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   300,
			RateLimitWindow: time.Minute,
		},
		Database: DatabaseConfig{
			Path:         "/data/bingelog.duckdb",
			MaxMemory:    "1GB",
			Threads:      0,
			MaxOpenConns: 4,
			MaxIdleConns: 2,
		},
		Catalog: CatalogConfig{
			BaseURL:           "https://api.themoviedb.org/3",
			APIKey:            "",
			Timeout:           10 * time.Second,
			MaxRetries:        4,
			RetryBaseDelay:    time.Second,
			RequestsPerSecond: 4,
			Burst:             8,
		},
		Resolver: ResolverConfig{
			CacheSize: 4096,
		},
		Recommend: RecommendConfig{
			Alpha:                 1.0,
			Beta:                  0.3,
			Gamma:                 0.2,
			HalfLifeDays:          90,
			TypeMismatchThreshold: 0.75,
			DefaultLimit:          18,
			MaxLimit:              100,
			CacheTTL:              5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// BINGELOG_* environment variables, then validates it.
//
// Environment variable names map to config paths by stripping the prefix and
// lowering: BINGELOG_SERVER_PORT -> server.port,
// BINGELOG_CATALOG_API_KEY -> catalog.api_key.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", envTransform)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// envTransform maps BINGELOG_SECTION_SOME_KEY to section.some_key. Only the
// first underscore separates the section; the rest of the name keeps its
// underscores to match the koanf struct tags.
func envTransform(name string) string {
	name = strings.ToLower(strings.TrimPrefix(name, envPrefix))
	section, key, found := strings.Cut(name, "_")
	if !found {
		return name
	}
	return section + "." + key
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
