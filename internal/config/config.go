// Bingelog - Personal Media Tracking and Viewing Analytics
// Copyright 2026 Bingelog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bingelog/bingelog

// Package config loads and validates the Bingelog configuration from layered
// sources: built-in defaults, an optional YAML file, and environment
// variables (highest priority).
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the Bingelog server.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Resolver  ResolverConfig  `koanf:"resolver"`
	Recommend RecommendConfig `koanf:"recommend"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout" validate:"min=1s"`

	// CORSOrigins lists allowed origins for the browser-extension and UI
	// collaborators.
	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimitReqs is the per-client request budget per RateLimitWindow.
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"min=1s"`
}

// DatabaseConfig holds history store settings.
type DatabaseConfig struct {
	// Path is the DuckDB database file. ":memory:" is accepted for
	// ephemeral runs.
	Path string `koanf:"path" validate:"required"`

	// MaxMemory caps DuckDB memory usage, e.g. "1GB".
	MaxMemory string `koanf:"max_memory"`

	// Threads is the DuckDB thread count; 0 uses the CPU count.
	Threads int `koanf:"threads" validate:"min=0"`

	MaxOpenConns int `koanf:"max_open_conns" validate:"min=1"`
	MaxIdleConns int `koanf:"max_idle_conns" validate:"min=0"`
}

// CatalogConfig holds external metadata catalog client settings.
type CatalogConfig struct {
	BaseURL string        `koanf:"base_url" validate:"required,url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout" validate:"min=1s"`

	// MaxRetries bounds retry attempts on transient failures.
	MaxRetries int `koanf:"max_retries" validate:"min=0,max=10"`
	// RetryBaseDelay is the first backoff delay; it doubles per attempt.
	RetryBaseDelay time.Duration `koanf:"retry_base_delay" validate:"min=10ms"`

	// RequestsPerSecond is the client-side rate limit toward the catalog.
	RequestsPerSecond float64 `koanf:"requests_per_second" validate:"gt=0"`
	// Burst is the rate limiter burst size.
	Burst int `koanf:"burst" validate:"min=1"`
}

// ResolverConfig holds canonical media resolver settings.
type ResolverConfig struct {
	// CacheSize is the resolution cache capacity (normalized title keys).
	CacheSize int `koanf:"cache_size" validate:"min=1"`
}

// RecommendConfig holds recommendation engine settings. The score of a
// candidate is Alpha*affinity + Beta*popularity - Gamma*typeMismatch.
type RecommendConfig struct {
	Alpha float64 `koanf:"alpha" validate:"gte=0"`
	Beta  float64 `koanf:"beta" validate:"gte=0"`
	Gamma float64 `koanf:"gamma" validate:"gte=0"`

	// HalfLifeDays controls the recency decay of the genre affinity
	// profile: a watch this many days old contributes half the weight of
	// a watch today.
	HalfLifeDays float64 `koanf:"half_life_days" validate:"gt=0"`

	// TypeMismatchThreshold is the history share of one media type above
	// which the opposite type is penalized.
	TypeMismatchThreshold float64 `koanf:"type_mismatch_threshold" validate:"gte=0.5,lte=1"`

	DefaultLimit int `koanf:"default_limit" validate:"min=1"`
	MaxLimit     int `koanf:"max_limit" validate:"min=1"`

	// CacheTTL bounds how long a ranked list is served without
	// recomputation. Zero disables the cache.
	CacheTTL time.Duration `koanf:"cache_ttl" validate:"min=0"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for consistency. Field-level rules are
// enforced with validator tags; cross-field rules are checked explicitly.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Recommend.Alpha+c.Recommend.Beta == 0 {
		return fmt.Errorf("invalid configuration: recommend.alpha and recommend.beta cannot both be zero")
	}
	if c.Recommend.MaxLimit < c.Recommend.DefaultLimit {
		return fmt.Errorf("invalid configuration: recommend.max_limit (%d) < recommend.default_limit (%d)",
			c.Recommend.MaxLimit, c.Recommend.DefaultLimit)
	}

	return nil
}
