// Bingelog - Personal Media Tracking and Viewing Analytics
// Copyright 2026 Bingelog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bingelog/bingelog

package config

import (
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "zero port",
			mutate: func(c *Config) { c.Server.Port = 0 },
		},
		{
			name:   "empty database path",
			mutate: func(c *Config) { c.Database.Path = "" },
		},
		{
			name:   "negative recommend alpha",
			mutate: func(c *Config) { c.Recommend.Alpha = -1 },
		},
		{
			name: "alpha and beta both zero",
			mutate: func(c *Config) {
				c.Recommend.Alpha = 0
				c.Recommend.Beta = 0
			},
		},
		{
			name: "max limit below default limit",
			mutate: func(c *Config) {
				c.Recommend.DefaultLimit = 50
				c.Recommend.MaxLimit = 10
			},
		},
		{
			name:   "unknown log level",
			mutate: func(c *Config) { c.Logging.Level = "verbose" },
		},
		{
			name:   "catalog base url not a url",
			mutate: func(c *Config) { c.Catalog.BaseURL = "not a url" },
		},
		{
			name:   "zero half life",
			mutate: func(c *Config) { c.Recommend.HalfLifeDays = 0 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"BINGELOG_SERVER_PORT", "server.port"},
		{"BINGELOG_CATALOG_API_KEY", "catalog.api_key"},
		{"BINGELOG_RECOMMEND_HALF_LIFE_DAYS", "recommend.half_life_days"},
		{"BINGELOG_LOGGING_LEVEL", "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := envTransform(tt.input); got != tt.want {
				t.Errorf("envTransform(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoadAppliesEnvOverride(t *testing.T) {
	t.Setenv("BINGELOG_SERVER_PORT", "9999")
	t.Setenv("BINGELOG_LOGGING_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	// Untouched fields keep defaults.
	if cfg.Catalog.Timeout != 10*time.Second {
		t.Errorf("Catalog.Timeout = %v, want 10s", cfg.Catalog.Timeout)
	}
}
