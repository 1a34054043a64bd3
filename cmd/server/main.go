// Bingelog - Personal Media Tracking and Viewing Analytics
// Copyright 2026 Bingelog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bingelog/bingelog

// Package main is the entry point for the Bingelog server.
//
// Bingelog is a self-hosted personal media-tracking dashboard: it ingests
// watch and watchlist events, resolves noisy titles against an external
// metadata catalog, and serves Wrapped reports, Sprint velocity reports,
// recommendations and friend leaderboards over a REST API.
//
// # Startup order
//
//  1. Configuration: layered Koanf v2 sources (defaults, config.yaml,
//     BINGELOG_* environment variables)
//  2. Logging: zerolog, JSON or console format
//  3. History store: DuckDB at database.path, ":memory:" for ephemeral runs
//  4. Catalog client: rate-limited TMDB-style client behind a circuit
//     breaker (catalog.base_url, catalog.api_key)
//  5. Engines: resolver, ingestion, analytics, recommendations, leaderboard
//  6. HTTP server: chi router on server.host:server.port
//
// # Signal handling
//
// SIGINT and SIGTERM trigger a graceful shutdown: the server stops
// accepting connections, waits up to 10s for in-flight requests, then
// closes the store.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bingelog/bingelog/internal/analytics"
	"github.com/bingelog/bingelog/internal/api"
	"github.com/bingelog/bingelog/internal/catalog"
	"github.com/bingelog/bingelog/internal/config"
	"github.com/bingelog/bingelog/internal/ingest"
	"github.com/bingelog/bingelog/internal/leaderboard"
	"github.com/bingelog/bingelog/internal/logging"
	"github.com/bingelog/bingelog/internal/recommend"
	"github.com/bingelog/bingelog/internal/resolver"
	"github.com/bingelog/bingelog/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Default logger; config is not available yet.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("catalog_url", cfg.Catalog.BaseURL).
		Int("port", cfg.Server.Port).
		Msg("Starting Bingelog")

	st, err := store.NewDB(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open history store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing history store")
		}
	}()

	catalogClient := catalog.NewBreakerClient(catalog.NewHTTPClient(&cfg.Catalog))

	res := resolver.New(catalogClient, st, cfg.Resolver.CacheSize)
	agg := analytics.New(st)
	handler := api.NewHandler(st, res, ingest.New(st), agg,
		recommend.New(st, cfg.Recommend),
		leaderboard.New(st, agg))

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           api.NewRouter(&cfg.Server, handler),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       2 * cfg.Server.Timeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-errCh:
		logging.Error().Err(err).Msg("HTTP server failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Error().Err(err).Msg("Graceful shutdown failed")
	}
	logging.Info().Msg("Bingelog stopped")
}
