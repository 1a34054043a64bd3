// Bingelog - Personal Media Tracking and Viewing Analytics
// Copyright 2026 Bingelog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bingelog/bingelog

// Package metrics provides Prometheus instrumentation for Bingelog:
// API latency and throughput, ingestion outcomes, resolver cache efficiency
// and catalog circuit breaker state.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API metrics

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Ingestion metrics

	IngestResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_results_total",
			Help: "Ingestion outcomes by result (created, updated, noop, unresolved)",
		},
		[]string{"result", "source"},
	)

	IngestRegressions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_status_regressions_total",
			Help: "Watched-to-watchlist status regressions accepted",
		},
	)

	// Resolver metrics

	ResolverCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "resolver_cache_hits_total",
			Help: "Resolution cache hits",
		},
	)

	ResolverCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "resolver_cache_misses_total",
			Help: "Resolution cache misses",
		},
	)

	ResolverUnresolved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "resolver_unresolved_total",
			Help: "Titles that could not be resolved to canonical media",
		},
	)

	ResolverLowConfidence = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "resolver_low_confidence_total",
			Help: "Resolutions flagged low-confidence after tie-breaking",
		},
	)

	// Catalog client metrics

	CatalogRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_requests_total",
			Help: "Catalog API requests by outcome (success, failure, rejected)",
		},
		[]string{"outcome"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "catalog_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Store metrics

	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_query_duration_seconds",
			Help:    "Duration of history store queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// ObserveAPIRequest records one completed API request.
func ObserveAPIRequest(method, path string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObserveStoreQuery records one store query.
func ObserveStoreQuery(operation string, duration time.Duration) {
	StoreQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
