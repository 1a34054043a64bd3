// Bingelog - Personal Media Tracking and Viewing Analytics
// Copyright 2026 Bingelog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bingelog/bingelog

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/bingelog/bingelog/internal/logging"
	"github.com/bingelog/bingelog/internal/metrics"
)

// requestLogging emits one structured log line per request, tagged with the
// chi request ID.
func requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logging.Debug().
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

// requestMetrics records Prometheus counters and latency per route pattern.
// The chi route pattern keeps the path label low-cardinality.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unmatched"
		}
		metrics.ObserveAPIRequest(r.Method, pattern, ww.Status(), time.Since(start))
	})
}
