// Bingelog - Personal Media Tracking and Viewing Analytics
// Copyright 2026 Bingelog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bingelog/bingelog

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bingelog/bingelog/internal/config"
)

// NewRouter assembles the chi router: global middleware, health and metrics
// endpoints, and the versioned API routes.
func NewRouter(cfg *config.ServerConfig, h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogging)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(cfg.RateLimitReqs, cfg.RateLimitWindow))
		r.Use(requestMetrics)

		r.Post("/log", h.Log)
		r.Put("/log/{mediaID}/rating", h.Rate)

		r.Get("/stats/wrapped", h.Wrapped)
		r.Get("/stats/sprint", h.Sprint)

		r.Get("/recommendations", h.Recommendations)
		r.Get("/leaderboard", h.Leaderboard)
		r.Get("/export", h.Export)
		r.Get("/mentions", h.Mentions)

		r.Post("/catalog/refresh", h.CatalogRefresh)

		r.Put("/users", h.UpsertUser)
		r.Put("/friends", h.UpsertFriend)
	})

	return r
}
