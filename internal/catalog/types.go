// Bingelog - Personal Media Tracking and Viewing Analytics
// Copyright 2026 Bingelog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bingelog/bingelog

// Package catalog provides the client for the external metadata catalog
// (a TMDB-style HTTP API). The client is rate limited, retries transient
// failures with exponential backoff, and is wrapped by a circuit breaker
// that short-circuits to ErrUnavailable when the catalog is down.
//
// A transient failure (ErrUnavailable) is distinct from an empty search
// result: zero candidates with a nil error means the catalog genuinely has
// no match, which the resolver turns into an unresolved mention.
package catalog

import (
	"context"
	"errors"

	"github.com/bingelog/bingelog/internal/models"
)

// ErrUnavailable indicates a transient catalog failure: network error,
// rate-limit exhaustion after retries, server error or an open circuit.
// Callers may retry later; the resolver downgrades it to an unresolved
// mention rather than failing the request.
var ErrUnavailable = errors.New("catalog unavailable")

// Candidate is one search result from the catalog, in catalog order.
type Candidate struct {
	ID         int              `json:"id"`
	Title      string           `json:"title"`
	Type       models.MediaType `json:"type"`
	Year       int              `json:"year"`
	Popularity float64          `json:"popularity"`
}

// Details is the full metadata record for one catalog entry.
type Details struct {
	ID         int                 `json:"id"`
	Title      string              `json:"title"`
	Type       models.MediaType    `json:"type"`
	Year       int                 `json:"year"`
	Genres     []string            `json:"genres"`
	Cast       []models.CastMember `json:"cast"`
	Popularity float64             `json:"popularity"`

	// RuntimeMinutes is the movie runtime, or the per-episode runtime for
	// series.
	RuntimeMinutes int `json:"runtime_minutes"`
	// EpisodeCount is the typical episode count for series, 1 for movies.
	EpisodeCount int `json:"episode_count"`
}

// TotalRuntimeMinutes returns the runtime used for hour accounting: the
// movie runtime, or the per-episode runtime multiplied by the episode count
// for series.
func (d *Details) TotalRuntimeMinutes() int {
	if d.Type == models.MediaTypeSeries && d.EpisodeCount > 1 {
		return d.RuntimeMinutes * d.EpisodeCount
	}
	return d.RuntimeMinutes
}

// Client is the catalog lookup contract consumed by the resolver.
//
// Search returns candidates in catalog order; an empty slice with nil error
// means no match. Details returns (nil, nil) for an entry the catalog does
// not have. Both methods return ErrUnavailable (possibly wrapped) on
// transient failures.
type Client interface {
	Search(ctx context.Context, query string, yearHint int, typeHint models.MediaType) ([]Candidate, error)
	Details(ctx context.Context, id int, mediaType models.MediaType) (*Details, error)
}
