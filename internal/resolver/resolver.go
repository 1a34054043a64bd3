// Bingelog - Personal Media Tracking and Viewing Analytics
// Copyright 2026 Bingelog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bingelog/bingelog

// Package resolver maps noisy title/year/type triples to canonical media.
//
// Resolution is a pure disambiguation policy over the catalog's candidate
// list plus two side effects: a process-wide resolution cache (invalidated
// only on explicit catalog refresh) and creation of the canonical media row
// on the catalog entry's first local appearance.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/bingelog/bingelog/internal/cache"
	"github.com/bingelog/bingelog/internal/catalog"
	"github.com/bingelog/bingelog/internal/logging"
	"github.com/bingelog/bingelog/internal/metrics"
	"github.com/bingelog/bingelog/internal/models"
	"github.com/bingelog/bingelog/internal/store"
)

// ErrNoMatch indicates the catalog returned zero candidates for the title.
// Distinct from catalog.ErrUnavailable: the catalog answered and genuinely
// has no match. Callers turn it into an unresolved mention, not a failure.
var ErrNoMatch = errors.New("no catalog match")

// Request is one resolution attempt. Hints are optional (zero values).
type Request struct {
	RawTitle string
	YearHint int
	TypeHint models.MediaType
}

// Resolution is a successful mapping to canonical media. LowConfidence is
// set when disambiguation fell through to catalog order.
type Resolution struct {
	Media         *models.CanonicalMedia
	LowConfidence bool
}

// cachedResolution is the cache value: media ID plus the confidence flag.
// The media row itself lives in the store.
type cachedResolution struct {
	mediaID       int
	lowConfidence bool
}

// Resolver maps raw titles to canonical media via the catalog, with a
// process-wide resolution cache.
type Resolver struct {
	catalog catalog.Client
	store   store.Store
	cache   *cache.LRU[cachedResolution]
	log     zerolog.Logger
}

// New returns a Resolver using the given catalog client and store, with a
// resolution cache of the given capacity.
func New(catalogClient catalog.Client, st store.Store, cacheSize int) *Resolver {
	return &Resolver{
		catalog: catalogClient,
		store:   st,
		cache:   cache.NewLRU[cachedResolution](cacheSize),
		log:     logging.With().Str("component", "resolver").Logger(),
	}
}

// Resolve maps the request to canonical media.
//
// Returns ErrNoMatch when the catalog has no candidates, a wrapped
// catalog.ErrUnavailable on transient catalog failure, or a store error.
// The two unresolved conditions stay distinguishable for the caller.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Resolution, error) {
	normalized := Normalize(req.RawTitle)
	if normalized == "" {
		metrics.ResolverUnresolved.Inc()
		return nil, ErrNoMatch
	}

	key := cacheKey(normalized, req.YearHint, req.TypeHint)
	if cached, ok := r.cache.Get(key); ok {
		media, err := r.store.GetMedia(ctx, cached.mediaID)
		switch {
		case err == nil:
			metrics.ResolverCacheHits.Inc()
			return &Resolution{Media: media, LowConfidence: cached.lowConfidence}, nil
		case errors.Is(err, store.ErrNotFound):
			// Stale cache entry (media row missing); fall through to a
			// fresh lookup.
			r.cache.Remove(key)
		default:
			return nil, fmt.Errorf("media lookup %d: %w", cached.mediaID, err)
		}
	}
	metrics.ResolverCacheMisses.Inc()

	candidates, err := r.catalog.Search(ctx, normalized, req.YearHint, req.TypeHint)
	if err != nil {
		return nil, fmt.Errorf("catalog search %q: %w", normalized, err)
	}
	if len(candidates) == 0 {
		metrics.ResolverUnresolved.Inc()
		r.log.Debug().Str("title", normalized).Msg("No catalog candidates")
		return nil, ErrNoMatch
	}

	selected, lowConfidence := disambiguate(candidates, req.YearHint, req.TypeHint)
	if lowConfidence {
		metrics.ResolverLowConfidence.Inc()
		r.log.Info().
			Str("title", normalized).
			Int("media_id", selected.ID).
			Int("candidates", len(candidates)).
			Msg("Low-confidence resolution, selected first in catalog order")
	}

	media, err := r.ensureMedia(ctx, selected)
	if err != nil {
		return nil, err
	}

	r.cache.Add(key, cachedResolution{mediaID: media.ID, lowConfidence: lowConfidence})
	return &Resolution{Media: media, LowConfidence: lowConfidence}, nil
}

// Invalidate drops all cached resolutions. Called on the catalog-refresh
// signal; entries otherwise never expire within a process lifetime.
func (r *Resolver) Invalidate() {
	r.cache.Clear()
	r.log.Info().Msg("Resolution cache invalidated")
}

// CacheStats returns resolution cache hit/miss counts.
func (r *Resolver) CacheStats() (hits, misses int64) {
	return r.cache.Stats()
}

func cacheKey(normalized string, yearHint int, typeHint models.MediaType) string {
	return normalized + "|" + strconv.Itoa(yearHint) + "|" + string(typeHint)
}

// disambiguate applies the tie-break policy over catalog-ordered candidates:
// exact year match, then type match, then highest popularity. A remaining
// tie selects the first candidate in catalog order and flags the match
// low-confidence. Each filter only narrows when it leaves at least one
// candidate.
func disambiguate(candidates []catalog.Candidate, yearHint int, typeHint models.MediaType) (catalog.Candidate, bool) {
	pool := candidates

	if yearHint > 0 {
		pool = narrow(pool, func(c catalog.Candidate) bool { return c.Year == yearHint })
	}
	if len(pool) == 1 {
		return pool[0], false
	}

	if typeHint.Valid() {
		pool = narrow(pool, func(c catalog.Candidate) bool { return c.Type == typeHint })
	}
	if len(pool) == 1 {
		return pool[0], false
	}

	best := pool[0].Popularity
	for _, c := range pool[1:] {
		if c.Popularity > best {
			best = c.Popularity
		}
	}
	pool = narrow(pool, func(c catalog.Candidate) bool { return c.Popularity == best })
	if len(pool) == 1 {
		return pool[0], false
	}

	return pool[0], true
}

// narrow filters in candidate order, keeping the original pool when the
// filter would empty it.
func narrow(pool []catalog.Candidate, keep func(catalog.Candidate) bool) []catalog.Candidate {
	var out []catalog.Candidate
	for _, c := range pool {
		if keep(c) {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return pool
	}
	return out
}

// ensureMedia returns the stored canonical media row for the candidate,
// creating it from catalog details on first appearance.
func (r *Resolver) ensureMedia(ctx context.Context, c catalog.Candidate) (*models.CanonicalMedia, error) {
	media, err := r.store.GetMedia(ctx, c.ID)
	if err == nil {
		return media, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("media lookup %d: %w", c.ID, err)
	}

	details, err := r.catalog.Details(ctx, c.ID, c.Type)
	if err != nil {
		return nil, fmt.Errorf("catalog details %d: %w", c.ID, err)
	}
	if details == nil {
		// Search knew the ID but details returned nothing; treat as no match.
		metrics.ResolverUnresolved.Inc()
		return nil, ErrNoMatch
	}

	media = &models.CanonicalMedia{
		ID:              details.ID,
		Title:           details.Title,
		NormalizedTitle: Normalize(details.Title),
		Type:            details.Type,
		Year:            details.Year,
		Genres:          details.Genres,
		Cast:            details.Cast,
		RuntimeMinutes:  details.TotalRuntimeMinutes(),
		EpisodeCount:    details.EpisodeCount,
		Popularity:      details.Popularity,
	}
	if err := r.store.UpsertMedia(ctx, media); err != nil {
		return nil, fmt.Errorf("media create %d: %w", media.ID, err)
	}
	r.log.Debug().Int("media_id", media.ID).Str("title", media.Title).Msg("Canonical media created")
	return media, nil
}
