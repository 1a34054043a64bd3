// Bingelog - Personal Media Tracking and Viewing Analytics
// Copyright 2026 Bingelog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bingelog/bingelog

// Package recommend scores unseen catalog items against a user's
// recency-weighted genre-affinity profile and returns a deterministic
// ranked list.
//
// Score(candidate) = alpha*affinity + beta*normalizedPopularity
// - gamma*typeMismatchPenalty. The weights are configuration, not baked
// into the algorithm shape.
package recommend

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bingelog/bingelog/internal/config"
	"github.com/bingelog/bingelog/internal/logging"
	"github.com/bingelog/bingelog/internal/models"
	"github.com/bingelog/bingelog/internal/store"
)

// Engine produces ranked recommendation lists. Safe for concurrent use;
// every request computes over an immutable snapshot of the store.
type Engine struct {
	store store.Store
	cfg   config.RecommendConfig
	log   zerolog.Logger

	// cache holds ranked lists keyed by (user, store version, limit).
	// The store version in the key makes any write invalidate stale lists;
	// the TTL bounds memory for churning keys.
	cache   map[string]cacheEntry
	cacheMu sync.RWMutex

	// now is the clock, replaceable in tests.
	now func() time.Time
}

type cacheEntry struct {
	ranked    []models.RankedCandidate
	expiresAt time.Time
}

// New returns an Engine over the given store.
func New(st store.Store, cfg config.RecommendConfig) *Engine {
	return &Engine{
		store: st,
		cfg:   cfg,
		log:   logging.With().Str("component", "recommend").Logger(),
		cache: make(map[string]cacheEntry),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Recommend returns up to limit ranked candidates for the user. A limit of
// zero or less falls back to the configured default; limits above the
// configured maximum are clamped.
//
// Candidates already in the user's history, in any status, are never
// returned.
func (e *Engine) Recommend(ctx context.Context, userID, limit int) ([]models.RankedCandidate, error) {
	if limit <= 0 {
		limit = e.cfg.DefaultLimit
	}
	if limit > e.cfg.MaxLimit {
		limit = e.cfg.MaxLimit
	}

	key := fmt.Sprintf("%d|%d|%d", userID, e.store.Version(), limit)
	if ranked, ok := e.cached(key); ok {
		return ranked, nil
	}

	ranked, err := e.compute(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	if e.cfg.CacheTTL > 0 {
		e.cacheMu.Lock()
		e.cache[key] = cacheEntry{ranked: ranked, expiresAt: e.now().Add(e.cfg.CacheTTL)}
		e.cacheMu.Unlock()
	}
	return ranked, nil
}

func (e *Engine) cached(key string) ([]models.RankedCandidate, bool) {
	if e.cfg.CacheTTL <= 0 {
		return nil, false
	}
	e.cacheMu.RLock()
	entry, ok := e.cache[key]
	e.cacheMu.RUnlock()
	if !ok || e.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.ranked, true
}

func (e *Engine) compute(ctx context.Context, userID, limit int) ([]models.RankedCandidate, error) {
	events, err := e.store.EventsForUser(ctx, store.EventQuery{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("history for user %d: %w", userID, err)
	}

	// Hard exclusion: anything in the history, watched or watchlisted.
	seen := make(map[int]struct{}, len(events))
	for _, ev := range events {
		seen[ev.MediaID] = struct{}{}
	}

	pool, err := e.store.ListMedia(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog pool: %w", err)
	}

	mediaByID := make(map[int]*models.CanonicalMedia, len(pool))
	for i := range pool {
		mediaByID[pool[i].ID] = &pool[i]
	}
	profile := BuildProfile(events, mediaByID, e.now(), e.cfg.HalfLifeDays)

	maxPopularity := 0.0
	for i := range pool {
		if _, ok := seen[pool[i].ID]; ok {
			continue
		}
		if pool[i].Popularity > maxPopularity {
			maxPopularity = pool[i].Popularity
		}
	}

	ranked := make([]models.RankedCandidate, 0, len(pool))
	for i := range pool {
		c := &pool[i]
		if _, ok := seen[c.ID]; ok {
			continue
		}

		affinity := profile.Affinity(c)
		popularity := 0.0
		if maxPopularity > 0 {
			popularity = c.Popularity / maxPopularity
		}
		score := e.cfg.Alpha*affinity + e.cfg.Beta*popularity
		if profile.TypeMismatch(c, e.cfg.TypeMismatchThreshold) {
			score -= e.cfg.Gamma
		}

		ranked = append(ranked, models.RankedCandidate{
			Media:    *c,
			Score:    score,
			Affinity: affinity,
		})
	}

	// Descending score, then descending popularity, then ascending ID for
	// full determinism within one snapshot.
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if ranked[i].Media.Popularity != ranked[j].Media.Popularity {
			return ranked[i].Media.Popularity > ranked[j].Media.Popularity
		}
		return ranked[i].Media.ID < ranked[j].Media.ID
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}
