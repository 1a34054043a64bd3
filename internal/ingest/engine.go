// Bingelog - Personal Media Tracking and Viewing Analytics
// Copyright 2026 Bingelog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bingelog/bingelog

// Package ingest enforces the at-most-one-active-event invariant: for each
// (user, media) pair a single watch event row exists, and re-submissions
// update it in place or are absorbed as no-ops.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bingelog/bingelog/internal/logging"
	"github.com/bingelog/bingelog/internal/metrics"
	"github.com/bingelog/bingelog/internal/models"
	"github.com/bingelog/bingelog/internal/store"
)

// Result names which branch a Record call took, so the ingestion endpoint
// can report "saved" vs "already in watchlist" to the caller.
type Result string

const (
	// ResultCreated means a new event row was written.
	ResultCreated Result = "created"
	// ResultUpdated means the existing row's status or timestamp changed.
	ResultUpdated Result = "updated"
	// ResultNoop means the submission was absorbed idempotently.
	ResultNoop Result = "noop"
)

// lockStripes bounds the per-key mutex pool. Writes for the same
// (user, media) pair always share a stripe; unrelated pairs rarely do.
const lockStripes = 64

// Engine is the dedup and upsert engine over the history store.
type Engine struct {
	store store.Store
	locks [lockStripes]sync.Mutex
	log   zerolog.Logger
}

// New returns an Engine writing through to the given store.
func New(st store.Store) *Engine {
	return &Engine{
		store: st,
		log:   logging.With().Str("component", "ingest").Logger(),
	}
}

// Submission is one resolved ingestion request.
type Submission struct {
	UserID   int
	Media    *models.CanonicalMedia
	Status   models.WatchStatus
	EventAt  time.Time
	Source   string
	RawTitle string
}

// Record applies the submission. Writes for the same (user, media) pair are
// serialized; unrelated pairs proceed in parallel.
//
// Policy: a first submission creates; a status change or newer timestamp
// updates; an identical status with a timestamp no newer than the stored one
// is a no-op. A watched-to-watchlist regression is accepted but logged.
func (e *Engine) Record(ctx context.Context, sub Submission) (Result, error) {
	if !sub.Status.Valid() {
		return "", fmt.Errorf("invalid status %q", sub.Status)
	}

	lock := &e.locks[stripeFor(sub.UserID, sub.Media.ID)]
	lock.Lock()
	defer lock.Unlock()

	result, err := e.recordLocked(ctx, sub)
	if err != nil {
		return "", err
	}
	metrics.IngestResults.WithLabelValues(string(result), sub.Source).Inc()
	return result, nil
}

func (e *Engine) recordLocked(ctx context.Context, sub Submission) (Result, error) {
	existing, err := e.store.GetEvent(ctx, sub.UserID, sub.Media.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("event lookup (%d, %d): %w", sub.UserID, sub.Media.ID, err)
	}

	now := time.Now().UTC()

	if existing == nil {
		ev := &models.WatchEvent{
			ID:        uuid.New(),
			UserID:    sub.UserID,
			MediaID:   sub.Media.ID,
			Status:    sub.Status,
			EventAt:   sub.EventAt,
			Source:    sub.Source,
			RawTitle:  sub.RawTitle,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := e.store.PutEvent(ctx, ev); err != nil {
			return "", fmt.Errorf("event create (%d, %d): %w", sub.UserID, sub.Media.ID, err)
		}
		return ResultCreated, nil
	}

	if existing.Status == sub.Status && !sub.EventAt.After(existing.EventAt) {
		return ResultNoop, nil
	}

	if existing.Status == models.StatusWatched && sub.Status == models.StatusWatchlist {
		metrics.IngestRegressions.Inc()
		e.log.Warn().
			Int("user_id", sub.UserID).
			Int("media_id", sub.Media.ID).
			Str("source", sub.Source).
			Bool("regression", true).
			Msg("Watched-to-watchlist status regression accepted")
	}

	updated := *existing
	updated.Status = sub.Status
	updated.EventAt = sub.EventAt
	updated.Source = sub.Source
	updated.RawTitle = sub.RawTitle
	updated.UpdatedAt = now
	if err := e.store.PutEvent(ctx, &updated); err != nil {
		return "", fmt.Errorf("event update (%d, %d): %w", sub.UserID, sub.Media.ID, err)
	}
	return ResultUpdated, nil
}

func stripeFor(userID, mediaID int) int {
	h := fnv.New32a()
	fmt.Fprintf(h, "%d:%d", userID, mediaID)
	return int(h.Sum32() % lockStripes)
}
