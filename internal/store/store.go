// Bingelog - Personal Media Tracking and Viewing Analytics
// Copyright 2026 Bingelog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bingelog/bingelog

// Package store provides the history store: persistence for users, canonical
// media, watch events, friend links and unresolved mentions.
//
// Two implementations exist: DB (DuckDB-backed, production) and Memory
// (map-backed, tests and ephemeral runs). Both enforce the same contract,
// notably the unique-key upsert on (user_id, media_id) that backs the
// at-most-one-active-event invariant.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/bingelog/bingelog/internal/models"
)

// ErrNotFound indicates the requested row does not exist.
var ErrNotFound = errors.New("not found")

// EventQuery filters EventsForUser. Zero values leave a dimension
// unconstrained. The time range is inclusive on both ends.
type EventQuery struct {
	UserID int
	Status models.WatchStatus
	From   time.Time
	To     time.Time
}

// Store is the history store contract consumed by the ingestion engine and
// the read-side engines. Reads are safe to run concurrently; writes for the
// same (user, media) pair are serialized by the ingestion engine above this
// interface.
type Store interface {
	UpsertUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id int) (*models.User, error)

	UpsertMedia(ctx context.Context, m *models.CanonicalMedia) error
	GetMedia(ctx context.Context, id int) (*models.CanonicalMedia, error)
	ListMedia(ctx context.Context) ([]models.CanonicalMedia, error)

	// GetEvent returns the active event for (user, media), or ErrNotFound.
	GetEvent(ctx context.Context, userID, mediaID int) (*models.WatchEvent, error)
	// PutEvent inserts the event or replaces the existing row for the same
	// (user, media) pair.
	PutEvent(ctx context.Context, ev *models.WatchEvent) error
	EventsForUser(ctx context.Context, q EventQuery) ([]models.WatchEvent, error)
	// SetRating updates the rating on the active event for (user, media).
	SetRating(ctx context.Context, userID, mediaID, rating int) error

	UpsertFriendLink(ctx context.Context, link *models.FriendLink) error
	// AcceptedNeighbors returns the users connected to userID by an
	// accepted friend link.
	AcceptedNeighbors(ctx context.Context, userID int) ([]models.User, error)

	SaveMention(ctx context.Context, m *models.UnresolvedMention) error
	ListMentions(ctx context.Context, userID int) ([]models.UnresolvedMention, error)

	// Version is a monotonically increasing counter bumped on every write.
	// Read-side caches key on it so a new write invalidates stale results.
	Version() int64

	Close() error
}

// NormalizeFriendPair orders an unordered user pair so each edge is stored
// exactly once with UserA < UserB.
func NormalizeFriendPair(a, b int) (int, int) {
	if a > b {
		return b, a
	}
	return a, b
}
