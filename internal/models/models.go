// Bingelog - Personal Media Tracking and Viewing Analytics
// Copyright 2026 Bingelog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bingelog/bingelog

// Package models defines the persisted and ephemeral data types shared across
// the Bingelog core: users, canonical media, watch events, friend links and
// the report types computed from them.
package models

import (
	"time"

	"github.com/google/uuid"
)

// MediaType classifies canonical media as a movie or a series.
type MediaType string

const (
	// MediaTypeMovie is a single feature-length title.
	MediaTypeMovie MediaType = "movie"
	// MediaTypeSeries is an episodic title. Runtime is stored as the
	// per-episode runtime multiplied by the typical episode count.
	MediaTypeSeries MediaType = "series"
)

// Valid reports whether t is a known media type.
func (t MediaType) Valid() bool {
	return t == MediaTypeMovie || t == MediaTypeSeries
}

// WatchStatus is the state of a watch event.
type WatchStatus string

const (
	// StatusWatchlist marks an item the user intends to watch.
	StatusWatchlist WatchStatus = "watchlist"
	// StatusWatched marks an item the user has watched.
	StatusWatched WatchStatus = "watched"
)

// Valid reports whether s is a known watch status.
func (s WatchStatus) Valid() bool {
	return s == StatusWatchlist || s == StatusWatched
}

// User is an account known to the system. Identity issuance happens outside
// the core; the core only reads these fields.
type User struct {
	ID          int       `json:"id"`
	DisplayName string    `json:"display_name"`
	City        string    `json:"city,omitempty"`
	Country     string    `json:"country,omitempty"`
	JoinedAt    time.Time `json:"joined_at"`
}

// CastMember is one entry in a title's ordered cast list.
type CastMember struct {
	Name string `json:"name"`
	// Billing is the 1-based billing rank; lower is more prominent.
	Billing int `json:"billing"`
}

// CanonicalMedia is the deduplicated, catalog-backed identity that noisy
// title strings resolve to. Created on first successful resolution, never
// deleted, may be enriched by later catalog refreshes.
type CanonicalMedia struct {
	ID              int          `json:"id"`
	Title           string       `json:"title"`
	NormalizedTitle string       `json:"normalized_title"`
	Type            MediaType    `json:"type"`
	Year            int          `json:"year"`
	Genres          []string     `json:"genres"`
	Cast            []CastMember `json:"cast"`
	// RuntimeMinutes is the movie runtime, or the per-series total estimate
	// (per-episode runtime x episode count) for series.
	RuntimeMinutes int `json:"runtime_minutes"`
	// EpisodeCount is 1 for movies.
	EpisodeCount int `json:"episode_count"`
	// Popularity is the catalog-provided popularity score, meaningful only
	// relative to the same catalog snapshot.
	Popularity float64 `json:"popularity"`
}

// WatchEvent is one row of the append-or-update history log. At most one
// active event exists per (user, media) pair; re-submissions update the row.
type WatchEvent struct {
	ID      uuid.UUID   `json:"id"`
	UserID  int         `json:"user_id"`
	MediaID int         `json:"media_id"`
	Status  WatchStatus `json:"status"`
	// EventAt is when the item was watched, or when it was added to the
	// watchlist for watchlist entries.
	EventAt time.Time `json:"event_at"`
	// Source tags the ingestion path (e.g. "web", "extension", "import").
	Source string `json:"source"`
	// RawTitle is the pre-resolution input, retained for audit.
	RawTitle string `json:"raw_title"`
	// Rating is 0 (unrated) or 1-5.
	Rating    int       `json:"rating"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FriendStatus is the state of a friend link.
type FriendStatus string

const (
	// FriendPending is a requested but unaccepted link.
	FriendPending FriendStatus = "pending"
	// FriendAccepted is a confirmed link; only accepted links participate
	// in leaderboard and graph queries.
	FriendAccepted FriendStatus = "accepted"
)

// FriendLink is an unordered edge between two users. The pair is stored with
// UserA < UserB so each edge exists exactly once.
type FriendLink struct {
	UserA     int          `json:"user_a"`
	UserB     int          `json:"user_b"`
	Status    FriendStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
}

// UnresolvedMention is a raw title the resolver could not confidently map to
// canonical media. Retained for manual reconciliation; excluded from
// analytics until resolved.
type UnresolvedMention struct {
	ID        uuid.UUID   `json:"id"`
	UserID    int         `json:"user_id"`
	RawTitle  string      `json:"raw_title"`
	YearHint  int         `json:"year_hint,omitempty"`
	TypeHint  MediaType   `json:"type_hint,omitempty"`
	Status    WatchStatus `json:"status"`
	Source    string      `json:"source"`
	CreatedAt time.Time   `json:"created_at"`
}
