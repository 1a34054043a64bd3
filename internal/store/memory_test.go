// Bingelog - Personal Media Tracking and Viewing Analytics
// Copyright 2026 Bingelog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bingelog/bingelog

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bingelog/bingelog/internal/models"
)

func newEvent(userID, mediaID int, status models.WatchStatus, at time.Time) *models.WatchEvent {
	now := time.Now().UTC()
	return &models.WatchEvent{
		ID:        uuid.New(),
		UserID:    userID,
		MediaID:   mediaID,
		Status:    status,
		EventAt:   at,
		Source:    "test",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestPutEventReplacesExistingPair(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	first := newEvent(1, 100, models.StatusWatchlist, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	if err := s.PutEvent(ctx, first); err != nil {
		t.Fatalf("PutEvent() error = %v", err)
	}

	second := newEvent(1, 100, models.StatusWatched, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))
	if err := s.PutEvent(ctx, second); err != nil {
		t.Fatalf("PutEvent() error = %v", err)
	}

	got, err := s.GetEvent(ctx, 1, 100)
	if err != nil {
		t.Fatalf("GetEvent() error = %v", err)
	}
	if got.Status != models.StatusWatched {
		t.Errorf("Status = %q, want %q", got.Status, models.StatusWatched)
	}
	if got.ID != second.ID {
		t.Errorf("ID = %v, want replacement event id %v", got.ID, second.ID)
	}

	events, err := s.EventsForUser(ctx, EventQuery{UserID: 1})
	if err != nil {
		t.Fatalf("EventsForUser() error = %v", err)
	}
	if len(events) != 1 {
		t.Errorf("EventsForUser() returned %d events, want 1", len(events))
	}
}

func TestGetEventNotFound(t *testing.T) {
	s := NewMemory()
	if _, err := s.GetEvent(context.Background(), 1, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetEvent() error = %v, want ErrNotFound", err)
	}
}

func TestEventsForUserFilters(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	day := func(d int) time.Time {
		return time.Date(2026, 1, d, 12, 0, 0, 0, time.UTC)
	}
	for i, status := range []models.WatchStatus{
		models.StatusWatched, models.StatusWatched, models.StatusWatchlist,
	} {
		if err := s.PutEvent(ctx, newEvent(1, 100+i, status, day(i+1))); err != nil {
			t.Fatalf("PutEvent() error = %v", err)
		}
	}
	// Different user, must not leak into user 1's results.
	if err := s.PutEvent(ctx, newEvent(2, 100, models.StatusWatched, day(1))); err != nil {
		t.Fatalf("PutEvent() error = %v", err)
	}

	tests := []struct {
		name  string
		query EventQuery
		want  int
	}{
		{"all for user", EventQuery{UserID: 1}, 3},
		{"watched only", EventQuery{UserID: 1, Status: models.StatusWatched}, 2},
		{"watchlist only", EventQuery{UserID: 1, Status: models.StatusWatchlist}, 1},
		{"from bound inclusive", EventQuery{UserID: 1, From: day(2)}, 2},
		{"to bound inclusive", EventQuery{UserID: 1, To: day(2)}, 2},
		{"window", EventQuery{UserID: 1, From: day(2), To: day(2)}, 1},
		{"empty window", EventQuery{UserID: 1, From: day(10), To: day(20)}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := s.EventsForUser(ctx, tt.query)
			if err != nil {
				t.Fatalf("EventsForUser() error = %v", err)
			}
			if len(events) != tt.want {
				t.Errorf("EventsForUser() returned %d events, want %d", len(events), tt.want)
			}
			for i := 1; i < len(events); i++ {
				if events[i].EventAt.Before(events[i-1].EventAt) {
					t.Errorf("events not ordered by event time: %v before %v",
						events[i].EventAt, events[i-1].EventAt)
				}
			}
		})
	}
}

func TestSetRating(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	ev := newEvent(1, 100, models.StatusWatched, time.Now().UTC())
	if err := s.PutEvent(ctx, ev); err != nil {
		t.Fatalf("PutEvent() error = %v", err)
	}

	if err := s.SetRating(ctx, 1, 100, 4); err != nil {
		t.Fatalf("SetRating() error = %v", err)
	}
	got, err := s.GetEvent(ctx, 1, 100)
	if err != nil {
		t.Fatalf("GetEvent() error = %v", err)
	}
	if got.Rating != 4 {
		t.Errorf("Rating = %d, want 4", got.Rating)
	}

	if err := s.SetRating(ctx, 1, 999, 4); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetRating() on missing event error = %v, want ErrNotFound", err)
	}
}

func TestFriendLinksNormalizeAndFilter(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	joined := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for id := 1; id <= 4; id++ {
		u := &models.User{ID: id, DisplayName: "user", JoinedAt: joined}
		if err := s.UpsertUser(ctx, u); err != nil {
			t.Fatalf("UpsertUser() error = %v", err)
		}
	}

	// Stored (3, 1) and (1, 3) must be the same edge.
	links := []models.FriendLink{
		{UserA: 3, UserB: 1, Status: models.FriendPending, CreatedAt: joined},
		{UserA: 1, UserB: 3, Status: models.FriendAccepted, CreatedAt: joined},
		{UserA: 1, UserB: 2, Status: models.FriendAccepted, CreatedAt: joined},
		{UserA: 4, UserB: 1, Status: models.FriendPending, CreatedAt: joined},
	}
	for i := range links {
		if err := s.UpsertFriendLink(ctx, &links[i]); err != nil {
			t.Fatalf("UpsertFriendLink() error = %v", err)
		}
	}

	neighbors, err := s.AcceptedNeighbors(ctx, 1)
	if err != nil {
		t.Fatalf("AcceptedNeighbors() error = %v", err)
	}
	if len(neighbors) != 2 {
		t.Fatalf("AcceptedNeighbors() returned %d users, want 2", len(neighbors))
	}
	if neighbors[0].ID != 2 || neighbors[1].ID != 3 {
		t.Errorf("neighbor IDs = [%d, %d], want [2, 3]", neighbors[0].ID, neighbors[1].ID)
	}

	// Pending-only user sees no neighbors.
	neighbors, err = s.AcceptedNeighbors(ctx, 4)
	if err != nil {
		t.Fatalf("AcceptedNeighbors() error = %v", err)
	}
	if len(neighbors) != 0 {
		t.Errorf("AcceptedNeighbors(4) returned %d users, want 0", len(neighbors))
	}
}

func TestVersionBumpsOnWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	before := s.Version()
	if err := s.PutEvent(ctx, newEvent(1, 100, models.StatusWatched, time.Now().UTC())); err != nil {
		t.Fatalf("PutEvent() error = %v", err)
	}
	if s.Version() <= before {
		t.Errorf("Version() = %d, want > %d after write", s.Version(), before)
	}

	between := s.Version()
	if _, err := s.EventsForUser(ctx, EventQuery{UserID: 1}); err != nil {
		t.Fatalf("EventsForUser() error = %v", err)
	}
	if s.Version() != between {
		t.Errorf("Version() changed on read: %d != %d", s.Version(), between)
	}
}

func TestNormalizeFriendPair(t *testing.T) {
	a, b := NormalizeFriendPair(7, 3)
	if a != 3 || b != 7 {
		t.Errorf("NormalizeFriendPair(7, 3) = (%d, %d), want (3, 7)", a, b)
	}
	a, b = NormalizeFriendPair(3, 7)
	if a != 3 || b != 7 {
		t.Errorf("NormalizeFriendPair(3, 7) = (%d, %d), want (3, 7)", a, b)
	}
}
