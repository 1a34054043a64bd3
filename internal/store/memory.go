// Bingelog - Personal Media Tracking and Viewing Analytics
// Copyright 2026 Bingelog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bingelog/bingelog

package store

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bingelog/bingelog/internal/models"
)

type friendKey struct {
	a, b int
}

type eventKey struct {
	userID, mediaID int
}

// Memory is a map-backed Store used in tests and ephemeral runs. All methods
// are safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	users    map[int]models.User
	media    map[int]models.CanonicalMedia
	events   map[eventKey]models.WatchEvent
	friends  map[friendKey]models.FriendLink
	mentions []models.UnresolvedMention
	version  atomic.Int64
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:   make(map[int]models.User),
		media:   make(map[int]models.CanonicalMedia),
		events:  make(map[eventKey]models.WatchEvent),
		friends: make(map[friendKey]models.FriendLink),
	}
}

// Version implements Store.
func (m *Memory) Version() int64 { return m.version.Load() }

// Close implements Store.
func (m *Memory) Close() error { return nil }

// UpsertUser implements Store.
func (m *Memory) UpsertUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = *u
	m.version.Add(1)
	return nil
}

// GetUser implements Store.
func (m *Memory) GetUser(_ context.Context, id int) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

// UpsertMedia implements Store.
func (m *Memory) UpsertMedia(_ context.Context, cm *models.CanonicalMedia) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.media[cm.ID] = *cm
	m.version.Add(1)
	return nil
}

// GetMedia implements Store.
func (m *Memory) GetMedia(_ context.Context, id int) (*models.CanonicalMedia, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cm, ok := m.media[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &cm, nil
}

// ListMedia implements Store.
func (m *Memory) ListMedia(_ context.Context) ([]models.CanonicalMedia, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.CanonicalMedia, 0, len(m.media))
	for _, cm := range m.media {
		out = append(out, cm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetEvent implements Store.
func (m *Memory) GetEvent(_ context.Context, userID, mediaID int) (*models.WatchEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ev, ok := m.events[eventKey{userID, mediaID}]
	if !ok {
		return nil, ErrNotFound
	}
	return &ev, nil
}

// PutEvent implements Store.
func (m *Memory) PutEvent(_ context.Context, ev *models.WatchEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[eventKey{ev.UserID, ev.MediaID}] = *ev
	m.version.Add(1)
	return nil
}

// EventsForUser implements Store.
func (m *Memory) EventsForUser(_ context.Context, q EventQuery) ([]models.WatchEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.WatchEvent
	for _, ev := range m.events {
		if ev.UserID != q.UserID {
			continue
		}
		if q.Status != "" && ev.Status != q.Status {
			continue
		}
		if !q.From.IsZero() && ev.EventAt.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && ev.EventAt.After(q.To) {
			continue
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventAt.Before(out[j].EventAt) })
	return out, nil
}

// SetRating implements Store.
func (m *Memory) SetRating(_ context.Context, userID, mediaID, rating int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := eventKey{userID, mediaID}
	ev, ok := m.events[key]
	if !ok {
		return ErrNotFound
	}
	ev.Rating = rating
	ev.UpdatedAt = time.Now().UTC()
	m.events[key] = ev
	m.version.Add(1)
	return nil
}

// UpsertFriendLink implements Store.
func (m *Memory) UpsertFriendLink(_ context.Context, link *models.FriendLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, b := NormalizeFriendPair(link.UserA, link.UserB)
	stored := *link
	stored.UserA, stored.UserB = a, b
	if prev, ok := m.friends[friendKey{a, b}]; ok {
		stored.CreatedAt = prev.CreatedAt
	}
	m.friends[friendKey{a, b}] = stored
	m.version.Add(1)
	return nil
}

// AcceptedNeighbors implements Store.
func (m *Memory) AcceptedNeighbors(_ context.Context, userID int) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.User
	for key, link := range m.friends {
		if link.Status != models.FriendAccepted {
			continue
		}
		var other int
		switch userID {
		case key.a:
			other = key.b
		case key.b:
			other = key.a
		default:
			continue
		}
		if u, ok := m.users[other]; ok {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveMention implements Store.
func (m *Memory) SaveMention(_ context.Context, mention *models.UnresolvedMention) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mentions = append(m.mentions, *mention)
	m.version.Add(1)
	return nil
}

// ListMentions implements Store.
func (m *Memory) ListMentions(_ context.Context, userID int) ([]models.UnresolvedMention, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.UnresolvedMention
	for _, mention := range m.mentions {
		if mention.UserID == userID {
			out = append(out, mention)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
