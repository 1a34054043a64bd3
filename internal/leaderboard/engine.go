// Bingelog - Personal Media Tracking and Viewing Analytics
// Copyright 2026 Bingelog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bingelog/bingelog

// Package leaderboard ranks a user's accepted-friend neighborhood by a
// windowed watch metric, optionally filtered to the requester's city or
// country.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/bingelog/bingelog/internal/analytics"
	"github.com/bingelog/bingelog/internal/logging"
	"github.com/bingelog/bingelog/internal/models"
	"github.com/bingelog/bingelog/internal/store"
)

// ErrInvalidMetric indicates an unknown leaderboard metric was requested.
var ErrInvalidMetric = errors.New("invalid leaderboard metric")

// Locality selects the optional locality filter.
type Locality string

const (
	// LocalityNone disables locality filtering.
	LocalityNone Locality = ""
	// LocalityCity keeps members sharing the requester's city.
	LocalityCity Locality = "city"
	// LocalityCountry keeps members sharing the requester's country.
	LocalityCountry Locality = "country"
)

// Request parameterizes one leaderboard computation.
type Request struct {
	UserID   int
	Metric   models.LeaderboardMetric
	Window   analytics.Window
	Locality Locality
	// TopN bounds the visible entries; zero means no bound. The requester's
	// own entry and rank are always part of the result.
	TopN int
}

// Result is a computed leaderboard: the visible entries plus the
// requester's rank, reported even when their entry falls outside TopN.
type Result struct {
	Entries       []models.LeaderboardEntry `json:"entries"`
	RequesterRank int                       `json:"requester_rank"`
	GroupSize     int                       `json:"group_size"`
}

// Engine computes friend-group leaderboards.
type Engine struct {
	store     store.Store
	analytics *analytics.Aggregator
	log       zerolog.Logger
}

// New returns an Engine ranking with the given aggregator's totals.
func New(st store.Store, agg *analytics.Aggregator) *Engine {
	return &Engine{
		store:     st,
		analytics: agg,
		log:       logging.With().Str("component", "leaderboard").Logger(),
	}
}

// Compute ranks the requester and their accepted friends by the metric over
// the window. Ordering: metric descending, then earlier join timestamp,
// then user ID. The requester is always a group member, so an empty friend
// list yields a single-entry board.
func (e *Engine) Compute(ctx context.Context, req Request) (*Result, error) {
	if !req.Metric.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMetric, req.Metric)
	}

	requester, err := e.store.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("requester %d: %w", req.UserID, err)
	}

	neighbors, err := e.store.AcceptedNeighbors(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("friend group of %d: %w", req.UserID, err)
	}

	group := make([]models.User, 0, len(neighbors)+1)
	group = append(group, *requester)
	for _, n := range neighbors {
		if matchLocality(requester, &n, req.Locality) {
			group = append(group, n)
		}
	}

	type member struct {
		user  models.User
		value float64
	}
	members := make([]member, 0, len(group))
	for _, u := range group {
		count, hours, err := e.analytics.Totals(ctx, u.ID, req.Window)
		if err != nil {
			return nil, fmt.Errorf("totals for member %d: %w", u.ID, err)
		}
		value := float64(count)
		if req.Metric == models.MetricTotalHours {
			value = hours
		}
		members = append(members, member{user: u, value: value})
	}

	sort.Slice(members, func(i, j int) bool {
		if members[i].value != members[j].value {
			return members[i].value > members[j].value
		}
		if !members[i].user.JoinedAt.Equal(members[j].user.JoinedAt) {
			return members[i].user.JoinedAt.Before(members[j].user.JoinedAt)
		}
		return members[i].user.ID < members[j].user.ID
	})

	result := &Result{GroupSize: len(members)}
	for i, m := range members {
		entry := models.LeaderboardEntry{
			Rank:        i + 1,
			UserID:      m.user.ID,
			DisplayName: m.user.DisplayName,
			Value:       m.value,
			City:        m.user.City,
			Country:     m.user.Country,
			IsRequester: m.user.ID == req.UserID,
		}
		if entry.IsRequester {
			result.RequesterRank = entry.Rank
		}
		if req.TopN <= 0 || i < req.TopN || entry.IsRequester {
			result.Entries = append(result.Entries, entry)
		}
	}
	return result, nil
}

// matchLocality reports whether the member shares the requester's locality.
// Comparison is case-insensitive; a requester with an empty locality field
// matches nobody under that filter.
func matchLocality(requester, member *models.User, locality Locality) bool {
	switch locality {
	case LocalityCity:
		return requester.City != "" && strings.EqualFold(requester.City, member.City)
	case LocalityCountry:
		return requester.Country != "" && strings.EqualFold(requester.Country, member.Country)
	default:
		return true
	}
}
