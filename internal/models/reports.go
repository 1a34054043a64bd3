// Bingelog - Personal Media Tracking and Viewing Analytics
// Copyright 2026 Bingelog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bingelog/bingelog

package models

import "time"

// GenreCount pairs a genre name with its appearance count.
type GenreCount struct {
	Genre string `json:"genre"`
	Count int    `json:"count"`
}

// CastCount pairs a cast member name with their appearance count.
type CastCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// YearCount pairs a release year with its watch count.
type YearCount struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

// MonthCount pairs a "YYYY-MM" key with its watch count.
type MonthCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// WrappedReport is the windowed aggregate report over a user's watched
// history. Ephemeral: recomputed per request, never persisted.
type WrappedReport struct {
	UserID      int       `json:"user_id"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`

	TotalWatched int     `json:"total_watched"`
	TotalHours   float64 `json:"total_hours"`
	MovieCount   int     `json:"movie_count"`
	SeriesCount  int     `json:"series_count"`

	TopGenre  string       `json:"top_genre"`
	TopGenres []GenreCount `json:"top_genres"`
	TopCast   []CastCount  `json:"top_cast"`

	TopYears        []YearCount  `json:"top_years"`
	MonthlyActivity []MonthCount `json:"monthly_activity"`

	// CompletionRate is watched / (watched + watchlist) over the whole
	// history, expressed as a percentage.
	CompletionRate float64 `json:"completion_rate"`
	// AverageRating averages the 1-5 ratings of rated watched items.
	AverageRating float64 `json:"average_rating"`
}

// SprintReport is the fixed 14-day trailing-window velocity report.
type SprintReport struct {
	UserID      int       `json:"user_id"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`

	Count int     `json:"count"`
	Hours float64 `json:"hours"`

	// Velocity is count / 14 (items per day).
	Velocity float64 `json:"velocity"`
	// Trend is current velocity minus the velocity of the immediately
	// preceding 14-day window.
	Trend float64 `json:"trend"`

	PreviousCount int `json:"previous_count"`
}

// RankedCandidate is one scored recommendation.
type RankedCandidate struct {
	Media CanonicalMedia `json:"media"`
	Score float64        `json:"score"`
	// Affinity is the genre-affinity component before weighting, kept for
	// explainability.
	Affinity float64 `json:"affinity"`
}

// LeaderboardMetric selects the aggregate used to rank a friend group.
type LeaderboardMetric string

const (
	// MetricTotalHours ranks by watched hours in the window.
	MetricTotalHours LeaderboardMetric = "total_hours"
	// MetricTotalCount ranks by watched item count in the window.
	MetricTotalCount LeaderboardMetric = "total_count"
)

// Valid reports whether m is a known leaderboard metric.
func (m LeaderboardMetric) Valid() bool {
	return m == MetricTotalHours || m == MetricTotalCount
}

// LeaderboardEntry is one ranked member of a friend group.
type LeaderboardEntry struct {
	Rank        int     `json:"rank"`
	UserID      int     `json:"user_id"`
	DisplayName string  `json:"display_name"`
	Value       float64 `json:"value"`
	City        string  `json:"city,omitempty"`
	Country     string  `json:"country,omitempty"`
	// IsRequester marks the entry belonging to the requesting user.
	IsRequester bool `json:"is_requester,omitempty"`
}
