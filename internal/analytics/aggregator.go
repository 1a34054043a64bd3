// Bingelog - Personal Media Tracking and Viewing Analytics
// Copyright 2026 Bingelog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bingelog/bingelog

// Package analytics computes the Wrapped and Sprint reports: windowed folds
// over a user's watched history. Reports are pure functions of the store
// snapshot and are recomputed per request.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/bingelog/bingelog/internal/logging"
	"github.com/bingelog/bingelog/internal/models"
	"github.com/bingelog/bingelog/internal/store"
)

// ErrInvalidWindow indicates a negative or inverted time range. Fatal to the
// single request only.
var ErrInvalidWindow = errors.New("invalid time window")

// SprintDays is the fixed Sprint trailing-window length.
const SprintDays = 14

const topCastSize = 5
const topListSize = 5

// Window is a closed time range. A zero Window means the default for the
// report kind.
type Window struct {
	Start time.Time
	End   time.Time
}

// IsZero reports whether no explicit window was requested.
func (w Window) IsZero() bool { return w.Start.IsZero() && w.End.IsZero() }

// Aggregator computes windowed reports over the history store.
type Aggregator struct {
	store store.Store
	log   zerolog.Logger

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// New returns an Aggregator over the given store.
func New(st store.Store) *Aggregator {
	return &Aggregator{
		store: st,
		log:   logging.With().Str("component", "analytics").Logger(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Wrapped computes the aggregate report for the window. A zero window
// defaults to the current calendar year truncated to now, so the report is
// computable mid-year.
func (a *Aggregator) Wrapped(ctx context.Context, userID int, window Window) (*models.WrappedReport, error) {
	now := a.now()
	if window.IsZero() {
		window = Window{
			Start: time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC),
			End:   now,
		}
	}
	if window.End.Before(window.Start) {
		return nil, fmt.Errorf("%w: end %s before start %s",
			ErrInvalidWindow, window.End.Format(time.RFC3339), window.Start.Format(time.RFC3339))
	}

	events, err := a.store.EventsForUser(ctx, store.EventQuery{
		UserID: userID,
		Status: models.StatusWatched,
		From:   window.Start,
		To:     window.End,
	})
	if err != nil {
		return nil, fmt.Errorf("watched history for user %d: %w", userID, err)
	}

	report := &models.WrappedReport{
		UserID:      userID,
		WindowStart: window.Start,
		WindowEnd:   window.End,
	}

	genreCounts := map[string]int{}
	castCounts := map[string]int{}
	castFirstSeen := map[string]time.Time{}
	yearCounts := map[int]int{}
	monthCounts := map[string]int{}
	ratingSum, ratingCount := 0, 0

	mediaCache := map[int]*models.CanonicalMedia{}
	for _, ev := range events {
		media, err := a.mediaFor(ctx, mediaCache, ev.MediaID)
		if err != nil {
			return nil, err
		}

		report.TotalWatched++
		report.TotalHours += float64(media.RuntimeMinutes) / 60
		switch media.Type {
		case models.MediaTypeMovie:
			report.MovieCount++
		case models.MediaTypeSeries:
			report.SeriesCount++
		}

		for _, g := range media.Genres {
			genreCounts[g]++
		}
		// Events arrive ordered by event time, so the first sighting of a
		// cast member is their earliest appearance in the window.
		for _, c := range media.Cast {
			castCounts[c.Name]++
			if _, seen := castFirstSeen[c.Name]; !seen {
				castFirstSeen[c.Name] = ev.EventAt
			}
		}
		if media.Year > 0 {
			yearCounts[media.Year]++
		}
		monthCounts[ev.EventAt.Format("2006-01")]++
		if ev.Rating > 0 {
			ratingSum += ev.Rating
			ratingCount++
		}
	}

	report.TopGenres = topGenres(genreCounts)
	if len(report.TopGenres) > 0 {
		report.TopGenre = report.TopGenres[0].Genre
	}
	report.TopCast = topCast(castCounts, castFirstSeen)
	report.TopYears = topYears(yearCounts)
	report.MonthlyActivity = monthlyActivity(monthCounts)
	if ratingCount > 0 {
		report.AverageRating = float64(ratingSum) / float64(ratingCount)
	}

	rate, err := a.completionRate(ctx, userID)
	if err != nil {
		return nil, err
	}
	report.CompletionRate = rate

	return report, nil
}

// Sprint computes the 14-day trailing velocity report ending now, with a
// trend delta against the immediately preceding 14-day window. Both window
// edges are inclusive: an event exactly 14 days old counts.
func (a *Aggregator) Sprint(ctx context.Context, userID int) (*models.SprintReport, error) {
	end := a.now()
	start := end.Add(-SprintDays * 24 * time.Hour)

	count, hours, err := a.Totals(ctx, userID, Window{Start: start, End: end})
	if err != nil {
		return nil, err
	}

	prevCount, _, err := a.Totals(ctx, userID, Window{
		Start: start.Add(-SprintDays * 24 * time.Hour),
		End:   start.Add(-time.Nanosecond),
	})
	if err != nil {
		return nil, err
	}

	velocity := float64(count) / SprintDays
	return &models.SprintReport{
		UserID:        userID,
		WindowStart:   start,
		WindowEnd:     end,
		Count:         count,
		Hours:         hours,
		Velocity:      velocity,
		Trend:         velocity - float64(prevCount)/SprintDays,
		PreviousCount: prevCount,
	}, nil
}

// Totals returns the watched count and hours inside the closed window. Also
// the per-member aggregation the leaderboard ranks on.
func (a *Aggregator) Totals(ctx context.Context, userID int, window Window) (int, float64, error) {
	if window.End.Before(window.Start) {
		return 0, 0, fmt.Errorf("%w: end %s before start %s",
			ErrInvalidWindow, window.End.Format(time.RFC3339), window.Start.Format(time.RFC3339))
	}

	events, err := a.store.EventsForUser(ctx, store.EventQuery{
		UserID: userID,
		Status: models.StatusWatched,
		From:   window.Start,
		To:     window.End,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("watched history for user %d: %w", userID, err)
	}

	hours := 0.0
	mediaCache := map[int]*models.CanonicalMedia{}
	for _, ev := range events {
		media, err := a.mediaFor(ctx, mediaCache, ev.MediaID)
		if err != nil {
			return 0, 0, err
		}
		hours += float64(media.RuntimeMinutes) / 60
	}
	return len(events), hours, nil
}

func (a *Aggregator) mediaFor(ctx context.Context, cache map[int]*models.CanonicalMedia, id int) (*models.CanonicalMedia, error) {
	if m, ok := cache[id]; ok {
		return m, nil
	}
	m, err := a.store.GetMedia(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("media %d: %w", id, err)
	}
	cache[id] = m
	return m, nil
}

// completionRate is watched / (watched + watchlist) over the whole history,
// as a percentage. Zero history yields zero.
func (a *Aggregator) completionRate(ctx context.Context, userID int) (float64, error) {
	events, err := a.store.EventsForUser(ctx, store.EventQuery{UserID: userID})
	if err != nil {
		return 0, fmt.Errorf("history for user %d: %w", userID, err)
	}
	if len(events) == 0 {
		return 0, nil
	}
	watched := 0
	for _, ev := range events {
		if ev.Status == models.StatusWatched {
			watched++
		}
	}
	return float64(watched) / float64(len(events)) * 100, nil
}

// topGenres orders genres by count descending, breaking ties by the
// lexicographically smallest genre name.
func topGenres(counts map[string]int) []models.GenreCount {
	out := make([]models.GenreCount, 0, len(counts))
	for g, n := range counts {
		out = append(out, models.GenreCount{Genre: g, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Genre < out[j].Genre
	})
	if len(out) > topListSize {
		out = out[:topListSize]
	}
	return out
}

// topCast orders cast members by appearance count descending, breaking ties
// by earliest first appearance in the window, then by name.
func topCast(counts map[string]int, firstSeen map[string]time.Time) []models.CastCount {
	out := make([]models.CastCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, models.CastCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		fi, fj := firstSeen[out[i].Name], firstSeen[out[j].Name]
		if !fi.Equal(fj) {
			return fi.Before(fj)
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > topCastSize {
		out = out[:topCastSize]
	}
	return out
}

func topYears(counts map[int]int) []models.YearCount {
	out := make([]models.YearCount, 0, len(counts))
	for y, n := range counts {
		out = append(out, models.YearCount{Year: y, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Year < out[j].Year
	})
	if len(out) > topListSize {
		out = out[:topListSize]
	}
	return out
}

func monthlyActivity(counts map[string]int) []models.MonthCount {
	out := make([]models.MonthCount, 0, len(counts))
	for m, n := range counts {
		out = append(out, models.MonthCount{Month: m, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}
