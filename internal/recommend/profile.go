// Bingelog - Personal Media Tracking and Viewing Analytics
// Copyright 2026 Bingelog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bingelog/bingelog

package recommend

import (
	"math"
	"time"

	"github.com/bingelog/bingelog/internal/models"
)

// Profile is a user's recency-weighted genre-affinity profile plus the
// movie/series mix of their watched history.
type Profile struct {
	// genreWeights holds normalized per-genre affinity; weights sum to 1
	// for a non-empty profile.
	genreWeights map[string]float64

	// movieShare is the fraction of watched items that are movies.
	movieShare float64
	watched    int
}

// BuildProfile folds a user's watched events into an affinity profile.
// Each watch contributes 0.5^(age/halfLife) to every genre of the watched
// item, so a watch one half-life ago counts half as much as one today.
func BuildProfile(events []models.WatchEvent, media map[int]*models.CanonicalMedia, now time.Time, halfLifeDays float64) *Profile {
	p := &Profile{genreWeights: make(map[string]float64)}

	movies := 0
	total := 0.0
	for _, ev := range events {
		if ev.Status != models.StatusWatched {
			continue
		}
		m, ok := media[ev.MediaID]
		if !ok {
			continue
		}
		p.watched++
		if m.Type == models.MediaTypeMovie {
			movies++
		}

		ageDays := now.Sub(ev.EventAt).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		weight := math.Pow(0.5, ageDays/halfLifeDays)
		for _, g := range m.Genres {
			p.genreWeights[g] += weight
			total += weight
		}
	}

	if total > 0 {
		for g := range p.genreWeights {
			p.genreWeights[g] /= total
		}
	}
	if p.watched > 0 {
		p.movieShare = float64(movies) / float64(p.watched)
	}
	return p
}

// Affinity returns the summed normalized weight of the candidate's genres,
// in [0, 1]. Zero for an empty profile or no genre overlap.
func (p *Profile) Affinity(m *models.CanonicalMedia) float64 {
	a := 0.0
	for _, g := range m.Genres {
		a += p.genreWeights[g]
	}
	return a
}

// TypeMismatch reports whether the candidate's type runs against a history
// dominated by the other type, per the given dominance threshold.
func (p *Profile) TypeMismatch(m *models.CanonicalMedia, threshold float64) bool {
	if p.watched == 0 {
		return false
	}
	switch m.Type {
	case models.MediaTypeSeries:
		return p.movieShare >= threshold
	case models.MediaTypeMovie:
		return 1-p.movieShare >= threshold
	default:
		return false
	}
}
