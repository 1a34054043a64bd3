// Bingelog - Personal Media Tracking and Viewing Analytics
// Copyright 2026 Bingelog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bingelog/bingelog

package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bingelog/bingelog/internal/models"
	"github.com/bingelog/bingelog/internal/store"
)

var inception = &models.CanonicalMedia{
	ID: 27205, Title: "Inception", Type: models.MediaTypeMovie, Year: 2010,
	Genres: []string{"Sci-Fi", "Thriller"}, RuntimeMinutes: 148, EpisodeCount: 1,
}

func sub(status models.WatchStatus, at time.Time) Submission {
	return Submission{
		UserID:   1,
		Media:    inception,
		Status:   status,
		EventAt:  at,
		Source:   "web",
		RawTitle: "Inception",
	}
}

func TestRecordTransitions(t *testing.T) {
	t1 := time.Date(2026, 2, 1, 20, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)

	tests := []struct {
		name string
		subs []Submission
		want []Result
	}{
		{
			"first submission creates",
			[]Submission{sub(models.StatusWatchlist, t1)},
			[]Result{ResultCreated},
		},
		{
			"identical resubmission is noop",
			[]Submission{sub(models.StatusWatched, t1), sub(models.StatusWatched, t1)},
			[]Result{ResultCreated, ResultNoop},
		},
		{
			"older timestamp same status is noop",
			[]Submission{sub(models.StatusWatched, t2), sub(models.StatusWatched, t1)},
			[]Result{ResultCreated, ResultNoop},
		},
		{
			"newer timestamp same status updates",
			[]Submission{sub(models.StatusWatched, t1), sub(models.StatusWatched, t2)},
			[]Result{ResultCreated, ResultUpdated},
		},
		{
			"watchlist to watched updates",
			[]Submission{sub(models.StatusWatchlist, t1), sub(models.StatusWatched, t2)},
			[]Result{ResultCreated, ResultUpdated},
		},
		{
			"watched to watchlist regression accepted",
			[]Submission{sub(models.StatusWatched, t1), sub(models.StatusWatchlist, t2)},
			[]Result{ResultCreated, ResultUpdated},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(store.NewMemory())
			for i, s := range tt.subs {
				got, err := e.Record(context.Background(), s)
				if err != nil {
					t.Fatalf("Record() #%d error = %v", i, err)
				}
				if got != tt.want[i] {
					t.Errorf("Record() #%d = %q, want %q", i, got, tt.want[i])
				}
			}
		})
	}
}

func TestRecordNeverDuplicates(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	e := New(st)

	at := time.Date(2026, 2, 1, 20, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if _, err := e.Record(ctx, sub(models.StatusWatched, at)); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	events, err := st.EventsForUser(ctx, store.EventQuery{UserID: 1})
	if err != nil {
		t.Fatalf("EventsForUser() error = %v", err)
	}
	if len(events) != 1 {
		t.Errorf("stored %d events, want exactly 1", len(events))
	}
}

func TestRecordPreservesCreatedAtAndRating(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	e := New(st)

	t1 := time.Date(2026, 2, 1, 20, 0, 0, 0, time.UTC)
	if _, err := e.Record(ctx, sub(models.StatusWatched, t1)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := st.SetRating(ctx, 1, inception.ID, 5); err != nil {
		t.Fatalf("SetRating() error = %v", err)
	}
	first, err := st.GetEvent(ctx, 1, inception.ID)
	if err != nil {
		t.Fatalf("GetEvent() error = %v", err)
	}

	if _, err := e.Record(ctx, sub(models.StatusWatched, t1.Add(time.Hour))); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	second, err := st.GetEvent(ctx, 1, inception.ID)
	if err != nil {
		t.Fatalf("GetEvent() error = %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("event ID changed on update: %v -> %v", first.ID, second.ID)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt changed on update: %v -> %v", first.CreatedAt, second.CreatedAt)
	}
	if second.Rating != 5 {
		t.Errorf("Rating = %d after update, want 5 preserved", second.Rating)
	}
}

func TestRecordRejectsInvalidStatus(t *testing.T) {
	e := New(store.NewMemory())
	s := sub("binged", time.Now().UTC())
	if _, err := e.Record(context.Background(), s); err == nil {
		t.Error("Record() with invalid status: want error, got nil")
	}
}

func TestRecordConcurrentSamePair(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	e := New(st)

	at := time.Date(2026, 2, 1, 20, 0, 0, 0, time.UTC)
	var wg sync.WaitGroup
	results := make([]Result, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := e.Record(ctx, sub(models.StatusWatched, at))
			if err != nil {
				t.Errorf("Record() error = %v", err)
				return
			}
			results[i] = r
		}(i)
	}
	wg.Wait()

	created := 0
	for _, r := range results {
		if r == ResultCreated {
			created++
		}
	}
	if created != 1 {
		t.Errorf("%d goroutines reported created, want exactly 1", created)
	}

	events, err := st.EventsForUser(ctx, store.EventQuery{UserID: 1})
	if err != nil {
		t.Fatalf("EventsForUser() error = %v", err)
	}
	if len(events) != 1 {
		t.Errorf("stored %d events, want exactly 1", len(events))
	}
}
