// Bingelog - Personal Media Tracking and Viewing Analytics
// Copyright 2026 Bingelog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bingelog/bingelog

package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/bingelog/bingelog/internal/catalog"
	"github.com/bingelog/bingelog/internal/models"
	"github.com/bingelog/bingelog/internal/store"
)

// fakeCatalog serves canned candidates and details, counting calls.
type fakeCatalog struct {
	candidates  []catalog.Candidate
	details     map[int]*catalog.Details
	searchErr   error
	searchCalls int
}

func (f *fakeCatalog) Search(_ context.Context, _ string, _ int, _ models.MediaType) ([]catalog.Candidate, error) {
	f.searchCalls++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.candidates, nil
}

func (f *fakeCatalog) Details(_ context.Context, id int, _ models.MediaType) (*catalog.Details, error) {
	return f.details[id], nil
}

func inceptionCatalog() *fakeCatalog {
	return &fakeCatalog{
		candidates: []catalog.Candidate{
			{ID: 27205, Title: "Inception", Type: models.MediaTypeMovie, Year: 2010, Popularity: 90.5},
		},
		details: map[int]*catalog.Details{
			27205: {
				ID: 27205, Title: "Inception", Type: models.MediaTypeMovie, Year: 2010,
				Genres: []string{"Sci-Fi", "Thriller"}, Popularity: 90.5,
				RuntimeMinutes: 148, EpisodeCount: 1,
			},
		},
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Inception", "inception"},
		{"  The   Matrix  ", "the matrix"},
		{"Spider-Man: No Way Home", "spider man no way home"},
		{"WALL·E", "wall e"},
		{"M*A*S*H", "m a s h"},
		{"1917", "1917"},
		{"...", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.raw); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestResolveCreatesMediaAndCaches(t *testing.T) {
	ctx := context.Background()
	cat := inceptionCatalog()
	st := store.NewMemory()
	r := New(cat, st, 16)

	res, err := r.Resolve(ctx, Request{RawTitle: "Inception", YearHint: 2010})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Media.ID != 27205 {
		t.Errorf("Media.ID = %d, want 27205", res.Media.ID)
	}
	if res.LowConfidence {
		t.Error("LowConfidence = true for an unambiguous match")
	}
	if res.Media.RuntimeMinutes != 148 {
		t.Errorf("RuntimeMinutes = %d, want 148", res.Media.RuntimeMinutes)
	}

	if _, err := st.GetMedia(ctx, 27205); err != nil {
		t.Errorf("media row not created: %v", err)
	}

	// Same normalized key, no year hint is a different cache key; lowercase
	// with the same hints must hit the cache.
	if _, err := r.Resolve(ctx, Request{RawTitle: "inception", YearHint: 2010}); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cat.searchCalls != 1 {
		t.Errorf("searchCalls = %d, want 1 (second resolve must hit cache)", cat.searchCalls)
	}
}

func TestResolveMissingDetailsIsNoMatch(t *testing.T) {
	ctx := context.Background()
	cat := inceptionCatalog()
	// Search knows the ID but the details endpoint has no entry for it.
	delete(cat.details, 27205)
	st := store.NewMemory()
	r := New(cat, st, 16)

	_, err := r.Resolve(ctx, Request{RawTitle: "Inception", YearHint: 2010})
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("Resolve() error = %v, want ErrNoMatch", err)
	}

	// No placeholder row may be created or cached.
	if _, err := st.GetMedia(ctx, 0); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetMedia(0) error = %v, want ErrNotFound", err)
	}
	if _, err := st.GetMedia(ctx, 27205); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetMedia(27205) error = %v, want ErrNotFound", err)
	}
	if _, err := r.Resolve(ctx, Request{RawTitle: "Inception", YearHint: 2010}); !errors.Is(err, ErrNoMatch) {
		t.Errorf("second Resolve() error = %v, want ErrNoMatch", err)
	}
	if cat.searchCalls != 2 {
		t.Errorf("searchCalls = %d, want 2 (failed resolutions must not be cached)", cat.searchCalls)
	}
}

// flakyStore wraps a Store and fails GetMedia when getMediaErr is set.
type flakyStore struct {
	store.Store
	getMediaErr error
}

func (f *flakyStore) GetMedia(ctx context.Context, id int) (*models.CanonicalMedia, error) {
	if f.getMediaErr != nil {
		return nil, f.getMediaErr
	}
	return f.Store.GetMedia(ctx, id)
}

func TestResolveCacheHitStoreError(t *testing.T) {
	ctx := context.Background()
	cat := inceptionCatalog()
	st := &flakyStore{Store: store.NewMemory()}
	r := New(cat, st, 16)

	if _, err := r.Resolve(ctx, Request{RawTitle: "Inception", YearHint: 2010}); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	dbErr := errors.New("connection reset")
	st.getMediaErr = dbErr
	_, err := r.Resolve(ctx, Request{RawTitle: "Inception", YearHint: 2010})
	if !errors.Is(err, dbErr) {
		t.Fatalf("Resolve() error = %v, want wrapped store error", err)
	}
	if cat.searchCalls != 1 {
		t.Errorf("searchCalls = %d, want 1 (store failure must not trigger a catalog round-trip)", cat.searchCalls)
	}

	// Once the store recovers the cached entry serves again.
	st.getMediaErr = nil
	res, err := r.Resolve(ctx, Request{RawTitle: "Inception", YearHint: 2010})
	if err != nil {
		t.Fatalf("Resolve() after recovery error = %v", err)
	}
	if res.Media.ID != 27205 {
		t.Errorf("Media.ID = %d, want 27205", res.Media.ID)
	}
}

func TestResolveLowercaseSameCanonical(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	r := New(inceptionCatalog(), st, 16)

	first, err := r.Resolve(ctx, Request{RawTitle: "Inception", YearHint: 2010})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	second, err := r.Resolve(ctx, Request{RawTitle: "inception"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if first.Media.ID != second.Media.ID {
		t.Errorf("canonical IDs differ: %d vs %d", first.Media.ID, second.Media.ID)
	}
}

func TestResolveNoMatch(t *testing.T) {
	r := New(&fakeCatalog{}, store.NewMemory(), 16)
	_, err := r.Resolve(context.Background(), Request{RawTitle: "definitely not a film"})
	if !errors.Is(err, ErrNoMatch) {
		t.Errorf("Resolve() error = %v, want ErrNoMatch", err)
	}
}

func TestResolveCatalogUnavailable(t *testing.T) {
	cat := &fakeCatalog{searchErr: catalog.ErrUnavailable}
	r := New(cat, store.NewMemory(), 16)
	_, err := r.Resolve(context.Background(), Request{RawTitle: "Inception"})
	if !errors.Is(err, catalog.ErrUnavailable) {
		t.Errorf("Resolve() error = %v, want catalog.ErrUnavailable", err)
	}
	if errors.Is(err, ErrNoMatch) {
		t.Error("unavailable must stay distinguishable from no-match")
	}
}

func TestResolveEmptyTitle(t *testing.T) {
	cat := inceptionCatalog()
	r := New(cat, store.NewMemory(), 16)
	if _, err := r.Resolve(context.Background(), Request{RawTitle: "?!"}); !errors.Is(err, ErrNoMatch) {
		t.Errorf("Resolve() error = %v, want ErrNoMatch", err)
	}
	if cat.searchCalls != 0 {
		t.Errorf("searchCalls = %d, want 0 for empty normalized title", cat.searchCalls)
	}
}

func TestDisambiguate(t *testing.T) {
	candidates := []catalog.Candidate{
		{ID: 1, Title: "Dune", Type: models.MediaTypeMovie, Year: 1984, Popularity: 40},
		{ID: 2, Title: "Dune", Type: models.MediaTypeMovie, Year: 2021, Popularity: 95},
		{ID: 3, Title: "Dune", Type: models.MediaTypeSeries, Year: 2000, Popularity: 25},
	}

	tests := []struct {
		name     string
		yearHint int
		typeHint models.MediaType
		wantID   int
		wantLow  bool
	}{
		{"exact year wins", 1984, "", 1, false},
		{"year beats popularity", 2000, "", 3, false},
		{"type hint filters", 0, models.MediaTypeSeries, 3, false},
		{"no hints, highest popularity", 0, "", 2, false},
		{"unknown year falls through to popularity", 1999, "", 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, low := disambiguate(candidates, tt.yearHint, tt.typeHint)
			if got.ID != tt.wantID {
				t.Errorf("selected ID = %d, want %d", got.ID, tt.wantID)
			}
			if low != tt.wantLow {
				t.Errorf("lowConfidence = %v, want %v", low, tt.wantLow)
			}
		})
	}

	t.Run("full tie flags low confidence", func(t *testing.T) {
		tied := []catalog.Candidate{
			{ID: 10, Year: 2020, Type: models.MediaTypeMovie, Popularity: 50},
			{ID: 11, Year: 2020, Type: models.MediaTypeMovie, Popularity: 50},
		}
		got, low := disambiguate(tied, 2020, models.MediaTypeMovie)
		if got.ID != 10 {
			t.Errorf("selected ID = %d, want first in catalog order (10)", got.ID)
		}
		if !low {
			t.Error("lowConfidence = false, want true for unresolved tie")
		}
	})
}

func TestInvalidateClearsCache(t *testing.T) {
	ctx := context.Background()
	cat := inceptionCatalog()
	r := New(cat, store.NewMemory(), 16)

	if _, err := r.Resolve(ctx, Request{RawTitle: "Inception"}); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	r.Invalidate()
	if _, err := r.Resolve(ctx, Request{RawTitle: "Inception"}); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cat.searchCalls != 2 {
		t.Errorf("searchCalls = %d, want 2 after invalidation", cat.searchCalls)
	}
}
