// Bingelog - Personal Media Tracking and Viewing Analytics
// Copyright 2026 Bingelog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bingelog/bingelog

package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bingelog/bingelog/internal/config"
	"github.com/bingelog/bingelog/internal/models"
)

func testConfig(baseURL string) *config.CatalogConfig {
	return &config.CatalogConfig{
		BaseURL:           baseURL,
		APIKey:            "test-key",
		Timeout:           5 * time.Second,
		MaxRetries:        2,
		RetryBaseDelay:    time.Millisecond,
		RequestsPerSecond: 1000,
		Burst:             1000,
	}
}

func TestSearchMapsMovieAndSeriesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search/movie":
			_, _ = w.Write([]byte(`{"results":[{"id":27205,"title":"Inception","release_date":"2010-07-16","popularity":98.5}]}`))
		case "/search/tv":
			_, _ = w.Write([]byte(`{"results":[{"id":1396,"name":"Breaking Bad","first_air_date":"2008-01-20","popularity":250.0}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(testConfig(srv.URL))
	candidates, err := c.Search(context.Background(), "inception", 0, "")
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(candidates))
	}
	if candidates[0].Title != "Inception" || candidates[0].Type != models.MediaTypeMovie || candidates[0].Year != 2010 {
		t.Errorf("movie candidate = %+v", candidates[0])
	}
	if candidates[1].Title != "Breaking Bad" || candidates[1].Type != models.MediaTypeSeries || candidates[1].Year != 2008 {
		t.Errorf("series candidate = %+v", candidates[1])
	}
}

func TestSearchTypeHintLimitsEndpoint(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(testConfig(srv.URL))
	candidates, err := c.Search(context.Background(), "anything", 0, models.MediaTypeSeries)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("got %d candidates, want 0", len(candidates))
	}
	if len(paths) != 1 || paths[0] != "/search/tv" {
		t.Errorf("requested paths = %v, want [/search/tv]", paths)
	}
}

func TestSearchEmptyResultsIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(testConfig(srv.URL))
	candidates, err := c.Search(context.Background(), "zxqww", 0, models.MediaTypeMovie)
	if err != nil {
		t.Fatalf("Search() error: %v, want nil for empty results", err)
	}
	if len(candidates) != 0 {
		t.Errorf("got %d candidates, want 0", len(candidates))
	}
}

func TestGetRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"results":[{"id":1,"title":"Ok","release_date":"2020-01-01"}]}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(testConfig(srv.URL))
	candidates, err := c.Search(context.Background(), "ok", 0, models.MediaTypeMovie)
	if err != nil {
		t.Fatalf("Search() error after retries: %v", err)
	}
	if len(candidates) != 1 {
		t.Errorf("got %d candidates, want 1", len(candidates))
	}
	if calls.Load() != 3 {
		t.Errorf("server called %d times, want 3", calls.Load())
	}
}

func TestGetExhaustedRetriesReportsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewHTTPClient(testConfig(srv.URL))
	_, err := c.Search(context.Background(), "down", 0, models.MediaTypeMovie)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Search() error = %v, want ErrUnavailable", err)
	}
}

func TestDetailsMoviePayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movie/27205" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("append_to_response"); got != "credits" {
			t.Errorf("append_to_response = %q, want credits", got)
		}
		_, _ = w.Write([]byte(`{
			"id":27205,"title":"Inception","release_date":"2010-07-16",
			"popularity":98.5,"runtime":148,
			"genres":[{"name":"Science Fiction"},{"name":"Thriller"}],
			"credits":{"cast":[{"name":"Leonardo DiCaprio","order":0},{"name":"Joseph Gordon-Levitt","order":1}]}
		}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(testConfig(srv.URL))
	d, err := c.Details(context.Background(), 27205, models.MediaTypeMovie)
	if err != nil {
		t.Fatalf("Details() error: %v", err)
	}

	if d.RuntimeMinutes != 148 || d.EpisodeCount != 1 {
		t.Errorf("runtime = %d/%d episodes, want 148/1", d.RuntimeMinutes, d.EpisodeCount)
	}
	if d.TotalRuntimeMinutes() != 148 {
		t.Errorf("TotalRuntimeMinutes() = %d, want 148", d.TotalRuntimeMinutes())
	}
	if len(d.Genres) != 2 || d.Genres[0] != "Science Fiction" {
		t.Errorf("genres = %v", d.Genres)
	}
	if len(d.Cast) != 2 || d.Cast[0].Billing != 1 {
		t.Errorf("cast = %+v", d.Cast)
	}
}

func TestDetailsMissingEntryReturnsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewHTTPClient(testConfig(srv.URL))
	d, err := c.Details(context.Background(), 404404, models.MediaTypeMovie)
	if err != nil {
		t.Fatalf("Details() error: %v", err)
	}
	if d != nil {
		t.Errorf("Details() = %+v, want nil for a missing entry", d)
	}
}

func TestDetailsSeriesRuntimeEstimate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"id":1396,"name":"Breaking Bad","first_air_date":"2008-01-20",
			"popularity":250.0,"number_of_episodes":62,"episode_run_time":[47],
			"genres":[{"name":"Drama"}],
			"credits":{"cast":[]}
		}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(testConfig(srv.URL))
	d, err := c.Details(context.Background(), 1396, models.MediaTypeSeries)
	if err != nil {
		t.Fatalf("Details() error: %v", err)
	}

	if d.RuntimeMinutes != 47 || d.EpisodeCount != 62 {
		t.Errorf("runtime = %d x %d, want 47 x 62", d.RuntimeMinutes, d.EpisodeCount)
	}
	if got := d.TotalRuntimeMinutes(); got != 47*62 {
		t.Errorf("TotalRuntimeMinutes() = %d, want %d", got, 47*62)
	}
}
