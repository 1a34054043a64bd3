// Bingelog - Personal Media Tracking and Viewing Analytics
// Copyright 2026 Bingelog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bingelog/bingelog

package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/bingelog/bingelog/internal/config"
	"github.com/bingelog/bingelog/internal/models"
)

// maxErrorBodySize limits how much of an error response body is read for
// diagnostics.
const maxErrorBodySize = 64 * 1024

// HTTPClient talks to a TMDB-style catalog API over HTTP.
//
// Requests pass through a client-side rate limiter, and 429/5xx responses
// are retried with exponential backoff (honoring Retry-After). Exhausted
// retries and transport errors are reported as ErrUnavailable so callers
// can distinguish them from genuine zero-result searches.
type HTTPClient struct {
	baseURL        string
	apiKey         string
	client         *http.Client
	limiter        *rate.Limiter
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewHTTPClient creates a catalog client from configuration.
func NewHTTPClient(cfg *config.CatalogConfig) *HTTPClient {
	return &HTTPClient{
		baseURL:        cfg.BaseURL,
		apiKey:         cfg.APIKey,
		client:         &http.Client{Timeout: cfg.Timeout},
		limiter:        rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		maxRetries:     cfg.MaxRetries,
		retryBaseDelay: cfg.RetryBaseDelay,
	}
}

// searchResponse is the catalog's search result envelope.
type searchResponse struct {
	Results []searchResult `json:"results"`
}

type searchResult struct {
	ID int `json:"id"`
	// Movies carry "title"/"release_date", series "name"/"first_air_date".
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	Popularity   float64 `json:"popularity"`
}

// detailsResponse is the catalog's per-title details payload with credits
// appended.
type detailsResponse struct {
	ID               int     `json:"id"`
	Title            string  `json:"title"`
	Name             string  `json:"name"`
	ReleaseDate      string  `json:"release_date"`
	FirstAirDate     string  `json:"first_air_date"`
	Popularity       float64 `json:"popularity"`
	Runtime          int     `json:"runtime"`
	NumberOfEpisodes int     `json:"number_of_episodes"`
	EpisodeRunTime   []int   `json:"episode_run_time"`
	Genres           []struct {
		Name string `json:"name"`
	} `json:"genres"`
	Credits struct {
		Cast []struct {
			Name  string `json:"name"`
			Order int    `json:"order"`
		} `json:"cast"`
	} `json:"credits"`
}

// Search queries the catalog for a title. When a type hint is given only
// that endpoint is tried; otherwise movie results come first, then series,
// preserving catalog order within each.
func (c *HTTPClient) Search(ctx context.Context, query string, yearHint int, typeHint models.MediaType) ([]Candidate, error) {
	endpoints := []models.MediaType{models.MediaTypeMovie, models.MediaTypeSeries}
	if typeHint.Valid() {
		endpoints = []models.MediaType{typeHint}
	}

	var candidates []Candidate
	for _, mt := range endpoints {
		params := url.Values{}
		params.Set("query", query)
		if yearHint > 0 {
			params.Set("year", strconv.Itoa(yearHint))
		}

		var resp searchResponse
		found, err := c.get(ctx, "/search/"+endpointFor(mt), params, &resp)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}

		for _, r := range resp.Results {
			candidates = append(candidates, Candidate{
				ID:         r.ID,
				Title:      firstNonEmpty(r.Title, r.Name),
				Type:       mt,
				Year:       yearOf(firstNonEmpty(r.ReleaseDate, r.FirstAirDate)),
				Popularity: r.Popularity,
			})
		}
	}

	return candidates, nil
}

// Details fetches full metadata, including credits, for one catalog entry.
// A missing entry returns (nil, nil).
func (c *HTTPClient) Details(ctx context.Context, id int, mediaType models.MediaType) (*Details, error) {
	params := url.Values{}
	params.Set("append_to_response", "credits")

	var resp detailsResponse
	path := fmt.Sprintf("/%s/%d", endpointFor(mediaType), id)
	found, err := c.get(ctx, path, params, &resp)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	details := &Details{
		ID:             resp.ID,
		Title:          firstNonEmpty(resp.Title, resp.Name),
		Type:           mediaType,
		Year:           yearOf(firstNonEmpty(resp.ReleaseDate, resp.FirstAirDate)),
		Popularity:     resp.Popularity,
		RuntimeMinutes: resp.Runtime,
		EpisodeCount:   1,
	}

	for _, g := range resp.Genres {
		details.Genres = append(details.Genres, g.Name)
	}
	for _, m := range resp.Credits.Cast {
		details.Cast = append(details.Cast, models.CastMember{Name: m.Name, Billing: m.Order + 1})
	}

	if mediaType == models.MediaTypeSeries {
		if len(resp.EpisodeRunTime) > 0 {
			details.RuntimeMinutes = resp.EpisodeRunTime[0]
		}
		if resp.NumberOfEpisodes > 0 {
			details.EpisodeCount = resp.NumberOfEpisodes
		}
	}

	return details, nil
}

// get performs one catalog GET with rate limiting, retry and JSON decoding.
// The bool reports whether the entry exists; a 404 returns (false, nil) so
// callers can distinguish missing entries from transient failures.
func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, result interface{}) (bool, error) {
	if params == nil {
		params = url.Values{}
	}
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}
	reqURL := c.baseURL + path + "?" + params.Encode()

	resp, err := c.doWithRetry(ctx, reqURL)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		body := readBodyForError(resp.Body)
		return false, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return false, fmt.Errorf("failed to decode catalog response: %w", err)
	}
	return true, nil
}

// doWithRetry executes the request, retrying 429 and 5xx responses with
// exponential backoff. The context cancels both requests and backoff waits.
func (c *HTTPClient) doWithRetry(ctx context.Context, reqURL string) (*http.Response, error) {
	var lastStatus int

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		if !shouldRetry(resp.StatusCode) {
			return resp, nil
		}

		lastStatus = resp.StatusCode
		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil {
				delay = time.Duration(seconds) * time.Second
			}
		}
		_ = resp.Body.Close()

		if attempt == c.maxRetries {
			break
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("%w: status %d after %d retries", ErrUnavailable, lastStatus, c.maxRetries)
}

func shouldRetry(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	return body
}

// endpointFor maps the internal media type to the catalog's path segment.
func endpointFor(mt models.MediaType) string {
	if mt == models.MediaTypeSeries {
		return "tv"
	}
	return "movie"
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// yearOf extracts the year from a catalog date string ("2010-07-16").
func yearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}
