// Bingelog - Personal Media Tracking and Viewing Analytics
// Copyright 2026 Bingelog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bingelog/bingelog

// Package api provides the HTTP surface of Bingelog: event ingestion,
// reports, recommendations, leaderboards and exports, routed with chi.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/bingelog/bingelog/internal/logging"
)

// APIResponse is the JSON envelope for every API reply.
type APIResponse struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *APIError `json:"error,omitempty"`
}

// APIError carries a machine-readable code plus a human-readable message.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes returned by the API.
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeInvalidWindow      = "INVALID_WINDOW"
	CodeNotFound           = "NOT_FOUND"
	CodeCatalogUnavailable = "CATALOG_UNAVAILABLE"
	CodeInternal           = "INTERNAL_ERROR"
)

// respondJSON writes the envelope with proper headers.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")

	body, err := json.Marshal(&APIResponse{Status: "ok", Data: data})
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondError writes an error envelope and logs server-side causes.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil && status >= http.StatusInternalServerError {
		logging.Error().Err(err).Str("code", code).Msg("API error")
	}

	w.Header().Set("Content-Type", "application/json")
	body, mErr := json.Marshal(&APIResponse{
		Status: "error",
		Error:  &APIError{Code: code, Message: message},
	})
	if mErr != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	w.Write(body) //nolint:errcheck
}

// getIntParam extracts an integer query parameter with a default.
func getIntParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// getTimeParam extracts an RFC 3339 query parameter. A missing or malformed
// value returns the zero time and ok=false only for malformed input.
func getTimeParam(r *http.Request, key string) (time.Time, bool) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
