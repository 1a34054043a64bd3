// Bingelog - Personal Media Tracking and Viewing Analytics
// Copyright 2026 Bingelog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bingelog/bingelog

package api

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/bingelog/bingelog/internal/models"
)

var validate = validator.New()

// LogRequest is the inbound event ingestion payload from the UI or the
// browser extension.
type LogRequest struct {
	UserID   int    `json:"user_id" validate:"required,min=1"`
	RawTitle string `json:"raw_title" validate:"required,max=512"`
	Year     int    `json:"year" validate:"omitempty,min=1870,max=2100"`
	// MediaType accepts "movie", "series" and the catalog's "tv" alias.
	MediaType string `json:"media_type" validate:"omitempty,oneof=movie series tv"`
	Status    string `json:"status" validate:"required,oneof=watched watchlist"`
	// EventAt defaults to now when omitted.
	EventAt *time.Time `json:"event_at"`
	Source  string     `json:"source" validate:"omitempty,max=64"`
}

// TypeHint maps the payload's media type to the internal type, folding the
// "tv" alias to series.
func (req *LogRequest) TypeHint() models.MediaType {
	switch req.MediaType {
	case "tv", string(models.MediaTypeSeries):
		return models.MediaTypeSeries
	case string(models.MediaTypeMovie):
		return models.MediaTypeMovie
	default:
		return ""
	}
}

// LogResponse reports which ingestion branch was taken.
type LogResponse struct {
	Result           string `json:"result"`
	CanonicalMediaID int    `json:"canonical_media_id,omitempty"`
	Title            string `json:"title,omitempty"`
	LowConfidence    bool   `json:"low_confidence,omitempty"`
	// Reason distinguishes the unresolved cases: "no_match" when the
	// catalog has no candidates, "catalog_unavailable" on transient failure.
	Reason string `json:"reason,omitempty"`
}

// RatingRequest sets the 1-5 rating on an active event.
type RatingRequest struct {
	UserID int `json:"user_id" validate:"required,min=1"`
	Rating int `json:"rating" validate:"required,min=1,max=5"`
}

// UserRequest upserts a user profile. Identity issuance lives outside the
// core; this is the surface the external account system writes through.
type UserRequest struct {
	ID          int    `json:"id" validate:"required,min=1"`
	DisplayName string `json:"display_name" validate:"required,max=128"`
	City        string `json:"city" validate:"omitempty,max=128"`
	Country     string `json:"country" validate:"omitempty,max=128"`
	// JoinedAt defaults to now when omitted.
	JoinedAt *time.Time `json:"joined_at"`
}

// FriendRequest upserts a friend link between two users.
type FriendRequest struct {
	UserA  int    `json:"user_a" validate:"required,min=1"`
	UserB  int    `json:"user_b" validate:"required,min=1,nefield=UserA"`
	Status string `json:"status" validate:"required,oneof=pending accepted"`
}
