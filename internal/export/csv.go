// Bingelog - Personal Media Tracking and Viewing Analytics
// Copyright 2026 Bingelog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bingelog/bingelog

// Package export renders a user's history as CSV for download and backup.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/bingelog/bingelog/internal/models"
	"github.com/bingelog/bingelog/internal/store"
)

var header = []string{
	"title", "type", "year", "status", "event_at", "rating",
	"runtime_minutes", "genres",
}

// WriteHistory streams the user's events as CSV, ordered by event time.
// An empty status exports the full history; otherwise only events with the
// given status are included.
func WriteHistory(ctx context.Context, st store.Store, w io.Writer, userID int, status models.WatchStatus) error {
	events, err := st.EventsForUser(ctx, store.EventQuery{UserID: userID, Status: status})
	if err != nil {
		return fmt.Errorf("history for user %d: %w", userID, err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("csv header: %w", err)
	}

	mediaCache := map[int]*models.CanonicalMedia{}
	for _, ev := range events {
		media, ok := mediaCache[ev.MediaID]
		if !ok {
			media, err = st.GetMedia(ctx, ev.MediaID)
			if err != nil {
				return fmt.Errorf("media %d: %w", ev.MediaID, err)
			}
			mediaCache[ev.MediaID] = media
		}

		rating := ""
		if ev.Rating > 0 {
			rating = strconv.Itoa(ev.Rating)
		}
		record := []string{
			media.Title,
			string(media.Type),
			strconv.Itoa(media.Year),
			string(ev.Status),
			ev.EventAt.UTC().Format(time.RFC3339),
			rating,
			strconv.Itoa(media.RuntimeMinutes),
			strings.Join(media.Genres, "|"),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("csv record: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
