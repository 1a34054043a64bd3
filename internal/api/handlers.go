// Bingelog - Personal Media Tracking and Viewing Analytics
// Copyright 2026 Bingelog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bingelog/bingelog

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bingelog/bingelog/internal/analytics"
	"github.com/bingelog/bingelog/internal/catalog"
	"github.com/bingelog/bingelog/internal/export"
	"github.com/bingelog/bingelog/internal/ingest"
	"github.com/bingelog/bingelog/internal/leaderboard"
	"github.com/bingelog/bingelog/internal/logging"
	"github.com/bingelog/bingelog/internal/metrics"
	"github.com/bingelog/bingelog/internal/models"
	"github.com/bingelog/bingelog/internal/recommend"
	"github.com/bingelog/bingelog/internal/resolver"
	"github.com/bingelog/bingelog/internal/store"
)

// Handler carries the engines behind the HTTP surface.
type Handler struct {
	store       store.Store
	resolver    *resolver.Resolver
	ingest      *ingest.Engine
	analytics   *analytics.Aggregator
	recommend   *recommend.Engine
	leaderboard *leaderboard.Engine
	log         zerolog.Logger
}

// NewHandler wires the engines into an HTTP handler set.
func NewHandler(st store.Store, res *resolver.Resolver, ing *ingest.Engine,
	agg *analytics.Aggregator, rec *recommend.Engine, lb *leaderboard.Engine) *Handler {
	return &Handler{
		store:       st,
		resolver:    res,
		ingest:      ing,
		analytics:   agg,
		recommend:   rec,
		leaderboard: lb,
		log:         logging.With().Str("component", "api").Logger(),
	}
}

// Log ingests one watch/watchlist event: resolve the raw title, then dedup
// and upsert. An unresolvable title is a valid terminal state, not an error;
// the mention is retained for manual reconciliation and the response says
// why it could not be resolved.
func (h *Handler) Log(w http.ResponseWriter, r *http.Request) {
	var req LogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, "malformed JSON body", nil)
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error(), nil)
		return
	}

	eventAt := time.Now().UTC()
	if req.EventAt != nil {
		eventAt = req.EventAt.UTC()
	}
	source := req.Source
	if source == "" {
		source = "web"
	}
	status := models.WatchStatus(req.Status)

	res, err := h.resolver.Resolve(r.Context(), resolver.Request{
		RawTitle: req.RawTitle,
		YearHint: req.Year,
		TypeHint: req.TypeHint(),
	})
	if err != nil {
		h.logUnresolved(w, r, &req, status, source, err)
		return
	}

	result, err := h.ingest.Record(r.Context(), ingest.Submission{
		UserID:   req.UserID,
		Media:    res.Media,
		Status:   status,
		EventAt:  eventAt,
		Source:   source,
		RawTitle: req.RawTitle,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, CodeInternal, "failed to record event", err)
		return
	}

	httpStatus := http.StatusOK
	if result == ingest.ResultCreated {
		httpStatus = http.StatusCreated
	}
	respondJSON(w, httpStatus, &LogResponse{
		Result:           string(result),
		CanonicalMediaID: res.Media.ID,
		Title:            res.Media.Title,
		LowConfidence:    res.LowConfidence,
	})
}

// logUnresolved persists the mention and answers with the unresolved
// result, keeping zero-candidate and catalog-down distinguishable.
func (h *Handler) logUnresolved(w http.ResponseWriter, r *http.Request, req *LogRequest,
	status models.WatchStatus, source string, cause error) {

	reason := ""
	switch {
	case errors.Is(cause, resolver.ErrNoMatch):
		reason = "no_match"
	case errors.Is(cause, catalog.ErrUnavailable):
		reason = "catalog_unavailable"
	default:
		respondError(w, http.StatusInternalServerError, CodeInternal, "resolution failed", cause)
		return
	}

	mention := &models.UnresolvedMention{
		ID:        uuid.New(),
		UserID:    req.UserID,
		RawTitle:  req.RawTitle,
		YearHint:  req.Year,
		TypeHint:  req.TypeHint(),
		Status:    status,
		Source:    source,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.SaveMention(r.Context(), mention); err != nil {
		respondError(w, http.StatusInternalServerError, CodeInternal, "failed to save mention", err)
		return
	}

	metrics.IngestResults.WithLabelValues("unresolved", source).Inc()
	h.log.Info().
		Int("user_id", req.UserID).
		Str("raw_title", req.RawTitle).
		Str("reason", reason).
		Msg("Title left unresolved")

	respondJSON(w, http.StatusAccepted, &LogResponse{Result: "unresolved", Reason: reason})
}

// Rate sets the 1-5 rating on the caller's active event for a media item.
func (h *Handler) Rate(w http.ResponseWriter, r *http.Request) {
	mediaID, err := strconv.Atoi(chi.URLParam(r, "mediaID"))
	if err != nil || mediaID < 1 {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid media ID", nil)
		return
	}

	var req RatingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, "malformed JSON body", nil)
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error(), nil)
		return
	}

	if err := h.store.SetRating(r.Context(), req.UserID, mediaID, req.Rating); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, CodeNotFound, "no event for this media", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, CodeInternal, "failed to set rating", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"media_id": mediaID, "rating": req.Rating})
}

// Wrapped serves the windowed aggregate report. Omitted from/to default to
// the current calendar year truncated to now.
func (h *Handler) Wrapped(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	window, ok := windowFromQuery(w, r)
	if !ok {
		return
	}

	report, err := h.analytics.Wrapped(r.Context(), userID, window)
	if err != nil {
		if errors.Is(err, analytics.ErrInvalidWindow) {
			respondError(w, http.StatusBadRequest, CodeInvalidWindow, err.Error(), nil)
			return
		}
		respondError(w, http.StatusInternalServerError, CodeInternal, "failed to compute report", err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// Sprint serves the 14-day trailing velocity report.
func (h *Handler) Sprint(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	report, err := h.analytics.Sprint(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, CodeInternal, "failed to compute report", err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// Recommendations serves the ranked candidate list.
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	ranked, err := h.recommend.Recommend(r.Context(), userID, getIntParam(r, "limit", 0))
	if err != nil {
		respondError(w, http.StatusInternalServerError, CodeInternal, "failed to compute recommendations", err)
		return
	}
	respondJSON(w, http.StatusOK, ranked)
}

// Leaderboard ranks the caller's accepted-friend group.
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	window, ok := windowFromQuery(w, r)
	if !ok {
		return
	}
	if window.IsZero() {
		now := time.Now().UTC()
		window = analytics.Window{
			Start: time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC),
			End:   now,
		}
	}

	metric := models.LeaderboardMetric(r.URL.Query().Get("metric"))
	if metric == "" {
		metric = models.MetricTotalHours
	}

	result, err := h.leaderboard.Compute(r.Context(), leaderboard.Request{
		UserID:   userID,
		Metric:   metric,
		Window:   window,
		Locality: leaderboard.Locality(r.URL.Query().Get("locality")),
		TopN:     getIntParam(r, "top", 0),
	})
	if err != nil {
		switch {
		case errors.Is(err, leaderboard.ErrInvalidMetric):
			respondError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error(), nil)
		case errors.Is(err, analytics.ErrInvalidWindow):
			respondError(w, http.StatusBadRequest, CodeInvalidWindow, err.Error(), nil)
		case errors.Is(err, store.ErrNotFound):
			respondError(w, http.StatusNotFound, CodeNotFound, "unknown user", nil)
		default:
			respondError(w, http.StatusInternalServerError, CodeInternal, "failed to compute leaderboard", err)
		}
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Export streams the caller's history as a CSV download.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	status := models.WatchStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid status filter", nil)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=bingelog-history-%d.csv", userID))
	if err := export.WriteHistory(r.Context(), h.store, w, userID, status); err != nil {
		// Headers are out; all we can do is log.
		h.log.Error().Err(err).Int("user_id", userID).Msg("CSV export failed")
	}
}

// Mentions lists the caller's unresolved mentions for manual reconciliation.
func (h *Handler) Mentions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	mentions, err := h.store.ListMentions(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, CodeInternal, "failed to list mentions", err)
		return
	}
	respondJSON(w, http.StatusOK, mentions)
}

// CatalogRefresh invalidates the resolution cache after a catalog update.
func (h *Handler) CatalogRefresh(w http.ResponseWriter, r *http.Request) {
	h.resolver.Invalidate()
	respondJSON(w, http.StatusOK, map[string]string{"cache": "invalidated"})
}

// UpsertUser writes a user profile through to the store.
func (h *Handler) UpsertUser(w http.ResponseWriter, r *http.Request) {
	var req UserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, "malformed JSON body", nil)
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error(), nil)
		return
	}

	joined := time.Now().UTC()
	if req.JoinedAt != nil {
		joined = req.JoinedAt.UTC()
	}
	user := &models.User{
		ID:          req.ID,
		DisplayName: req.DisplayName,
		City:        req.City,
		Country:     req.Country,
		JoinedAt:    joined,
	}
	if err := h.store.UpsertUser(r.Context(), user); err != nil {
		respondError(w, http.StatusInternalServerError, CodeInternal, "failed to save user", err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// UpsertFriend writes a friend link through to the store.
func (h *Handler) UpsertFriend(w http.ResponseWriter, r *http.Request) {
	var req FriendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, "malformed JSON body", nil)
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error(), nil)
		return
	}

	link := &models.FriendLink{
		UserA:     req.UserA,
		UserB:     req.UserB,
		Status:    models.FriendStatus(req.Status),
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.UpsertFriendLink(r.Context(), link); err != nil {
		respondError(w, http.StatusInternalServerError, CodeInternal, "failed to save friend link", err)
		return
	}
	respondJSON(w, http.StatusOK, link)
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func requireUserID(w http.ResponseWriter, r *http.Request) (int, bool) {
	userID := getIntParam(r, "user_id", 0)
	if userID < 1 {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, "user_id is required", nil)
		return 0, false
	}
	return userID, true
}

// windowFromQuery parses optional from/to RFC 3339 parameters. Inversion is
// left to the engines so they reject it with ErrInvalidWindow.
func windowFromQuery(w http.ResponseWriter, r *http.Request) (analytics.Window, bool) {
	from, ok := getTimeParam(r, "from")
	if !ok {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, "from must be RFC 3339", nil)
		return analytics.Window{}, false
	}
	to, ok := getTimeParam(r, "to")
	if !ok {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, "to must be RFC 3339", nil)
		return analytics.Window{}, false
	}

	window := analytics.Window{Start: from, End: to}
	switch {
	case !from.IsZero() && to.IsZero():
		window.End = time.Now().UTC()
	case from.IsZero() && !to.IsZero():
		// Mirror the no-param default: the calendar year the window ends in.
		window.Start = time.Date(to.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return window, true
}
