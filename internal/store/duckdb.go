// Bingelog - Personal Media Tracking and Viewing Analytics
// Copyright 2026 Bingelog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bingelog/bingelog

package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bingelog/bingelog/internal/config"
	"github.com/bingelog/bingelog/internal/logging"
	"github.com/bingelog/bingelog/internal/metrics"
	"github.com/bingelog/bingelog/internal/models"
)

const defaultQueryTimeout = 30 * time.Second

// DB is the DuckDB-backed history store.
type DB struct {
	conn    *sql.DB
	cfg     *config.DatabaseConfig
	log     zerolog.Logger
	version atomic.Int64
}

var _ Store = (*DB)(nil)

// NewDB opens (creating if necessary) the DuckDB database at cfg.Path and
// ensures the schema exists.
func NewDB(cfg *config.DatabaseConfig) (*DB, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
		cfg.Path, threads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), defaultQueryTimeout)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{
		conn: conn,
		cfg:  cfg,
		log:  logging.With().Str("component", "store").Logger(),
	}

	if err := db.initSchema(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.log.Info().Str("path", cfg.Path).Msg("Database opened")
	return db, nil
}

func (d *DB) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			display_name VARCHAR NOT NULL,
			city VARCHAR,
			country VARCHAR,
			joined_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS media (
			id INTEGER PRIMARY KEY,
			title VARCHAR NOT NULL,
			normalized_title VARCHAR NOT NULL,
			media_type VARCHAR NOT NULL,
			year INTEGER,
			genres VARCHAR,
			cast_list VARCHAR,
			runtime_minutes INTEGER,
			episode_count INTEGER,
			popularity DOUBLE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_media_normalized ON media(normalized_title)`,
		`CREATE TABLE IF NOT EXISTS watch_events (
			id UUID PRIMARY KEY,
			user_id INTEGER NOT NULL,
			media_id INTEGER NOT NULL,
			status VARCHAR NOT NULL,
			event_at TIMESTAMP NOT NULL,
			source VARCHAR,
			raw_title VARCHAR,
			rating INTEGER DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			UNIQUE(user_id, media_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_user_at ON watch_events(user_id, event_at)`,
		`CREATE TABLE IF NOT EXISTS friend_links (
			user_a INTEGER NOT NULL,
			user_b INTEGER NOT NULL,
			status VARCHAR NOT NULL,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY(user_a, user_b)
		)`,
		`CREATE TABLE IF NOT EXISTS unresolved_mentions (
			id UUID PRIMARY KEY,
			user_id INTEGER NOT NULL,
			raw_title VARCHAR NOT NULL,
			year_hint INTEGER,
			type_hint VARCHAR,
			status VARCHAR NOT NULL,
			source VARCHAR,
			created_at TIMESTAMP NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := d.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}

func ensureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// Version implements Store.
func (d *DB) Version() int64 { return d.version.Load() }

func (d *DB) bump() { d.version.Add(1) }

// Close closes the underlying connection pool.
func (d *DB) Close() error {
	d.log.Info().Msg("Closing database")
	return d.conn.Close()
}

// UpsertUser inserts or replaces a user profile.
func (d *DB) UpsertUser(ctx context.Context, u *models.User) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	start := time.Now()

	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO users (id, display_name, city, country, joined_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			display_name = excluded.display_name,
			city = excluded.city,
			country = excluded.country,
			joined_at = excluded.joined_at`,
		u.ID, u.DisplayName, u.City, u.Country, u.JoinedAt)
	metrics.ObserveStoreQuery("upsert_user", time.Since(start))
	if err != nil {
		return fmt.Errorf("failed to upsert user %d: %w", u.ID, err)
	}
	d.bump()
	return nil
}

// GetUser returns the user with the given ID, or ErrNotFound.
func (d *DB) GetUser(ctx context.Context, id int) (*models.User, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { metrics.ObserveStoreQuery("get_user", time.Since(start)) }()

	var u models.User
	err := d.conn.QueryRowContext(ctx, `
		SELECT id, display_name, city, country, joined_at
		FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.DisplayName, &u.City, &u.Country, &u.JoinedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return &u, nil
}

// UpsertMedia inserts or replaces a canonical media row.
func (d *DB) UpsertMedia(ctx context.Context, m *models.CanonicalMedia) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	start := time.Now()

	genres, err := json.Marshal(m.Genres)
	if err != nil {
		return fmt.Errorf("failed to encode genres: %w", err)
	}
	cast, err := json.Marshal(m.Cast)
	if err != nil {
		return fmt.Errorf("failed to encode cast: %w", err)
	}

	_, err = d.conn.ExecContext(ctx, `
		INSERT INTO media (id, title, normalized_title, media_type, year,
			genres, cast_list, runtime_minutes, episode_count, popularity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			normalized_title = excluded.normalized_title,
			media_type = excluded.media_type,
			year = excluded.year,
			genres = excluded.genres,
			cast_list = excluded.cast_list,
			runtime_minutes = excluded.runtime_minutes,
			episode_count = excluded.episode_count,
			popularity = excluded.popularity`,
		m.ID, m.Title, m.NormalizedTitle, string(m.Type), m.Year,
		string(genres), string(cast), m.RuntimeMinutes, m.EpisodeCount, m.Popularity)
	metrics.ObserveStoreQuery("upsert_media", time.Since(start))
	if err != nil {
		return fmt.Errorf("failed to upsert media %d: %w", m.ID, err)
	}
	d.bump()
	return nil
}

func scanMedia(scan func(dest ...any) error) (*models.CanonicalMedia, error) {
	var (
		m          models.CanonicalMedia
		mediaType  string
		genresJSON string
		castJSON   string
	)
	if err := scan(&m.ID, &m.Title, &m.NormalizedTitle, &mediaType, &m.Year,
		&genresJSON, &castJSON, &m.RuntimeMinutes, &m.EpisodeCount, &m.Popularity); err != nil {
		return nil, err
	}
	m.Type = models.MediaType(mediaType)
	if genresJSON != "" {
		if err := json.Unmarshal([]byte(genresJSON), &m.Genres); err != nil {
			return nil, fmt.Errorf("failed to decode genres: %w", err)
		}
	}
	if castJSON != "" {
		if err := json.Unmarshal([]byte(castJSON), &m.Cast); err != nil {
			return nil, fmt.Errorf("failed to decode cast: %w", err)
		}
	}
	return &m, nil
}

const mediaColumns = `id, title, normalized_title, media_type, year,
	genres, cast_list, runtime_minutes, episode_count, popularity`

// GetMedia returns the canonical media row with the given ID, or ErrNotFound.
func (d *DB) GetMedia(ctx context.Context, id int) (*models.CanonicalMedia, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { metrics.ObserveStoreQuery("get_media", time.Since(start)) }()

	row := d.conn.QueryRowContext(ctx,
		`SELECT `+mediaColumns+` FROM media WHERE id = ?`, id)
	m, err := scanMedia(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get media %d: %w", id, err)
	}
	return m, nil
}

// ListMedia returns all canonical media rows ordered by ID.
func (d *DB) ListMedia(ctx context.Context) ([]models.CanonicalMedia, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { metrics.ObserveStoreQuery("list_media", time.Since(start)) }()

	rows, err := d.conn.QueryContext(ctx,
		`SELECT `+mediaColumns+` FROM media ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list media: %w", err)
	}
	defer rows.Close()

	var out []models.CanonicalMedia
	for rows.Next() {
		m, err := scanMedia(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan media row: %w", err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate media rows: %w", err)
	}
	return out, nil
}

// GetEvent returns the active event for (user, media), or ErrNotFound.
func (d *DB) GetEvent(ctx context.Context, userID, mediaID int) (*models.WatchEvent, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { metrics.ObserveStoreQuery("get_event", time.Since(start)) }()

	row := d.conn.QueryRowContext(ctx, `
		SELECT id, user_id, media_id, status, event_at, source, raw_title,
			rating, created_at, updated_at
		FROM watch_events WHERE user_id = ? AND media_id = ?`, userID, mediaID)
	ev, err := scanEvent(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event (%d, %d): %w", userID, mediaID, err)
	}
	return ev, nil
}

func scanEvent(scan func(dest ...any) error) (*models.WatchEvent, error) {
	var (
		ev     models.WatchEvent
		idStr  string
		status string
	)
	if err := scan(&idStr, &ev.UserID, &ev.MediaID, &status, &ev.EventAt,
		&ev.Source, &ev.RawTitle, &ev.Rating, &ev.CreatedAt, &ev.UpdatedAt); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse event id: %w", err)
	}
	ev.ID = id
	ev.Status = models.WatchStatus(status)
	return &ev, nil
}

// PutEvent inserts the event or replaces the existing row for the same
// (user, media) pair. The caller decides what to carry over from the prior
// row; the store only enforces the unique key.
func (d *DB) PutEvent(ctx context.Context, ev *models.WatchEvent) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	start := time.Now()

	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO watch_events (id, user_id, media_id, status, event_at,
			source, raw_title, rating, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, media_id) DO UPDATE SET
			status = excluded.status,
			event_at = excluded.event_at,
			source = excluded.source,
			raw_title = excluded.raw_title,
			rating = excluded.rating,
			updated_at = excluded.updated_at`,
		ev.ID.String(), ev.UserID, ev.MediaID, string(ev.Status), ev.EventAt,
		ev.Source, ev.RawTitle, ev.Rating, ev.CreatedAt, ev.UpdatedAt)
	metrics.ObserveStoreQuery("put_event", time.Since(start))
	if err != nil {
		return fmt.Errorf("failed to put event (%d, %d): %w", ev.UserID, ev.MediaID, err)
	}
	d.bump()
	return nil
}

// EventsForUser returns the user's events matching the query, ordered by
// event time ascending.
func (d *DB) EventsForUser(ctx context.Context, q EventQuery) ([]models.WatchEvent, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { metrics.ObserveStoreQuery("events_for_user", time.Since(start)) }()

	query := `SELECT id, user_id, media_id, status, event_at, source, raw_title,
		rating, created_at, updated_at
		FROM watch_events WHERE user_id = ?`
	args := []any{q.UserID}

	if q.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(q.Status))
	}
	if !q.From.IsZero() {
		query += ` AND event_at >= ?`
		args = append(args, q.From)
	}
	if !q.To.IsZero() {
		query += ` AND event_at <= ?`
		args = append(args, q.To)
	}
	query += ` ORDER BY event_at`

	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events for user %d: %w", q.UserID, err)
	}
	defer rows.Close()

	var out []models.WatchEvent
	for rows.Next() {
		ev, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		out = append(out, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate event rows: %w", err)
	}
	return out, nil
}

// SetRating updates the rating on the active event for (user, media).
func (d *DB) SetRating(ctx context.Context, userID, mediaID, rating int) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	start := time.Now()

	res, err := d.conn.ExecContext(ctx, `
		UPDATE watch_events SET rating = ?, updated_at = ?
		WHERE user_id = ? AND media_id = ?`,
		rating, time.Now().UTC(), userID, mediaID)
	metrics.ObserveStoreQuery("set_rating", time.Since(start))
	if err != nil {
		return fmt.Errorf("failed to set rating (%d, %d): %w", userID, mediaID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rating update: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	d.bump()
	return nil
}

// UpsertFriendLink stores the friend edge, normalizing the pair ordering.
func (d *DB) UpsertFriendLink(ctx context.Context, link *models.FriendLink) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	start := time.Now()

	a, b := NormalizeFriendPair(link.UserA, link.UserB)
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO friend_links (user_a, user_b, status, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_a, user_b) DO UPDATE SET
			status = excluded.status`,
		a, b, string(link.Status), link.CreatedAt)
	metrics.ObserveStoreQuery("upsert_friend_link", time.Since(start))
	if err != nil {
		return fmt.Errorf("failed to upsert friend link (%d, %d): %w", a, b, err)
	}
	d.bump()
	return nil
}

// AcceptedNeighbors returns the users connected to userID by an accepted
// friend link, ordered by user ID.
func (d *DB) AcceptedNeighbors(ctx context.Context, userID int) ([]models.User, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { metrics.ObserveStoreQuery("accepted_neighbors", time.Since(start)) }()

	rows, err := d.conn.QueryContext(ctx, `
		SELECT u.id, u.display_name, u.city, u.country, u.joined_at
		FROM friend_links f
		JOIN users u ON u.id = CASE WHEN f.user_a = ? THEN f.user_b ELSE f.user_a END
		WHERE (f.user_a = ? OR f.user_b = ?) AND f.status = ?
		ORDER BY u.id`,
		userID, userID, userID, string(models.FriendAccepted))
	if err != nil {
		return nil, fmt.Errorf("failed to query neighbors for user %d: %w", userID, err)
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.DisplayName, &u.City, &u.Country, &u.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan neighbor row: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate neighbor rows: %w", err)
	}
	return out, nil
}

// SaveMention records an unresolved mention for later review.
func (d *DB) SaveMention(ctx context.Context, m *models.UnresolvedMention) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	start := time.Now()

	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO unresolved_mentions (id, user_id, raw_title, year_hint,
			type_hint, status, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID.String(), m.UserID, m.RawTitle, m.YearHint, string(m.TypeHint),
		string(m.Status), m.Source, m.CreatedAt)
	metrics.ObserveStoreQuery("save_mention", time.Since(start))
	if err != nil {
		return fmt.Errorf("failed to save mention for user %d: %w", m.UserID, err)
	}
	d.bump()
	return nil
}

// ListMentions returns the user's unresolved mentions, newest first.
func (d *DB) ListMentions(ctx context.Context, userID int) ([]models.UnresolvedMention, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { metrics.ObserveStoreQuery("list_mentions", time.Since(start)) }()

	rows, err := d.conn.QueryContext(ctx, `
		SELECT id, user_id, raw_title, year_hint, type_hint, status, source, created_at
		FROM unresolved_mentions WHERE user_id = ?
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query mentions for user %d: %w", userID, err)
	}
	defer rows.Close()

	var out []models.UnresolvedMention
	for rows.Next() {
		var (
			m        models.UnresolvedMention
			idStr    string
			typeHint string
		)
		if err := rows.Scan(&idStr, &m.UserID, &m.RawTitle, &m.YearHint,
			&typeHint, &m.Status, &m.Source, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan mention row: %w", err)
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse mention id: %w", err)
		}
		m.ID = id
		m.TypeHint = models.MediaType(typeHint)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mention rows: %w", err)
	}
	return out, nil
}
