// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrClosed        = errors.New("history store closed")
	ErrDatabaseError = errors.New("database error")
)

// =============================================================================
// TYPES
// =============================================================================

// Entry is one recorded provider attempt.
type Entry struct {
	ID               string    `json:"id"`
	CreatedAt        time.Time `json:"created_at"`
	Task             string    `json:"task"`
	Provider         string    `json:"provider"`
	Model            string    `json:"model"`
	Attempt          int       `json:"attempt"`
	Success          bool      `json:"success"`
	ErrorClass       string    `json:"error_class,omitempty"`
	Error            string    `json:"error,omitempty"`
	LatencyMs        int64     `json:"latency_ms"`
	PromptTokens     int       `json:"prompt_tokens,omitempty"`
	CompletionTokens int       `json:"completion_tokens,omitempty"`
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Model  string
	Task   string
	Since  time.Time
	Failed bool // only failed attempts
	Limit  int  // default 50
	Offset int
}

// ModelStats aggregates attempts for one model.
type ModelStats struct {
	Model        string  `json:"model"`
	Attempts     int     `json:"attempts"`
	Failures     int     `json:"failures"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// =============================================================================
// STORE
// =============================================================================

// Store is the SQLite-backed history.
type Store struct {
	db   *sql.DB
	path string
}

// DefaultPath is ~/.llumdocs/history.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".llumdocs", "history.db"), nil
}

// Open opens or creates the database at path. ":memory:" keeps the history
// in memory.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(InitMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add inserts e, assigning an ID and timestamp when missing.
func (s *Store) Add(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invocations (id, created_at, task, provider, model, attempt, success,
			error_class, error, latency_ms, prompt_tokens, completion_tokens)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CreatedAt.UnixMilli(), e.Task, e.Provider, e.Model, e.Attempt, e.Success,
		nullString(e.ErrorClass), nullString(e.Error), e.LatencyMs, e.PromptTokens, e.CompletionTokens)
	if err != nil {
		return fmt.Errorf("%w: insert: %v", ErrDatabaseError, err)
	}
	return nil
}

// List returns matching entries, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if f.Model != "" {
		where = append(where, "model = ?")
		args = append(args, f.Model)
	}
	if f.Task != "" {
		where = append(where, "task = ?")
		args = append(args, f.Task)
	}
	if !f.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, f.Since.UnixMilli())
	}
	if f.Failed {
		where = append(where, "success = 0")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, created_at, task, provider, model, attempt, success,
		COALESCE(error_class, ''), COALESCE(error, ''), latency_ms, prompt_tokens, completion_tokens
		FROM invocations`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			created int64
		)
		if err := rows.Scan(&e.ID, &created, &e.Task, &e.Provider, &e.Model, &e.Attempt, &e.Success,
			&e.ErrorClass, &e.Error, &e.LatencyMs, &e.PromptTokens, &e.CompletionTokens); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrDatabaseError, err)
		}
		e.CreatedAt = time.UnixMilli(created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Stats aggregates attempts per model since the given time.
func (s *Store) Stats(ctx context.Context, since time.Time) ([]ModelStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT model, COUNT(*), SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), AVG(latency_ms)
		FROM invocations WHERE created_at >= ?
		GROUP BY model ORDER BY COUNT(*) DESC, model`, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("%w: stats: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	var out []ModelStats
	for rows.Next() {
		var m ModelStats
		if err := rows.Scan(&m.Model, &m.Attempts, &m.Failures, &m.AvgLatencyMs); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrDatabaseError, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Prune deletes entries older than before and returns how many went.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM invocations WHERE created_at < ?", before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("%w: prune: %v", ErrDatabaseError, err)
	}
	return res.RowsAffected()
}

// ParseSince reads a lower time bound given either as a duration back
// from now ("24h") or as an RFC 3339 timestamp. Empty means no bound.
func ParseSince(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		return time.Now().Add(-d), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, errors.New("since must be RFC 3339 or a duration such as 24h")
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
