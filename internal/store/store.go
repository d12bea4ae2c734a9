// Package store keeps the audit trail of toggle flips, auth outcomes and
// server lifecycle actions in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sftpgate/internal/common/logger"

	"go.uber.org/zap"
)

// event kinds written by the service, the supervisor and the SSH layer
const (
	EventEnabled          = "sftp_enabled"
	EventDisabled         = "sftp_disabled"
	EventExpired          = "sftp_expired"
	EventServerStarted    = "server_started"
	EventServerStopped    = "server_stopped"
	EventServerStartFail  = "server_start_failed"
	EventAuthSuccess      = "auth_success"
	EventAuthFailure      = "auth_failure"
	EventSessionOpened    = "session_opened"
	EventSessionClosed    = "session_closed"
	EventSubsystemStarted = "subsystem_started"
)

const defaultEventLimit = 50
const maxEventLimit = 500

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts TEXT NOT NULL,
	kind TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT ''
);`

type Event struct {
	ID     int64  `json:"id"`
	Ts     string `json:"ts"`
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

type Store struct {
	db *sql.DB
	lg *zap.SugaredLogger
}

func NewStore(ctx context.Context, path string) (*Store, error) {
	lg := logger.FromContext(ctx).Named("store")

	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?cache=shared", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// single connection keeps concurrent writers out of SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	lg.Infof("Using database `%s`", path)

	return &Store{db: db, lg: lg}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RecordEvent appends one audit row. Failures are logged and swallowed so
// the calling operation is never broken by the audit trail.
func (s *Store) RecordEvent(ctx context.Context, kind, detail string) {
	ts := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO events (ts, kind, detail) VALUES (?, ?, ?)",
		ts, kind, detail,
	)
	if err != nil {
		s.lg.Warnf("Failed to record event %s: %v", kind, err)
		return
	}
	s.lg.Debugf("Event %s: %s", kind, detail)
}

// RecentEvents returns the newest events first. A non-positive limit falls
// back to the default, anything above the cap is clamped.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = defaultEventLimit
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, ts, kind, detail FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0, limit)
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Ts, &e.Kind, &e.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	return events, nil
}
