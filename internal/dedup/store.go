// Package dedup keeps a small SQLite journal of processed call ids so a
// re-delivered webhook never posts a second CRM note for the same call.
package dedup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Run statuses recorded in the journal.
const (
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

const schema = `
CREATE TABLE IF NOT EXISTS processed_calls (
    call_id     TEXT PRIMARY KEY,
    phone       TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL,
    entity_id   INTEGER NOT NULL DEFAULT 0,
    entity_kind TEXT NOT NULL DEFAULT '',
    error       TEXT NOT NULL DEFAULT '',
    started_at  TEXT NOT NULL,
    finished_at TEXT
);
`

// ErrUnknownCall is returned by Get for call ids the journal has never seen.
var ErrUnknownCall = errors.New("call id not in journal")

type Store struct {
	db   *sql.DB
	path string
}

// Entry is one journal row.
type Entry struct {
	CallID     string
	Phone      string
	Status     string
	EntityID   int64
	EntityKind string
	Error      string
	StartedAt  string
	FinishedAt string
}

// Open connects to (or creates) the journal database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Begin claims a call id for processing. It returns false when the call is
// already in flight or finished. Failed runs are reclaimed so a provider
// redelivery can retry a call that never reached the publish step.
func (s *Store) Begin(ctx context.Context, callID string) (bool, error) {
	ts := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, `
        INSERT INTO processed_calls (call_id, status, started_at) VALUES (?, ?, ?)
        ON CONFLICT(call_id) DO UPDATE
            SET status = excluded.status, started_at = excluded.started_at,
                error = '', finished_at = NULL
            WHERE processed_calls.status = ?`,
		callID, StatusProcessing, ts, StatusFailed,
	)
	if err != nil {
		return false, fmt.Errorf("claim call %s: %w", callID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim call %s: rows affected: %w", callID, err)
	}
	return n > 0, nil
}

// Complete records a successful run and the entity the note landed on.
func (s *Store) Complete(ctx context.Context, callID, phone string, entityID int64, entityKind string) error {
	ts := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
        UPDATE processed_calls
           SET status = ?, phone = ?, entity_id = ?, entity_kind = ?, finished_at = ?
         WHERE call_id = ?`,
		StatusDone, phone, entityID, entityKind, ts, callID,
	)
	if err != nil {
		return fmt.Errorf("complete call %s: %w", callID, err)
	}
	return nil
}

// Fail records a fatal run outcome.
func (s *Store) Fail(ctx context.Context, callID, reason string) error {
	ts := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
        UPDATE processed_calls
           SET status = ?, error = ?, finished_at = ?
         WHERE call_id = ?`,
		StatusFailed, reason, ts, callID,
	)
	if err != nil {
		return fmt.Errorf("fail call %s: %w", callID, err)
	}
	return nil
}

// Get returns the journal entry for one call id.
func (s *Store) Get(ctx context.Context, callID string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT call_id, phone, status, entity_id, entity_kind, error,
               started_at, COALESCE(finished_at, '')
          FROM processed_calls WHERE call_id = ?`, callID)

	var e Entry
	err := row.Scan(&e.CallID, &e.Phone, &e.Status, &e.EntityID, &e.EntityKind,
		&e.Error, &e.StartedAt, &e.FinishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrUnknownCall, callID)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get call %s: %w", callID, err)
	}
	return e, nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT call_id, phone, status, entity_id, entity_kind, error,
               started_at, COALESCE(finished_at, '')
          FROM processed_calls
         ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent calls: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.CallID, &e.Phone, &e.Status, &e.EntityID,
			&e.EntityKind, &e.Error, &e.StartedAt, &e.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// PruneOlderThan drops finished entries older than age and reports how many
// rows were removed. In-flight rows are kept.
func (s *Store) PruneOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-age).Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, `
        DELETE FROM processed_calls
         WHERE started_at < ? AND status != ?`, cutoff, StatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("prune journal: %w", err)
	}
	return res.RowsAffected()
}
