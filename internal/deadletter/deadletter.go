// Package deadletter persists responses the delivery manager had to
// discard (fire-and-forget outcomes and unmatched correlation ids) so
// drops are observable after the fact instead of vanishing silently.
package deadletter

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	_ "modernc.org/sqlite"
)

const createDeadLettersTable = `
CREATE TABLE IF NOT EXISTS dead_letters (
    id          TEXT PRIMARY KEY,
    work_id     INTEGER NOT NULL,
    tracked     INTEGER NOT NULL,
    is_failure  INTEGER NOT NULL,
    payload     BLOB,
    failure     TEXT,
    reason      TEXT NOT NULL,
    recorded_at DATETIME NOT NULL
)`

// Entry is one discarded response.
type Entry struct {
	ID         string    `json:"id"`
	WorkID     uint64    `json:"work_id"`
	Tracked    bool      `json:"tracked"`
	IsFailure  bool      `json:"is_failure"`
	Payload    []byte    `json:"payload,omitempty"`
	Failure    string    `json:"failure,omitempty"`
	Reason     string    `json:"reason"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Store records dead letters in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens the database at dbPath and runs migrations.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(createDeadLettersTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create dead_letters table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts one entry, assigning an ID and timestamp when absent.
func (s *Store) Record(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = ulid.Make().String()
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dead_letters (
			id, work_id, tracked, is_failure, payload, failure, reason, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.WorkID, e.Tracked, e.IsFailure, e.Payload, e.Failure, e.Reason, e.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert dead letter: %w", err)
	}
	return nil
}

// List returns a page of entries ordered by recorded_at DESC, along with
// the total count of all entries.
func (s *Store) List(ctx context.Context, limit, offset int) ([]*Entry, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_letters`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count dead letters: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, work_id, tracked, is_failure, payload, failure, reason, recorded_at
		FROM dead_letters ORDER BY recorded_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	entries := make([]*Entry, 0, limit)
	for rows.Next() {
		e := &Entry{}
		if err := rows.Scan(&e.ID, &e.WorkID, &e.Tracked, &e.IsFailure, &e.Payload, &e.Failure, &e.Reason, &e.RecordedAt); err != nil {
			return nil, 0, fmt.Errorf("scan dead letter: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate dead letters: %w", err)
	}

	return entries, total, nil
}
