// Package journal keeps the last outcome of every vault file an index run
// touched, in a small SQLite database next to the index. Failed files stay
// listed until a later run stores or removes them.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS outcomes (
	path       TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	kind       TEXT NOT NULL DEFAULT '',
	message    TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_outcomes_status ON outcomes(status);
`

// Status is the last outcome of a file.
type Status string

const (
	StatusIndexed Status = "indexed"
	StatusFailed  Status = "failed"
)

// Entry is one file's last outcome.
type Entry struct {
	Path      string    `json:"path"`
	Status    Status    `json:"status"`
	Kind      string    `json:"kind,omitempty"`
	Message   string    `json:"message,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Journal wraps the outcomes database.
type Journal struct {
	conn *sql.DB
	now  func() time.Time
}

// Open opens (or creates) the journal at path.
func Open(path string) (*Journal, error) {
	conn, err := sql.Open(driverName, dsn(path))
	if err != nil {
		return nil, fmt.Errorf("journal: open db: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("journal: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("journal: apply schema: %w", err)
	}
	return &Journal{conn: conn, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	return j.conn.Close()
}

// Record stores the outcomes of one run in a single transaction. Entries
// without a time get the current one.
func (j *Journal) Record(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := j.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("journal: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO outcomes (path, status, kind, message, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			status     = excluded.status,
			kind       = excluded.kind,
			message    = excluded.message,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("journal: prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := j.now().UTC()
	for _, e := range entries {
		at := e.UpdatedAt
		if at.IsZero() {
			at = now
		}
		if _, err := stmt.ExecContext(ctx, e.Path, string(e.Status), e.Kind, e.Message, at.UTC()); err != nil {
			return fmt.Errorf("journal: record %s: %w", e.Path, err)
		}
	}
	return tx.Commit()
}

// Forget drops the entries for paths, for files that no longer exist.
func (j *Journal) Forget(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	tx, err := j.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("journal: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, p := range paths {
		if _, err := tx.ExecContext(ctx, `DELETE FROM outcomes WHERE path = ?`, p); err != nil {
			return fmt.Errorf("journal: forget %s: %w", p, err)
		}
	}
	return tx.Commit()
}

// Failures lists the files whose last run failed, by path.
func (j *Journal) Failures(ctx context.Context) ([]Entry, error) {
	rows, err := j.conn.QueryContext(ctx, `
		SELECT path, status, kind, message, updated_at
		FROM outcomes WHERE status = ? ORDER BY path
	`, string(StatusFailed))
	if err != nil {
		return nil, fmt.Errorf("journal: failures: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var (
			e      Entry
			status string
		)
		if err := rows.Scan(&e.Path, &status, &e.Kind, &e.Message, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		e.Status = Status(status)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Lookup returns the entry for path and whether one exists.
func (j *Journal) Lookup(ctx context.Context, path string) (Entry, bool, error) {
	var (
		e      Entry
		status string
	)
	err := j.conn.QueryRowContext(ctx, `
		SELECT path, status, kind, message, updated_at FROM outcomes WHERE path = ?
	`, path).Scan(&e.Path, &status, &e.Kind, &e.Message, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("journal: lookup %s: %w", path, err)
	}
	e.Status = Status(status)
	return e, true, nil
}
