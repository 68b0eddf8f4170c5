// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger records extraction batches in a SQLite database so past
// runs can be listed and audited.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/filmclub/internal/export"
)

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Batch statuses.
const (
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// Batch is one recorded extraction run.
type Batch struct {
	RunID      string
	Source     string
	Prefix     string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string
	Pages      int
	Films      int
	Added      int
	Updated    int
	Skipped    int
	Error      string
	Tables     []export.ManifestTable
}

// Store is the batch ledger.
type Store struct {
	db *sql.DB
}

// Open opens or creates the ledger database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS batches (
			run_id TEXT PRIMARY KEY,
			source TEXT,
			prefix TEXT,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			status TEXT NOT NULL,
			pages INTEGER DEFAULT 0,
			films INTEGER DEFAULT 0,
			added INTEGER DEFAULT 0,
			updated INTEGER DEFAULT 0,
			skipped INTEGER DEFAULT 0,
			error TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS batch_tables (
			run_id TEXT NOT NULL REFERENCES batches(run_id),
			tbl TEXT NOT NULL,
			rows INTEGER NOT NULL,
			md5 TEXT NOT NULL,
			unchanged INTEGER NOT NULL,
			PRIMARY KEY (run_id, tbl)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_batches_started ON batches(started_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Begin records the start of a batch.
func (s *Store) Begin(ctx context.Context, m *export.Manifest) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO batches (run_id, source, prefix, started_at, status) VALUES (?, ?, ?, ?, ?)`,
		m.RunID, m.Source, m.Prefix, m.StartedAt.UTC().Format(timeLayout), StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("inserting batch %s: %w", m.RunID, err)
	}
	return nil
}

// Finish records the outcome of a batch and, when it wrote tables, one row
// per table. A batch that was never begun is inserted.
func (s *Store) Finish(ctx context.Context, m *export.Manifest, runErr error) error {
	status, errText := StatusDone, ""
	if runErr != nil {
		status, errText = StatusFailed, runErr.Error()
	}
	finished := m.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO batches (run_id, source, prefix, started_at, finished_at, status, pages, films, added, updated, skipped, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			finished_at = excluded.finished_at,
			status = excluded.status,
			pages = excluded.pages,
			films = excluded.films,
			added = excluded.added,
			updated = excluded.updated,
			skipped = excluded.skipped,
			error = excluded.error`,
		m.RunID, m.Source, m.Prefix,
		m.StartedAt.UTC().Format(timeLayout), finished.UTC().Format(timeLayout),
		status, m.Pages, m.Films, m.Added, m.Updated, m.Skipped, errText,
	)
	if err != nil {
		return fmt.Errorf("updating batch %s: %w", m.RunID, err)
	}

	if runErr == nil {
		for _, t := range m.Tables {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO batch_tables (run_id, tbl, rows, md5, unchanged) VALUES (?, ?, ?, ?, ?)`,
				m.RunID, t.Name, t.Rows, t.MD5, boolToInt(t.Unchanged),
			); err != nil {
				return fmt.Errorf("inserting table %s: %w", t.Name, err)
			}
		}
	}
	return tx.Commit()
}

// Recent returns the n most recent batches, newest first, with their
// tables.
func (s *Store) Recent(ctx context.Context, n int) ([]Batch, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, source, prefix, started_at, COALESCE(finished_at, ''), status,
			pages, films, added, updated, skipped, COALESCE(error, '')
		FROM batches ORDER BY started_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("querying batches: %w", err)
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		var b Batch
		var started, finished string
		if err := rows.Scan(&b.RunID, &b.Source, &b.Prefix, &started, &finished, &b.Status,
			&b.Pages, &b.Films, &b.Added, &b.Updated, &b.Skipped, &b.Error); err != nil {
			return nil, fmt.Errorf("scanning batch: %w", err)
		}
		b.StartedAt, _ = time.Parse(timeLayout, started)
		if finished != "" {
			b.FinishedAt, _ = time.Parse(timeLayout, finished)
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range batches {
		tables, err := s.tables(ctx, batches[i].RunID)
		if err != nil {
			return nil, err
		}
		batches[i].Tables = tables
	}
	return batches, nil
}

func (s *Store) tables(ctx context.Context, runID string) ([]export.ManifestTable, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tbl, rows, md5, unchanged FROM batch_tables WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying tables of %s: %w", runID, err)
	}
	defer rows.Close()

	var out []export.ManifestTable
	for rows.Next() {
		var t export.ManifestTable
		var unchanged int
		if err := rows.Scan(&t.Name, &t.Rows, &t.MD5, &unchanged); err != nil {
			return nil, fmt.Errorf("scanning table: %w", err)
		}
		t.Unchanged = unchanged != 0
		out = append(out, t)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
