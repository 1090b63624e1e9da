// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package sqlite is the SQLite-backed run journal.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/sigil-dev/wayfinder/internal/store"
	wferr "github.com/sigil-dev/wayfinder/pkg/errors"
)

var _ store.RunStore = (*RunStore)(nil)

// RunStore implements store.RunStore on a single SQLite database.
type RunStore struct {
	db *sql.DB
}

// NewRunStore opens (or creates) the database at dbPath, creating its
// parent directory when needed, and initialises the runs table.
func NewRunStore(dbPath string) (*RunStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, wferr.New(wferr.CodeStoreBackendInvalid, "sqlite: database path must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, wferr.Errorf(wferr.CodeStoreOpenFailure, "creating journal directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, wferr.Errorf(wferr.CodeStoreOpenFailure, "opening run journal: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, wferr.Errorf(wferr.CodeStoreOpenFailure, "pinging run journal: %w", err)
	}

	if err := migrateRuns(db); err != nil {
		_ = db.Close()
		return nil, wferr.Errorf(wferr.CodeStoreOpenFailure, "migrating run journal: %w", err)
	}

	return &RunStore{db: db}, nil
}

func migrateRuns(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	target        TEXT NOT NULL,
	outcome       TEXT NOT NULL,
	answer        TEXT NOT NULL DEFAULT '',
	rounds        INTEGER NOT NULL DEFAULT 0,
	graph_size    INTEGER NOT NULL DEFAULT 0,
	visited       INTEGER NOT NULL DEFAULT 0,
	submit_status INTEGER NOT NULL DEFAULT 0,
	error         TEXT NOT NULL DEFAULT '',
	started_at    INTEGER NOT NULL,
	finished_at   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_runs_target ON runs(target, started_at);
`
	_, err := db.Exec(ddl)
	return err
}

func (s *RunStore) Append(ctx context.Context, run *store.Run) error {
	if err := run.Validate(); err != nil {
		return err
	}

	const q = `INSERT INTO runs (id, target, outcome, answer, rounds, graph_size, visited, submit_status, error, started_at, finished_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, q,
		run.ID, run.Target, string(run.Outcome), run.Answer,
		run.Rounds, run.GraphSize, run.Visited, run.SubmitStatus, run.Error,
		toNanos(run.StartedAt), toNanos(run.FinishedAt),
	)
	if err != nil {
		var sqlErr sqlite3.Error
		if errors.As(err, &sqlErr) && sqlErr.Code == sqlite3.ErrConstraint {
			return wferr.Errorf(wferr.CodeStoreRunInvalidInput, "run %s already recorded", run.ID)
		}
		return wferr.Errorf(wferr.CodeStoreRunFailure, "appending run %s: %w", run.ID, err)
	}
	return nil
}

const selectRuns = `SELECT id, target, outcome, answer, rounds, graph_size, visited, submit_status, error, started_at, finished_at FROM runs`

func (s *RunStore) Get(ctx context.Context, id string) (*store.Run, error) {
	row := s.db.QueryRowContext(ctx, selectRuns+` WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wferr.Errorf(wferr.CodeStoreRunNotFound, "run %q not found", id)
	}
	if err != nil {
		return nil, wferr.Errorf(wferr.CodeStoreRunFailure, "reading run %s: %w", id, err)
	}
	return r, nil
}

func (s *RunStore) List(ctx context.Context, filter store.RunFilter) ([]*store.Run, error) {
	var qb strings.Builder
	qb.WriteString(selectRuns)

	var conditions []string
	var args []any

	if filter.Target != "" {
		conditions = append(conditions, "target = ?")
		args = append(args, filter.Target)
	}
	if filter.Outcome != "" {
		conditions = append(conditions, "outcome = ?")
		args = append(args, string(filter.Outcome))
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, "started_at >= ?")
		args = append(args, toNanos(filter.From))
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, "started_at < ?")
		args = append(args, toNanos(filter.To))
	}

	if len(conditions) > 0 {
		qb.WriteString(" WHERE ")
		qb.WriteString(strings.Join(conditions, " AND "))
	}

	qb.WriteString(" ORDER BY started_at DESC, id DESC")

	limit := filter.Limit
	if limit <= 0 {
		limit = store.DefaultListLimit
	}
	qb.WriteString(" LIMIT ? OFFSET ?")
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, wferr.Errorf(wferr.CodeStoreRunFailure, "querying runs: %w", err)
	}
	defer rows.Close() //nolint:errcheck // error on read-path close is not actionable

	var runs []*store.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, wferr.Errorf(wferr.CodeStoreRunFailure, "scanning run row: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, wferr.Errorf(wferr.CodeStoreRunFailure, "iterating runs: %w", err)
	}
	return runs, nil
}

// Close closes the underlying database.
func (s *RunStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*store.Run, error) {
	var r store.Run
	var outcome string
	var started, finished int64
	if err := sc.Scan(
		&r.ID, &r.Target, &outcome, &r.Answer,
		&r.Rounds, &r.GraphSize, &r.Visited, &r.SubmitStatus, &r.Error,
		&started, &finished,
	); err != nil {
		return nil, err
	}
	r.Outcome = store.Outcome(outcome)
	r.StartedAt = fromNanos(started)
	r.FinishedAt = fromNanos(finished)
	return &r, nil
}

// Times are stored as Unix nanoseconds so that ORDER BY is chronological.
func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
