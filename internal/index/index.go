// SPDX-License-Identifier: MIT

// Package index archives finished recording runs in a local SQLite
// database so past sessions can be listed and inspected after the
// process exits.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go driver

	"github.com/tonband/aircheck/internal/fsutil"
	"github.com/tonband/aircheck/internal/session"
)

const schemaVersion = 1

// RunSummary is one archived run as listed by RecentRuns.
type RunSummary struct {
	RunID           string
	Country         string
	OutputDir       string
	DeadlineSeconds float64
	Workers         int
	Streams         int
	Succeeded       int
	Failed          int
	TotalBytes      int64
	StartedAt       time.Time
	FinishedAt      time.Time
}

// Recording is one archived stream outcome within a run.
type Recording struct {
	Stream         string
	URL            string
	File           string
	Bytes          int64
	Chunks         int
	ElapsedSeconds float64
	Reason         string
	Success        bool
	Error          string
}

// Store persists run reports. A single connection is enough for the
// write-once read-rarely access pattern and sidesteps SQLITE_BUSY.
type Store struct {
	db *sql.DB
}

// Open creates or opens the index database at path, creating parent
// directories as needed.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("index: path must not be empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := fsutil.EnsureDir(dir); err != nil {
			return nil, fmt.Errorf("index: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("index: open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("index: ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("index: migration failed: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	var currentVersion int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&currentVersion); err != nil {
		return err
	}
	if currentVersion >= schemaVersion {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		country TEXT NOT NULL,
		output_dir TEXT NOT NULL,
		deadline_seconds REAL NOT NULL,
		workers INTEGER NOT NULL,
		streams INTEGER NOT NULL,
		succeeded INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		total_bytes INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS recordings (
		run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
		stream TEXT NOT NULL,
		url TEXT NOT NULL,
		file TEXT NOT NULL,
		bytes INTEGER NOT NULL,
		chunks INTEGER NOT NULL,
		elapsed_seconds REAL NOT NULL,
		reason TEXT NOT NULL,
		success BOOLEAN NOT NULL,
		error TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_recordings_run ON recordings(run_id);
	`

	if _, err := tx.Exec(schema); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveReport archives a finished run and all of its outcomes in one
// transaction. Saving the same run ID again replaces the previous rows.
func (s *Store) SaveReport(ctx context.Context, report *session.Report) error {
	if report == nil {
		return fmt.Errorf("index: nil report")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (run_id, country, output_dir, deadline_seconds, workers, streams, succeeded, failed, total_bytes, started_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id) DO UPDATE SET
		country = excluded.country,
		output_dir = excluded.output_dir,
		deadline_seconds = excluded.deadline_seconds,
		workers = excluded.workers,
		streams = excluded.streams,
		succeeded = excluded.succeeded,
		failed = excluded.failed,
		total_bytes = excluded.total_bytes,
		started_at = excluded.started_at,
		finished_at = excluded.finished_at
	`,
		report.RunID, report.Country, report.OutputDir, report.Deadline.Seconds(),
		report.Workers, len(report.Outcomes), report.Succeeded(), report.Failed(),
		report.TotalBytes(),
		report.StartedAt.UTC().Format(time.RFC3339), report.FinishedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("index: insert run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM recordings WHERE run_id = ?", report.RunID); err != nil {
		return fmt.Errorf("index: clear recordings: %w", err)
	}

	for _, o := range report.Outcomes {
		file := ""
		if o.Path != "" {
			file = filepath.Base(o.Path)
		}
		errText := ""
		if o.Err != nil {
			errText = o.Err.Error()
		}
		_, err := tx.ExecContext(ctx, `
		INSERT INTO recordings (run_id, stream, url, file, bytes, chunks, elapsed_seconds, reason, success, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			report.RunID, o.Stream, o.URL, file, o.Bytes, o.Chunks,
			o.Elapsed.Seconds(), o.Reason, o.Success(), errText,
		)
		if err != nil {
			return fmt.Errorf("index: insert recording %q: %w", o.Stream, err)
		}
	}

	return tx.Commit()
}

// RecentRuns lists archived runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
	SELECT run_id, country, output_dir, deadline_seconds, workers, streams, succeeded, failed, total_bytes, started_at, finished_at
	FROM runs ORDER BY started_at DESC, run_id LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []RunSummary
	for rows.Next() {
		var r RunSummary
		var started, finished string
		if err := rows.Scan(&r.RunID, &r.Country, &r.OutputDir, &r.DeadlineSeconds,
			&r.Workers, &r.Streams, &r.Succeeded, &r.Failed, &r.TotalBytes,
			&started, &finished); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(time.RFC3339, started)
		r.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		results = append(results, r)
	}
	return results, rows.Err()
}

// RunRecordings lists the archived outcomes of one run in insertion
// order. An unknown run ID yields an empty slice, not an error.
func (s *Store) RunRecordings(ctx context.Context, runID string) ([]Recording, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT stream, url, file, bytes, chunks, elapsed_seconds, reason, success, error
	FROM recordings WHERE run_id = ? ORDER BY rowid
	`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []Recording
	for rows.Next() {
		var r Recording
		if err := rows.Scan(&r.Stream, &r.URL, &r.File, &r.Bytes, &r.Chunks,
			&r.ElapsedSeconds, &r.Reason, &r.Success, &r.Error); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
