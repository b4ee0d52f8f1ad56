// Package casedb persists runs and decoded artifacts in a SQLite case
// file. Artifacts are keyed by source file name, so rescanning the same
// evidence updates rows in place and the case accumulates across runs.
package casedb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kmorell/pfscan/pkg/engine/report"
)

// DB wraps the SQLite handle. A mutex serializes writers; modernc's
// driver returns SQLITE_BUSY instead of queueing them.
type DB struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// Run is one recorded engine invocation.
type Run struct {
	ID         string
	StartedAt  time.Time
	InputDir   string
	ReportPath string
	FilesSeen  int
	Parsed     int
	Skipped    int
}

// Open initializes the case database at the given path.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	d := &DB{db: db, path: path}
	if err := d.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) initialize() error {
	runsTable := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		input_dir TEXT NOT NULL,
		report_path TEXT,
		files_seen INTEGER DEFAULT 0,
		parsed INTEGER DEFAULT 0,
		skipped INTEGER DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`

	artifactsTable := `
	CREATE TABLE IF NOT EXISTS artifacts (
		source_file TEXT PRIMARY KEY,
		executable TEXT NOT NULL,
		prefetch_hash TEXT,
		format_version INTEGER,
		run_count INTEGER,
		last_run TEXT,
		volume_serials TEXT,
		triage_tags TEXT,
		first_seen_run TEXT NOT NULL,
		last_seen_run TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_artifacts_exe ON artifacts(executable);
	`

	for _, table := range []string{runsTable, artifactsTable} {
		if _, err := d.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// RecordRun inserts one run row.
func (d *DB) RecordRun(r Run) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.Exec(
		`INSERT INTO runs (id, started_at, input_dir, report_path, files_seen, parsed, skipped)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.Unix(), r.InputDir, r.ReportPath, r.FilesSeen, r.Parsed, r.Skipped,
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// UpsertArtifact inserts the record or, when the source file is already
// known, refreshes everything except the first-seen run.
func (d *DB) UpsertArtifact(runID string, rec report.Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.Exec(
		`INSERT INTO artifacts
		 (source_file, executable, prefetch_hash, format_version, run_count, last_run,
		  volume_serials, triage_tags, first_seen_run, last_seen_run, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(source_file) DO UPDATE SET
		  executable = excluded.executable,
		  prefetch_hash = excluded.prefetch_hash,
		  format_version = excluded.format_version,
		  run_count = excluded.run_count,
		  last_run = excluded.last_run,
		  volume_serials = excluded.volume_serials,
		  triage_tags = excluded.triage_tags,
		  last_seen_run = excluded.last_seen_run,
		  updated_at = excluded.updated_at`,
		rec.SourceFile, rec.ExecutableName, rec.PrefetchHash, rec.FormatVersion,
		rec.RunCount, rec.LastRun(), strings.Join(rec.VolumeSerials, "; "),
		strings.Join(rec.TriageTags, "; "), runID, runID, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert artifact %s: %w", rec.SourceFile, err)
	}
	return nil
}

// Runs returns the most recent runs, newest first.
func (d *DB) Runs(limit int) ([]Run, error) {
	rows, err := d.db.Query(
		`SELECT id, started_at, input_dir, report_path, files_seen, parsed, skipped
		 FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started int64
		if err := rows.Scan(&r.ID, &started, &r.InputDir, &r.ReportPath, &r.FilesSeen, &r.Parsed, &r.Skipped); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		r.StartedAt = time.Unix(started, 0).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Artifact is one accumulated artifact row.
type Artifact struct {
	SourceFile    string
	Executable    string
	PrefetchHash  string
	FormatVersion int
	RunCount      int
	LastRun       string
	VolumeSerials string
	TriageTags    string
	FirstSeenRun  string
	LastSeenRun   string
}

// ArtifactsByExecutable returns all rows whose executable name matches.
func (d *DB) ArtifactsByExecutable(exe string) ([]Artifact, error) {
	rows, err := d.db.Query(
		`SELECT source_file, executable, prefetch_hash, format_version, run_count,
		        last_run, volume_serials, triage_tags, first_seen_run, last_seen_run
		 FROM artifacts WHERE executable = ? ORDER BY source_file`, exe)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifacts: %w", err)
	}
	defer rows.Close()

	var out []Artifact
	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.SourceFile, &a.Executable, &a.PrefetchHash, &a.FormatVersion,
			&a.RunCount, &a.LastRun, &a.VolumeSerials, &a.TriageTags, &a.FirstSeenRun, &a.LastSeenRun); err != nil {
			return nil, fmt.Errorf("failed to scan artifact row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountArtifacts returns the number of accumulated artifact rows.
func (d *DB) CountArtifacts() (int, error) {
	var n int
	if err := d.db.QueryRow(`SELECT COUNT(*) FROM artifacts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count artifacts: %w", err)
	}
	return n, nil
}
