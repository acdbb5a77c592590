// Package history persists release runs to a local SQLite database so
// past releases stay inspectable after the CI log is gone. Every run is
// stored with its stage results and the release facts (versions, image
// digest, commit); the cicd history command reads it back.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	_ "modernc.org/sqlite"

	"github.com/elorm116/java-cicd-demo/pipeline"
)

var (
	// ErrNoRuns indicates the query matched no recorded run.
	ErrNoRuns = errors.New("no runs recorded")

	// ErrInvalidRun indicates the run cannot be recorded as given.
	ErrInvalidRun = errors.New("invalid run record")
)

// defaultDBFile is the database location relative to the XDG data dir.
const defaultDBFile = "cicd/history.db"

// Meta is the release state stored alongside the stage results.
type Meta struct {
	PreviousVersion string
	Version         string
	Image           string
	Digest          string
	Commit          string
	Branch          string
	BuildNumber     string
	JobName         string
}

// Entry is one recorded run as read back from the database.
type Entry struct {
	ID       int64
	RunID    string
	Status   string
	Started  time.Time
	Finished time.Time
	Duration time.Duration
	Meta     Meta

	// Failure holds the run error message for failed runs.
	Failure string
}

// StageEntry is one stage result as read back from the database.
type StageEntry struct {
	Name     string
	Status   string
	Duration time.Duration

	// Detail carries the skip reason or the failure message.
	Detail string
}

// Store is the SQLite-backed run history.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (and if necessary creates) the history database. An empty
// path selects the default location under the XDG data directory; a
// leading ~ expands to the home directory.
func Open(path string) (*Store, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", resolved)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schemaV1); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate history schema: %w", err)
	}

	return &Store{db: db, path: resolved}, nil
}

// Path returns the resolved database location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func resolvePath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		path, err := xdg.DataFile(defaultDBFile)
		if err != nil {
			return "", fmt.Errorf("resolve data directory: %w", err)
		}
		return path, nil
	}
	if strings.HasPrefix(p, "~/") || p == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		if p == "~" {
			p = home
		} else {
			p = filepath.Join(home, p[2:])
		}
	}
	return filepath.Clean(p), nil
}

// Record stores a finished run with its stage results.
func (s *Store) Record(ctx context.Context, report *pipeline.Report, meta Meta) (int64, error) {
	if report == nil {
		return 0, fmt.Errorf("%w: nil report", ErrInvalidRun)
	}
	if report.RunID == "" {
		return 0, fmt.Errorf("%w: missing run id", ErrInvalidRun)
	}

	status := pipeline.StatusSuccess
	failure := ""
	if report.Failed() {
		status = pipeline.StatusFailed
		failure = report.Err.Error()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (
			run_uuid, status, started_at, finished_at, duration_ms,
			previous_version, new_version, image, digest, commit_sha,
			branch, build_number, job_name, failure
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, report.RunID, status.String(),
		report.Started.UTC().Format(time.RFC3339Nano),
		report.Finished.UTC().Format(time.RFC3339Nano),
		report.Duration().Milliseconds(),
		meta.PreviousVersion, meta.Version, meta.Image, meta.Digest, meta.Commit,
		meta.Branch, meta.BuildNumber, meta.JobName, failure)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for i, stage := range report.Results {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_stages (run_id, position, name, status, duration_ms, detail)
			VALUES (?, ?, ?, ?, ?, ?)
		`, runID, i, stage.Name, stage.Status.String(),
			stage.Duration.Milliseconds(), stageDetail(stage))
		if err != nil {
			return 0, fmt.Errorf("insert stage %q: %w", stage.Name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return runID, nil
}

func stageDetail(res pipeline.StageResult) string {
	if res.Reason != "" {
		return res.Reason
	}
	if res.Err != nil {
		return res.Err.Error()
	}
	return ""
}

const entryColumns = `
	run_id, run_uuid, status, started_at, finished_at, duration_ms,
	previous_version, new_version, image, digest, commit_sha,
	branch, build_number, job_name, failure
`

// List returns the most recent runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM runs ORDER BY started_at DESC, run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// LastSuccess returns the most recent successful run.
func (s *Store) LastSuccess(ctx context.Context) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM runs WHERE status = ? ORDER BY started_at DESC, run_id DESC LIMIT 1`,
		pipeline.StatusSuccess.String())
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Stages returns the stage results recorded for a run, in execution
// order.
func (s *Store) Stages(ctx context.Context, runID int64) ([]StageEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, status, duration_ms, detail
		FROM run_stages WHERE run_id = ? ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stages := []StageEntry{}
	for rows.Next() {
		var (
			stage      StageEntry
			durationMS int64
		)
		if err := rows.Scan(&stage.Name, &stage.Status, &durationMS, &stage.Detail); err != nil {
			return nil, err
		}
		stage.Duration = time.Duration(durationMS) * time.Millisecond
		stages = append(stages, stage)
	}
	return stages, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var (
		entry      Entry
		started    string
		finished   string
		durationMS int64
	)
	err := row.Scan(&entry.ID, &entry.RunID, &entry.Status, &started, &finished, &durationMS,
		&entry.Meta.PreviousVersion, &entry.Meta.Version, &entry.Meta.Image, &entry.Meta.Digest,
		&entry.Meta.Commit, &entry.Meta.Branch, &entry.Meta.BuildNumber, &entry.Meta.JobName,
		&entry.Failure)
	if err != nil {
		return Entry{}, err
	}
	if entry.Started, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return Entry{}, fmt.Errorf("parse started_at: %w", err)
	}
	if entry.Finished, err = time.Parse(time.RFC3339Nano, finished); err != nil {
		return Entry{}, fmt.Errorf("parse finished_at: %w", err)
	}
	entry.Duration = time.Duration(durationMS) * time.Millisecond
	return entry, nil
}
