package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"careerlaunch/internal/config"
	"careerlaunch/internal/errors"
	"careerlaunch/internal/workflow"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so the stored text sorts in time order
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// RunRecord is one finished workflow run as stored on disk
type RunRecord struct {
	ID         string    `json:"id"`
	Generation uint64    `json:"generation"`
	Phase      string    `json:"phase"`
	MatchScore int       `json:"matchScore"`
	Location   string    `json:"location,omitempty"`
	Tone       string    `json:"tone"`
	Error      string    `json:"error,omitempty"`
	JobCount   int       `json:"jobCount"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Duration returns how long the run took
func (r RunRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store persists run records in SQLite
type Store struct {
	db        *sql.DB
	listLimit int
}

// Open opens the history database described by cfg. It returns a nil store
// when history is disabled.
func Open(cfg config.HistoryConfig) (*Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	return OpenPath(cfg.Path, cfg.ListLimit)
}

// OpenPath opens (or creates) the database at path
func OpenPath(path string, listLimit int) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, errors.NewIOError(errors.ErrCodeStorageFailed, "Failed to create history directory", err).
				WithContext("path", dir)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeStorageFailed, "Failed to open history database", err).
			WithContext("path", path)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, errors.NewIOError(errors.ErrCodeStorageFailed, "Failed to initialize history schema", err).
			WithContext("path", path)
	}

	if listLimit <= 0 {
		listLimit = 50
	}
	return &Store{db: db, listLimit: listLimit}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		generation  INTEGER NOT NULL,
		phase       TEXT NOT NULL,
		match_score INTEGER NOT NULL DEFAULT 0,
		location    TEXT,
		tone        TEXT NOT NULL,
		error       TEXT,
		job_count   INTEGER NOT NULL DEFAULT 0,
		started_at  TEXT NOT NULL,
		finished_at TEXT NOT NULL
	)`)
	return err
}

// Record stores one run. Recording the same run twice keeps the latest values.
func (s *Store) Record(ctx context.Context, rec RunRecord) error {
	if s == nil {
		return nil
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (id, generation, phase, match_score, location, tone, error, job_count, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Generation, rec.Phase, rec.MatchScore, rec.Location, rec.Tone, rec.Error, rec.JobCount,
		rec.StartedAt.UTC().Format(timeLayout), rec.FinishedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return errors.NewIOError(errors.ErrCodeStorageFailed, "Failed to record run", err).WithContext("run_id", rec.ID)
	}
	return nil
}

// RecordRun stores a finished workflow run
func (s *Store) RecordRun(ctx context.Context, summary workflow.RunSummary) error {
	return s.Record(ctx, RunRecord{
		ID:         summary.RunID,
		Generation: summary.Generation,
		Phase:      string(summary.Phase),
		MatchScore: summary.MatchScore,
		Location:   summary.Location,
		Tone:       string(summary.Tone),
		Error:      summary.Error,
		JobCount:   summary.JobCount,
		StartedAt:  summary.StartedAt,
		FinishedAt: summary.FinishedAt,
	})
}

// List returns the most recent runs first. A non-positive limit uses the
// configured default.
func (s *Store) List(ctx context.Context, limit int) ([]RunRecord, error) {
	if s == nil {
		return []RunRecord{}, nil
	}
	if limit <= 0 || limit > 1000 {
		limit = s.listLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, generation, phase, match_score, location, tone, error, job_count, started_at, finished_at
		 FROM runs ORDER BY finished_at DESC, started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeStorageFailed, "Failed to list runs", err)
	}
	defer func() { _ = rows.Close() }()

	records := []RunRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, errors.NewIOError(errors.ErrCodeStorageFailed, "Failed to read run", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewIOError(errors.ErrCodeStorageFailed, "Failed to list runs", err)
	}
	return records, nil
}

func scanRecord(rows *sql.Rows) (RunRecord, error) {
	var (
		rec               RunRecord
		location, errText sql.NullString
		started, finished string
	)
	if err := rows.Scan(&rec.ID, &rec.Generation, &rec.Phase, &rec.MatchScore, &location, &rec.Tone, &errText,
		&rec.JobCount, &started, &finished); err != nil {
		return rec, err
	}
	rec.Location = location.String
	rec.Error = errText.String

	var err error
	if rec.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return rec, fmt.Errorf("started_at: %w", err)
	}
	if rec.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
		return rec, fmt.Errorf("finished_at: %w", err)
	}
	return rec, nil
}

// Close closes the database
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}
