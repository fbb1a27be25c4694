package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/jonathan/survival-calibration/internal/results"
	"github.com/jonathan/survival-calibration/internal/types"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS calibration_runs (
    id                    TEXT PRIMARY KEY,
    prior_low             REAL NOT NULL,
    prior_high            REAL NOT NULL,
    observed_mean         REAL NOT NULL,
    observed_stdev        REAL NOT NULL,
    num_samples           INTEGER NOT NULL,
    pop_size              INTEGER NOT NULL,
    time_steps            INTEGER NOT NULL,
    seed                  INTEGER NOT NULL,
    effective_sample_size REAL NOT NULL,
    created_at            TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS calibration_samples (
    run_id    TEXT NOT NULL REFERENCES calibration_runs(id) ON DELETE CASCADE,
    cohort_id INTEGER NOT NULL,
    weight    REAL NOT NULL,
    parameter REAL NOT NULL,
    PRIMARY KEY (run_id, cohort_id)
);
`

// SQLiteStore keeps every calibration run in a local SQLite database
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the database at path
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, &Error{Op: "open", Cause: errors.New("empty sqlite path")}
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &Error{Op: "open", Cause: fmt.Errorf("failed to create directory %s: %w", dir, err)}
		}
	}

	database, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, &Error{Op: "open", Cause: fmt.Errorf("failed to open database: %w", err)}
	}
	database.SetMaxOpenConns(1) // SQLite works best with single writer

	if _, err := database.ExecContext(ctx, sqliteSchema); err != nil {
		_ = database.Close()
		return nil, &Error{Op: "open", Cause: fmt.Errorf("failed to initialize schema: %w", err)}
	}
	return &SQLiteStore{db: database, path: path}, nil
}

// SaveCalibration stores the run and its rows in one transaction
func (s *SQLiteStore) SaveCalibration(ctx context.Context, run types.CalibrationRun, rows []types.CalibrationRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &Error{Op: "save", Cause: fmt.Errorf("failed to begin transaction: %w", err)}
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO calibration_runs
		   (id, prior_low, prior_high, observed_mean, observed_stdev,
		    num_samples, pop_size, time_steps, seed, effective_sample_size, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.Prior.Low, run.Prior.High, run.Observed.Mean, run.Observed.StDev,
		run.NumSamples, run.PopSize, run.TimeSteps, int64(run.Seed), run.EffectiveSampleSize,
		run.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return &Error{Op: "save", Cause: fmt.Errorf("failed to insert calibration run: %w", err)}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO calibration_samples (run_id, cohort_id, weight, parameter) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return &Error{Op: "save", Cause: fmt.Errorf("failed to prepare sample insert: %w", err)}
	}
	defer func() { _ = stmt.Close() }()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, run.ID.String(), row.CohortID, row.Weight, row.Parameter); err != nil {
			return &Error{Op: "save", Cause: fmt.Errorf("failed to insert sample %d: %w", row.CohortID, err)}
		}
	}

	if err := tx.Commit(); err != nil {
		return &Error{Op: "save", Cause: fmt.Errorf("failed to commit calibration: %w", err)}
	}
	return nil
}

// LoadCalibration loads the rows of runID or of the latest run
func (s *SQLiteStore) LoadCalibration(ctx context.Context, runID string) ([]types.CalibrationRow, error) {
	id, err := s.resolveRunID(ctx, runID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT cohort_id, weight, parameter FROM calibration_samples WHERE run_id = ? ORDER BY cohort_id`,
		id)
	if err != nil {
		return nil, &Error{Op: "load", Cause: fmt.Errorf("failed to query calibration samples: %w", err)}
	}
	defer func() { _ = rows.Close() }()

	var out []types.CalibrationRow
	for rows.Next() {
		var row types.CalibrationRow
		if err := rows.Scan(&row.CohortID, &row.Weight, &row.Parameter); err != nil {
			return nil, &Error{Op: "load", Cause: fmt.Errorf("failed to scan calibration sample: %w", err)}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Op: "load", Cause: err}
	}
	if len(out) == 0 {
		return nil, &Error{Op: "load", Cause: ErrRunNotFound}
	}
	if err := results.ValidateWeights(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Run returns the metadata of runID or of the latest run
func (s *SQLiteStore) Run(ctx context.Context, runID string) (*types.CalibrationRun, error) {
	id, err := s.resolveRunID(ctx, runID)
	if err != nil {
		return nil, err
	}

	var (
		run       types.CalibrationRun
		rawID     string
		seed      int64
		createdAt string
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT id, prior_low, prior_high, observed_mean, observed_stdev,
		        num_samples, pop_size, time_steps, seed, effective_sample_size, created_at
		 FROM calibration_runs WHERE id = ?`,
		id,
	).Scan(&rawID, &run.Prior.Low, &run.Prior.High, &run.Observed.Mean, &run.Observed.StDev,
		&run.NumSamples, &run.PopSize, &run.TimeSteps, &seed, &run.EffectiveSampleSize, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &Error{Op: "load", Cause: ErrRunNotFound}
		}
		return nil, &Error{Op: "load", Cause: fmt.Errorf("failed to get run: %w", err)}
	}
	if run.ID, err = uuid.Parse(rawID); err != nil {
		return nil, &Error{Op: "load", Cause: fmt.Errorf("corrupt run id %q: %w", rawID, err)}
	}
	if run.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, &Error{Op: "load", Cause: fmt.Errorf("corrupt created_at %q: %w", createdAt, err)}
	}
	run.Seed = uint64(seed)
	return &run, nil
}

// ListRuns returns up to limit runs, newest first
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]types.RunListing, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, num_samples, effective_sample_size, created_at
		 FROM calibration_runs ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit)
	if err != nil {
		return nil, &Error{Op: "list", Cause: fmt.Errorf("failed to list runs: %w", err)}
	}
	defer func() { _ = rows.Close() }()

	var runs []types.RunListing
	for rows.Next() {
		var (
			r         types.RunListing
			rawID     string
			createdAt string
		)
		if err := rows.Scan(&rawID, &r.NumSamples, &r.EffectiveSampleSize, &createdAt); err != nil {
			return nil, &Error{Op: "list", Cause: fmt.Errorf("failed to scan run: %w", err)}
		}
		if r.ID, err = uuid.Parse(rawID); err != nil {
			return nil, &Error{Op: "list", Cause: fmt.Errorf("corrupt run id %q: %w", rawID, err)}
		}
		if r.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, &Error{Op: "list", Cause: fmt.Errorf("corrupt created_at %q: %w", createdAt, err)}
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Op: "list", Cause: err}
	}
	return runs, nil
}

func (s *SQLiteStore) resolveRunID(ctx context.Context, runID string) (string, error) {
	if runID != "" {
		if _, err := uuid.Parse(runID); err != nil {
			return "", &Error{Op: "load", Cause: fmt.Errorf("invalid run id %q: %w", runID, err)}
		}
		return runID, nil
	}

	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM calibration_runs ORDER BY created_at DESC, rowid DESC LIMIT 1`).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", &Error{Op: "load", Cause: ErrRunNotFound}
		}
		return "", &Error{Op: "load", Cause: fmt.Errorf("failed to get latest run: %w", err)}
	}
	return id, nil
}

// Location returns the database path
func (s *SQLiteStore) Location() string {
	return "sqlite://" + s.path
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
