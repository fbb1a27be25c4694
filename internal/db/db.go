// Package db provides PostgreSQL storage for calibration runs and their weighted samples.
package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/survival-calibration/internal/types"
)

// ErrRunNotFound is returned when no calibration run matches the lookup
var ErrRunNotFound = errors.New("calibration run not found")

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database and ensures the schema exists
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// SaveCalibration stores a run and all of its rows in one transaction
func (db *DB) SaveCalibration(ctx context.Context, run types.CalibrationRun, rows []types.CalibrationRow) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO calibration_runs
		   (id, prior_low, prior_high, observed_mean, observed_stdev,
		    num_samples, pop_size, time_steps, seed, effective_sample_size, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		run.ID, run.Prior.Low, run.Prior.High, run.Observed.Mean, run.Observed.StDev,
		run.NumSamples, run.PopSize, run.TimeSteps, int64(run.Seed), run.EffectiveSampleSize, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert calibration run: %w", err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"calibration_samples"},
		[]string{"run_id", "cohort_id", "weight", "parameter"},
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			return []any{run.ID, rows[i].CohortID, rows[i].Weight, rows[i].Parameter}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to copy calibration samples: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit calibration: %w", err)
	}
	return nil
}

// LatestRunID returns the id of the most recently created run
func (db *DB) LatestRunID(ctx context.Context) (uuid.UUID, error) {
	var id uuid.UUID
	err := db.pool.QueryRow(ctx,
		`SELECT id FROM calibration_runs ORDER BY created_at DESC LIMIT 1`,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrRunNotFound
		}
		return uuid.Nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return id, nil
}

// GetRun retrieves a calibration run by ID
func (db *DB) GetRun(ctx context.Context, runID uuid.UUID) (*types.CalibrationRun, error) {
	var run types.CalibrationRun
	var seed int64
	err := db.pool.QueryRow(ctx,
		`SELECT id, prior_low, prior_high, observed_mean, observed_stdev,
		        num_samples, pop_size, time_steps, seed, effective_sample_size, created_at
		 FROM calibration_runs WHERE id = $1`,
		runID,
	).Scan(&run.ID, &run.Prior.Low, &run.Prior.High, &run.Observed.Mean, &run.Observed.StDev,
		&run.NumSamples, &run.PopSize, &run.TimeSteps, &seed, &run.EffectiveSampleSize, &run.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	run.Seed = uint64(seed)
	return &run, nil
}

// ListRuns retrieves recent calibration runs
func (db *DB) ListRuns(ctx context.Context, limit int) ([]types.RunListing, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, num_samples, effective_sample_size, created_at
		 FROM calibration_runs ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	runs, err := pgx.CollectRows(rows, pgx.RowToStructByPos[types.RunListing])
	if err != nil {
		return nil, fmt.Errorf("failed to scan runs: %w", err)
	}
	return runs, nil
}

// GetCalibrationRows retrieves the rows of a run ordered by cohort id
func (db *DB) GetCalibrationRows(ctx context.Context, runID uuid.UUID) ([]types.CalibrationRow, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT cohort_id, weight, parameter
		 FROM calibration_samples WHERE run_id = $1 ORDER BY cohort_id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query calibration samples: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByPos[types.CalibrationRow])
	if err != nil {
		return nil, fmt.Errorf("failed to scan calibration samples: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrRunNotFound
	}
	return out, nil
}
