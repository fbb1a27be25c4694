package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/survival-calibration/internal/db"
	"github.com/jonathan/survival-calibration/internal/results"
	"github.com/jonathan/survival-calibration/internal/types"
)

// PostgresStore keeps every calibration run in PostgreSQL
type PostgresStore struct {
	db       *db.DB
	location string
}

// OpenPostgres connects to databaseURL
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	database, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return nil, &Error{Op: "open", Cause: err}
	}
	return &PostgresStore{db: database, location: redact(databaseURL)}, nil
}

// SaveCalibration stores the run and its rows
func (s *PostgresStore) SaveCalibration(ctx context.Context, run types.CalibrationRun, rows []types.CalibrationRow) error {
	if err := s.db.SaveCalibration(ctx, run, rows); err != nil {
		return &Error{Op: "save", Cause: err}
	}
	return nil
}

// LoadCalibration loads the rows of runID or of the latest run
func (s *PostgresStore) LoadCalibration(ctx context.Context, runID string) ([]types.CalibrationRow, error) {
	id, err := s.resolveRunID(ctx, runID)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.GetCalibrationRows(ctx, id)
	if err != nil {
		return nil, &Error{Op: "load", Cause: err}
	}
	if err := results.ValidateWeights(rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Run returns the metadata of runID or of the latest run
func (s *PostgresStore) Run(ctx context.Context, runID string) (*types.CalibrationRun, error) {
	id, err := s.resolveRunID(ctx, runID)
	if err != nil {
		return nil, err
	}
	run, err := s.db.GetRun(ctx, id)
	if err != nil {
		return nil, &Error{Op: "load", Cause: err}
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first
func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]types.RunListing, error) {
	runs, err := s.db.ListRuns(ctx, limit)
	if err != nil {
		return nil, &Error{Op: "list", Cause: err}
	}
	return runs, nil
}

func (s *PostgresStore) resolveRunID(ctx context.Context, runID string) (uuid.UUID, error) {
	if runID == "" {
		id, err := s.db.LatestRunID(ctx)
		if err != nil {
			return uuid.Nil, &Error{Op: "load", Cause: err}
		}
		return id, nil
	}
	id, err := uuid.Parse(runID)
	if err != nil {
		return uuid.Nil, &Error{Op: "load", Cause: fmt.Errorf("invalid run id %q: %w", runID, err)}
	}
	return id, nil
}

// Location returns the database URL without credentials
func (s *PostgresStore) Location() string {
	return s.location
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
