// Package store persists calibration results behind one interface. The backend is
// chosen from a DSN: postgres:// and postgresql:// URLs use PostgreSQL, sqlite:// uses
// an SQLite file, and anything else is treated as the path of a CSV results table.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/jonathan/survival-calibration/internal/db"
	"github.com/jonathan/survival-calibration/internal/types"
)

// ErrRunNotFound is returned when a requested calibration run does not exist
var ErrRunNotFound = db.ErrRunNotFound

// Store saves and loads calibration results
type Store interface {
	SaveCalibration(ctx context.Context, run types.CalibrationRun, rows []types.CalibrationRow) error
	// LoadCalibration returns the rows of runID, or of the latest run when runID is empty.
	// File-backed stores hold a single calibration and ignore runID.
	LoadCalibration(ctx context.Context, runID string) ([]types.CalibrationRow, error)
	// Location describes where results are stored, for logs and summaries
	Location() string
	Close() error
}

// RunCatalog is implemented by stores that keep more than one calibration run
type RunCatalog interface {
	// Run returns the metadata of runID, or of the latest run when runID is empty
	Run(ctx context.Context, runID string) (*types.CalibrationRun, error)
	// ListRuns returns up to limit runs, newest first
	ListRuns(ctx context.Context, limit int) ([]types.RunListing, error)
}

// Error wraps a backend failure with the operation that caused it
type Error struct {
	Op    string
	Cause error
}

func (e *Error) Error() string {
	return "store " + e.Op + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Open returns the Store selected by dsn
func Open(ctx context.Context, dsn string) (Store, error) {
	switch {
	case dsn == "":
		return nil, &Error{Op: "open", Cause: errors.New("empty results location")}
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return OpenPostgres(ctx, dsn)
	case strings.HasPrefix(dsn, "sqlite://"):
		return OpenSQLite(ctx, strings.TrimPrefix(dsn, "sqlite://"))
	default:
		return NewCSVStore(dsn), nil
	}
}
