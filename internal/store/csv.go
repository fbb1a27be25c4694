package store

import (
	"context"

	"github.com/jonathan/survival-calibration/internal/results"
	"github.com/jonathan/survival-calibration/internal/types"
)

// CSVStore keeps one calibration as a results table on disk
type CSVStore struct {
	path string
}

// NewCSVStore creates a store backed by the CSV file at path
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

// SaveCalibration writes the rows as a results table; run metadata is not part of the format
func (s *CSVStore) SaveCalibration(_ context.Context, _ types.CalibrationRun, rows []types.CalibrationRow) error {
	if err := results.WriteFile(s.path, rows); err != nil {
		return &Error{Op: "save", Cause: err}
	}
	return nil
}

// LoadCalibration reads the results table
func (s *CSVStore) LoadCalibration(_ context.Context, _ string) ([]types.CalibrationRow, error) {
	return results.ReadFile(s.path)
}

// Location returns the file path
func (s *CSVStore) Location() string {
	return s.path
}

// Close is a no-op
func (s *CSVStore) Close() error {
	return nil
}
