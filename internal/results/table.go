// Package results reads and writes the calibration results table: a CSV file with one
// header row and one (cohort id, normalized weight, parameter) row per candidate.
package results

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jonathan/survival-calibration/internal/types"
)

// Header is the header row of the results table; column order is fixed
var Header = []string{"Cohort ID", "Likelihood Weights", "Mortality Prob"}

const (
	colCohortID = iota
	colWeight
	colParameter
)

// WeightSumTolerance is the allowed deviation of the weight column sum from 1
const WeightSumTolerance = 1e-6

// Write encodes rows as CSV, preceded by Header
func Write(w io.Writer, rows []types.CalibrationRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			colCohortID:  strconv.Itoa(row.CohortID),
			colWeight:    strconv.FormatFloat(row.Weight, 'g', -1, 64),
			colParameter: strconv.FormatFloat(row.Parameter, 'g', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row for cohort %d: %w", row.CohortID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes rows to path, creating the parent directory if needed
func WriteFile(path string, rows []types.CalibrationRow) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create results file %s: %w", path, err)
	}
	if err := Write(f, rows); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write results file %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close results file %s: %w", path, err)
	}
	return nil
}

// Read decodes a results table. The header row is required but its names are not checked.
// The weight column must sum to 1 within WeightSumTolerance.
func Read(r io.Reader) ([]types.CalibrationRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)
	cr.TrimLeadingSpace = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{Message: "missing header row"}
		}
		return nil, csvParseError(err)
	}

	var rows []types.CalibrationRow
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, csvParseError(err)
		}
		line, _ := cr.FieldPos(0)

		row, err := parseRecord(record)
		if err != nil {
			return nil, &ParseError{Line: line, Message: "invalid row", Cause: err}
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, &ParseError{Message: "table has no rows"}
	}
	if err := ValidateWeights(rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// ReadFile reads a results table from path
func ReadFile(path string) ([]types.CalibrationRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open results file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	rows, err := Read(f)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}
		return nil, err
	}
	return rows, nil
}

// ValidateWeights checks that weights are finite, non-negative and sum to 1
func ValidateWeights(rows []types.CalibrationRow) error {
	sum := 0.0
	for _, row := range rows {
		if math.IsNaN(row.Weight) || math.IsInf(row.Weight, 0) || row.Weight < 0 {
			return &ParseError{Message: fmt.Sprintf("cohort %d has invalid weight %v", row.CohortID, row.Weight)}
		}
		sum += row.Weight
	}
	if math.Abs(sum-1) > WeightSumTolerance {
		return &ParseError{Message: fmt.Sprintf("weights sum to %v, expected 1 within %v", sum, WeightSumTolerance)}
	}
	return nil
}

func parseRecord(record []string) (types.CalibrationRow, error) {
	id, err := strconv.Atoi(record[colCohortID])
	if err != nil {
		// Some writers emit integral ids as floats ("3.0").
		f, ferr := strconv.ParseFloat(record[colCohortID], 64)
		if ferr != nil || f != math.Trunc(f) {
			return types.CalibrationRow{}, fmt.Errorf("cohort id %q is not an integer", record[colCohortID])
		}
		if math.Abs(f) > math.MaxInt32 {
			return types.CalibrationRow{}, fmt.Errorf("cohort id %q is out of range", record[colCohortID])
		}
		id = int(f)
	}
	weight, err := strconv.ParseFloat(record[colWeight], 64)
	if err != nil {
		return types.CalibrationRow{}, fmt.Errorf("weight %q: %w", record[colWeight], err)
	}
	param, err := strconv.ParseFloat(record[colParameter], 64)
	if err != nil {
		return types.CalibrationRow{}, fmt.Errorf("parameter %q: %w", record[colParameter], err)
	}
	return types.CalibrationRow{CohortID: id, Weight: weight, Parameter: param}, nil
}

func csvParseError(err error) error {
	var ce *csv.ParseError
	if errors.As(err, &ce) {
		return &ParseError{Line: ce.Line, Message: "malformed table", Cause: ce.Err}
	}
	return &ParseError{Message: "failed to read table", Cause: err}
}
