// Package types provides type definitions for structured data used throughout the survival calibration system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"time"

	"github.com/google/uuid"
)

// Prior is a uniform prior over the calibration parameter
type Prior struct {
	Low  float64 `json:"low" yaml:"low"`
	High float64 `json:"high" yaml:"high"`
}

// ObservedStatistic is the real-world summary statistic the simulator is calibrated against
type ObservedStatistic struct {
	Mean  float64 `json:"mean" yaml:"mean"`
	StDev float64 `json:"stdev" yaml:"stdev"`
}

// CandidateSample is one prior draw
type CandidateSample struct {
	ID        int
	Parameter float64
}

// WeightedSample is a candidate with its likelihood weight
type WeightedSample struct {
	ID               int
	Parameter        float64
	RawWeight        float64
	NormalizedWeight float64
}

// Row projects the sample onto its persisted form
func (s WeightedSample) Row() CalibrationRow {
	return CalibrationRow{
		CohortID:  s.ID,
		Weight:    s.NormalizedWeight,
		Parameter: s.Parameter,
	}
}

// CalibrationRow is one persisted calibration result. Field order is the column order
// of the tabular format: id, normalized weight, parameter.
type CalibrationRow struct {
	CohortID  int     `json:"cohort_id"`
	Weight    float64 `json:"weight"`
	Parameter float64 `json:"parameter"`
}

// CalibrationRun describes a calibration run and its diagnostics
type CalibrationRun struct {
	ID                  uuid.UUID         `json:"run_id"`
	Prior               Prior             `json:"prior"`
	Observed            ObservedStatistic `json:"observed"`
	NumSamples          int               `json:"num_samples"`
	PopSize             int               `json:"pop_size"`
	TimeSteps           int               `json:"time_steps"`
	Seed                uint64            `json:"seed"`
	EffectiveSampleSize float64           `json:"effective_sample_size"`
	CreatedAt           time.Time         `json:"created_at"`
}

// CalibrationSummary is the JSON artifact written by the calibrate command
type CalibrationSummary struct {
	Run             CalibrationRun `json:"run"`
	ESSFraction     float64        `json:"ess_fraction"`
	LowESS          bool           `json:"low_ess"`
	MaxWeight       float64        `json:"max_weight"`
	PosteriorMean   float64        `json:"posterior_mean"`
	ResultsLocation string         `json:"results_location"`
}

// RunListing is a short description of a stored calibration run
type RunListing struct {
	ID                  uuid.UUID `json:"id"`
	NumSamples          int       `json:"num_samples"`
	EffectiveSampleSize float64   `json:"effective_sample_size"`
	CreatedAt           time.Time `json:"created_at"`
}
