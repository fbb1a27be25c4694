package calibration

import (
	"fmt"
	"math"

	"github.com/jonathan/survival-calibration/internal/types"
)

// DefaultESSWarnFraction flags runs whose effective sample size is below 10% of the candidates
const DefaultESSWarnFraction = 0.1

// Settings configures one calibration run
type Settings struct {
	NumSamples int
	Prior      types.Prior
	PopSize    int
	TimeSteps  int
	Observed   types.ObservedStatistic
	// ESSWarnFraction is the ESS/NumSamples ratio below which the run is flagged.
	// Zero uses DefaultESSWarnFraction.
	ESSWarnFraction float64
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Validate checks the settings and returns the first violated precondition
func (s Settings) Validate() error {
	if s.NumSamples < 1 {
		return &ConfigurationError{Field: "num_samples", Message: fmt.Sprintf("must be at least 1, got %d", s.NumSamples)}
	}
	if !finite(s.Prior.Low) || !finite(s.Prior.High) {
		return &ConfigurationError{Field: "prior", Message: "bounds must be finite"}
	}
	if s.Prior.Low >= s.Prior.High {
		return &ConfigurationError{Field: "prior", Message: fmt.Sprintf("lower bound %v must be below upper bound %v", s.Prior.Low, s.Prior.High)}
	}
	if s.PopSize < 1 {
		return &ConfigurationError{Field: "pop_size", Message: fmt.Sprintf("must be at least 1, got %d", s.PopSize)}
	}
	if s.TimeSteps < 1 {
		return &ConfigurationError{Field: "time_steps", Message: fmt.Sprintf("must be at least 1, got %d", s.TimeSteps)}
	}
	if !finite(s.Observed.Mean) {
		return &ConfigurationError{Field: "observed_mean", Message: "must be finite"}
	}
	if !(s.Observed.StDev > 0) || !finite(s.Observed.StDev) {
		return &ConfigurationError{Field: "observed_stdev", Message: fmt.Sprintf("must be positive, got %v", s.Observed.StDev)}
	}
	if s.ESSWarnFraction < 0 || s.ESSWarnFraction > 1 {
		return &ConfigurationError{Field: "ess_warn_fraction", Message: fmt.Sprintf("must be in [0, 1], got %v", s.ESSWarnFraction)}
	}
	return nil
}

func (s Settings) essWarnFraction() float64 {
	if s.ESSWarnFraction == 0 {
		return DefaultESSWarnFraction
	}
	return s.ESSWarnFraction
}
