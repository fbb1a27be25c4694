package calibration

import (
	"errors"
	"fmt"
)

// ErrAlreadySampled is returned when SamplePosterior is called twice on one Calibrator
var ErrAlreadySampled = errors.New("calibrator has already sampled the posterior")

// ConfigurationError reports an invalid calibration setting, detected before any simulation
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// DegenerateWeightsError reports likelihood weights that cannot be normalized
type DegenerateWeightsError struct {
	Sum   float64
	Cause error
}

func (e *DegenerateWeightsError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("degenerate likelihood weights (sum=%v): %v", e.Sum, e.Cause)
	}
	return fmt.Sprintf("degenerate likelihood weights (sum=%v)", e.Sum)
}

func (e *DegenerateWeightsError) Unwrap() error {
	return e.Cause
}
