package stats

import "errors"

var (
	// ErrEmptySample is returned when a statistic is requested over no values
	ErrEmptySample = errors.New("empty sample")
	// ErrInvalidAlpha is returned when a significance level is outside (0, 1)
	ErrInvalidAlpha = errors.New("significance level must be in (0, 1)")
	// ErrNegativeWeight is returned when a weight vector holds a negative entry
	ErrNegativeWeight = errors.New("negative weight")
	// ErrDegenerateSum is returned when weights sum to zero or to a non-finite value
	ErrDegenerateSum = errors.New("weights sum to zero or a non-finite value")
)
