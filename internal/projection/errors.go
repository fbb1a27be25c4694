package projection

import (
	"errors"
	"fmt"
)

// ErrNotSimulated is returned when intervals are requested before Simulate
var ErrNotSimulated = errors.New("projector has not simulated any cohorts")

// ResampleCountMismatchError reports caller-provided cohort ids whose count differs
// from the number of cohorts to project
type ResampleCountMismatchError struct {
	Expected int
	Got      int
}

func (e *ResampleCountMismatchError) Error() string {
	return fmt.Sprintf("resample count mismatch: %d cohort ids supplied for %d cohorts", e.Got, e.Expected)
}

// InvalidRequestError reports an invalid projection argument
type InvalidRequestError struct {
	Field   string
	Message string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid projection request: %s: %s", e.Field, e.Message)
}
