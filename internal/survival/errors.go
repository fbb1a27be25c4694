package survival

import "fmt"

// InputError reports an invalid cohort specification or time horizon
type InputError struct {
	CohortID int
	Message  string
}

func (e *InputError) Error() string {
	if e.CohortID >= 0 {
		return fmt.Sprintf("invalid simulation input for cohort %d: %s", e.CohortID, e.Message)
	}
	return fmt.Sprintf("invalid simulation input: %s", e.Message)
}
