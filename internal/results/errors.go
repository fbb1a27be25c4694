package results

import "fmt"

// ParseError reports a malformed or inconsistent calibration results table
type ParseError struct {
	Path    string
	Line    int
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	loc := e.Path
	if loc == "" {
		loc = "calibration results"
	}
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", loc, e.Line)
	}
	if e.Cause != nil {
		return fmt.Sprintf("parse error: %s: %s: %v", loc, e.Message, e.Cause)
	}
	return fmt.Sprintf("parse error: %s: %s", loc, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}
