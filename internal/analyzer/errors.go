package analyzer

import (
	"errors"
	"fmt"
)

var (
	// ErrAnalysisFailed hides upstream causes from clients; the cause is logged.
	ErrAnalysisFailed = errors.New("analysis failed")
	ErrNotFound       = errors.New("analysis not found")
)

// ValidationError is a request the caller can fix.
type ValidationError struct {
	Code    string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(code, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}
