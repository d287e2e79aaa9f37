// -----------------------------------------------------------------------
// Errors - Failure taxonomy shared by the queue worker and job pipeline
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"unicode/utf8"
)

// ConfigurationError is fatal and raised before any batch work begins.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error (%s): %v", e.Field, e.Err)
	}
	return fmt.Sprintf("configuration error: %s is required", e.Field)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// FetchError wraps a failed candidate or claim query. Op is "fetch" or "claim".
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ValidationError fails a single job before the pipeline runs.
type ValidationError struct {
	JobID  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// PipelineError fails a single job after it was marked running.
type PipelineError struct {
	JobID string
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	if e.Stage == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// CountError is a failed remaining/completed count. Callers log it and report 0.
type CountError struct {
	Which string
	Err   error
}

func (e *CountError) Error() string {
	return fmt.Sprintf("count %s failed: %v", e.Which, e.Err)
}

func (e *CountError) Unwrap() error { return e.Err }

// TruncateError cuts msg to at most max runes.
func TruncateError(msg string, max int) string {
	if max <= 0 || utf8.RuneCountInString(msg) <= max {
		return msg
	}
	runes := []rune(msg)
	return string(runes[:max])
}
