package engine

import (
	"errors"
	"fmt"
)

// StageError represents a run-aborting failure.
//
// Stage errors include:
//   - Source unavailable: source store missing, empty, or missing relations
//   - Target unavailable: target store missing, empty, or missing schema
//   - Apply failed: the apply transaction could not complete
//   - Unresolved threshold: too many events failed to resolve
//
// Unresolved and ambiguous events are not errors; they are counted in the
// Report.
type StageError struct {
	// Code identifies the error category.
	Code StageErrorCode

	// Stage names the pipeline stage that failed (extract, resolve, apply...).
	Stage string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// StageErrorCode categorizes stage errors.
type StageErrorCode string

const (
	// ErrCodeSourceUnavailable indicates the source store cannot be read.
	ErrCodeSourceUnavailable StageErrorCode = "SOURCE_UNAVAILABLE"

	// ErrCodeTargetUnavailable indicates the target store cannot be used.
	ErrCodeTargetUnavailable StageErrorCode = "TARGET_UNAVAILABLE"

	// ErrCodeApplyFailed indicates the apply transaction rolled back.
	ErrCodeApplyFailed StageErrorCode = "APPLY_FAILED"

	// ErrCodeUnresolvedThreshold indicates the unresolved share exceeded
	// the configured limit. Raised before apply.
	ErrCodeUnresolvedThreshold StageErrorCode = "UNRESOLVED_THRESHOLD"
)

// Error implements the error interface.
func (e *StageError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Stage != "" {
		msg = fmt.Sprintf("%s (stage=%s)", msg, e.Stage)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *StageError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code StageErrorCode) bool {
	var se *StageError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsSourceUnavailable returns true if the run failed reading the source.
// Uses errors.As to handle wrapped errors.
func IsSourceUnavailable(err error) bool {
	return hasCode(err, ErrCodeSourceUnavailable)
}

// IsTargetUnavailable returns true if the target store could not be used.
func IsTargetUnavailable(err error) bool {
	return hasCode(err, ErrCodeTargetUnavailable)
}

// IsApplyFailed returns true if the apply transaction rolled back.
func IsApplyFailed(err error) bool {
	return hasCode(err, ErrCodeApplyFailed)
}

// IsUnresolvedThreshold returns true if the run aborted on the unresolved
// event policy.
func IsUnresolvedThreshold(err error) bool {
	return hasCode(err, ErrCodeUnresolvedThreshold)
}

// NewSourceError creates a StageError for an unusable source.
func NewSourceError(stage string, err error) *StageError {
	return &StageError{
		Code:    ErrCodeSourceUnavailable,
		Stage:   stage,
		Message: "source store unavailable",
		Err:     err,
	}
}

// NewTargetError creates a StageError for an unusable target.
func NewTargetError(stage string, err error) *StageError {
	return &StageError{
		Code:    ErrCodeTargetUnavailable,
		Stage:   stage,
		Message: "target store unavailable",
		Err:     err,
	}
}

// NewApplyError creates a StageError for a rolled-back apply.
func NewApplyError(err error) *StageError {
	return &StageError{
		Code:    ErrCodeApplyFailed,
		Stage:   "apply",
		Message: "apply rolled back, target unchanged",
		Err:     err,
	}
}

// NewThresholdError creates a StageError for the unresolved event policy.
func NewThresholdError(unresolved, total, limit int) *StageError {
	return &StageError{
		Code:  ErrCodeUnresolvedThreshold,
		Stage: "resolve",
		Message: fmt.Sprintf("%d of %d events unresolved (%.1f%% > %d%%)",
			unresolved, total, percent(unresolved, total), limit),
	}
}
