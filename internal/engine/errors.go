package engine

import (
	"errors"
	"fmt"
)

// RuntimeError is an infrastructure failure around a pass.
//
// Evaluation problems are diagnostics on the result, never errors. Runtime
// errors cover what happens outside the pure pass:
//   - Registry rejected a mutation
//   - Evaluation log write failed
//   - Engine stopped before a trigger could be queued
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// PassID identifies the affected pass.
	PassID string

	// FieldID identifies the affected field, if any.
	FieldID string

	// Err is the underlying cause.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeApplyRejected indicates the registry refused a mutation.
	ErrCodeApplyRejected RuntimeErrorCode = "APPLY_REJECTED"

	// ErrCodeRecordFailed indicates the evaluation log write failed.
	ErrCodeRecordFailed RuntimeErrorCode = "RECORD_FAILED"

	// ErrCodeStopped indicates the trigger queue is closed.
	ErrCodeStopped RuntimeErrorCode = "ENGINE_STOPPED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.PassID != "" && e.FieldID != "" {
		msg = fmt.Sprintf("%s (pass=%s, field=%s)", msg, e.PassID, e.FieldID)
	} else if e.PassID != "" {
		msg = fmt.Sprintf("%s (pass=%s)", msg, e.PassID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsApplyError returns true if the error is a rejected registry write.
// Uses errors.As to handle wrapped and joined errors.
func IsApplyError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeApplyRejected
	}
	return false
}

// IsStoppedError returns true if the engine was stopped.
func IsStoppedError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeStopped
	}
	return false
}

func newApplyError(passID, fieldID string, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeApplyRejected,
		Message: "registry rejected mutation",
		PassID:  passID,
		FieldID: fieldID,
		Err:     err,
	}
}

func newRecordError(passID string, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeRecordFailed,
		Message: "write evaluation log",
		PassID:  passID,
		Err:     err,
	}
}
