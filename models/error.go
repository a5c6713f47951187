package models

import (
	"errors"
	"fmt"
)

const ErrorTitle = "Walk Coordinator Error"

const (
	ErrorMessageFmt_Backend string = "%s failed against the backend: %v"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrValidation         = errors.New("invalid input")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrForbidden          = errors.New("forbidden")
	ErrRateLimited        = errors.New("rate limited")
)

// ConflictError reports that the target exists but its current state did not satisfy the verb's precondition.
type ConflictError struct {
	Verb   Verb
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s", e.Verb, e.Reason)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrPreconditionFailed
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if len(e.Field) == 0 {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// BackendError wraps a transport or storage failure, keeping the original cause.
type BackendError struct {
	Op  string
	Err error
}

func NewBackendError(op string, err error) *BackendError {
	return &BackendError{Op: op, Err: err}
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func (e *BackendError) Is(target error) bool {
	return target == ErrBackendUnavailable
}

type ErrorKind string

const (
	ErrorKind_None               ErrorKind = ""
	ErrorKind_NotFound           ErrorKind = "NOT_FOUND"
	ErrorKind_PreconditionFailed ErrorKind = "PRECONDITION_FAILED"
	ErrorKind_Validation         ErrorKind = "VALIDATION_ERROR"
	ErrorKind_Forbidden          ErrorKind = "FORBIDDEN"
	ErrorKind_RateLimited        ErrorKind = "RATE_LIMITED"
	ErrorKind_BackendUnavailable ErrorKind = "BACKEND_UNAVAILABLE"
)

// KindOf classifies an error into the taxonomy. Unclassified errors count as backend failures.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKind_None
	case errors.Is(err, ErrNotFound):
		return ErrorKind_NotFound
	case errors.Is(err, ErrPreconditionFailed):
		return ErrorKind_PreconditionFailed
	case errors.Is(err, ErrValidation):
		return ErrorKind_Validation
	case errors.Is(err, ErrForbidden):
		return ErrorKind_Forbidden
	case errors.Is(err, ErrRateLimited):
		return ErrorKind_RateLimited
	default:
		return ErrorKind_BackendUnavailable
	}
}
