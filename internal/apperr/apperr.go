// Package apperr defines the typed error taxonomy shared by the services and
// the API layer. Every user-visible failure carries a stable error code; the
// API layer maps the types to HTTP statuses.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError is a caller fault: missing or malformed input.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Validation builds a ValidationError with the given code and message.
func Validation(code, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError indicates an unknown report, job, or supplier record.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// NotFound builds a NotFoundError for the given entity kind and id.
func NotFound(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// ExtractionFailure is a recoverable extraction problem. It is absorbed near
// its source and encoded as low-confidence evidence; it must not fail the
// surrounding request.
type ExtractionFailure struct {
	Step   string
	Reason string
	Err    error
}

func (e *ExtractionFailure) Error() string {
	return fmt.Sprintf("extraction failed at %s: %s", e.Step, e.Reason)
}

func (e *ExtractionFailure) Unwrap() error { return e.Err }

// Extraction wraps err as a recoverable extraction failure for a pipeline step.
func Extraction(step, reason string, err error) *ExtractionFailure {
	return &ExtractionFailure{Step: step, Reason: reason, Err: err}
}

// PipelineFailure is unrecoverable for the current attempt. It is recorded on
// the report (error code + step tag) and surfaced as a structured status, not
// as an exception to the caller.
type PipelineFailure struct {
	Code string
	Step string
	Err  error
}

func (e *PipelineFailure) Error() string {
	return fmt.Sprintf("pipeline failure %s at %s: %v", e.Code, e.Step, e.Err)
}

func (e *PipelineFailure) Unwrap() error { return e.Err }

// Pipeline wraps err as an unrecoverable failure with a code and step tag.
func Pipeline(code, step string, err error) *PipelineFailure {
	return &PipelineFailure{Code: code, Step: step, Err: err}
}

// ConflictError signals a cache-key creation race. It is resolved internally by
// a single re-read and never surfaced to the caller.
type ConflictError struct {
	Key string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on key %s", e.Key)
}

// Conflict builds a ConflictError for the given cache key.
func Conflict(key string) *ConflictError {
	return &ConflictError{Key: key}
}

// CooldownError rejects a rate-limited action and carries the remediation data.
type CooldownError struct {
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown active, retry after %s", e.RetryAfter)
}

// Cooldown builds a CooldownError with the remaining wait.
func Cooldown(retryAfter time.Duration) *CooldownError {
	return &CooldownError{RetryAfter: retryAfter}
}

// IsConflict reports whether err is (or wraps) a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
