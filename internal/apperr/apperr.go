// Package apperr provides the core's error taxonomy (§7): typed errors
// that carry a Kind for HTTP status mapping, wrapping an underlying cause
// with fmt.Errorf("...: %w", err) at each boundary crossing.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for HTTP status mapping and retry policy.
type Kind string

const (
	KindIngestion        Kind = "ingestion_error"
	KindPersistence       Kind = "persistence_error"
	KindOCRFailed          Kind = "ocr_failed"
	KindExtractionFailed    Kind = "extraction_failed"
	KindSchemaViolation     Kind = "extraction_schema_violation"
	KindEmbeddingFailed     Kind = "embedding_failed"
	KindVectorUpsertFailed  Kind = "vector_upsert_failed"
	KindEntityMergeConflict Kind = "entity_merge_conflict"
	KindGrantSupersession   Kind = "grant_supersession_conflict"
	KindCorrectionApply     Kind = "correction_apply_failed"
	KindStepTimeout         Kind = "step_timeout"
	KindDeadlineExceeded    Kind = "deadline_exceeded"
	KindNotFound            Kind = "not_found"
	KindValidation          Kind = "validation_error"
)

// retryable is the subset of kinds the Workflow Engine's retry policy
// should treat as transient rather than terminal.
var retryable = map[Kind]bool{
	KindOCRFailed:         true,
	KindExtractionFailed:  true,
	KindEmbeddingFailed:   true,
	KindVectorUpsertFailed: true,
	KindStepTimeout:       true,
	KindDeadlineExceeded:  true,
}

// Error is a typed, wrapped error carrying a Kind.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error with no wrapped cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap constructs an *Error wrapping cause, or returns nil if cause is nil.
func Wrap(kind Kind, msg string, cause error) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, else "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether err's Kind is one the Workflow Engine's
// retry policy should retry rather than terminate immediately.
func IsRetryable(err error) bool {
	return retryable[KindOf(err)]
}

// NotFound builds a KindNotFound error for the given resource.
func NotFound(resource, id string) *Error {
	return New(KindNotFound, fmt.Sprintf("%s %q not found", resource, id))
}

// Validation builds a KindValidation error.
func Validation(msg string) *Error {
	return New(KindValidation, msg)
}
