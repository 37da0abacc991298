package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindNotFound          ErrorKind = "not_found"
	KindPermission        ErrorKind = "permission"
	KindInsufficientInput ErrorKind = "insufficient_input"
	KindNoClusters        ErrorKind = "no_clusters"
	KindGeneration        ErrorKind = "generation"
	KindGenerationFailed  ErrorKind = "generation_failed"
	KindPersistence       ErrorKind = "persistence"
)

// Error is the typed error returned across the pipeline.
type Error struct {
	Kind    ErrorKind
	Message string
	Count   int // item count for insufficient_input
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is, or wraps, a pipeline error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the kind of err, or the empty kind when err is not a pipeline error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func NewValidationError(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

func NewNotFoundError(what, id string) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %q not found", what, id)}
}

func NewPermissionError(msg string) error {
	return &Error{Kind: KindPermission, Message: msg}
}

// NewInsufficientInputError is returned when fewer than the minimum source items are available.
func NewInsufficientInputError(count, minimum int) error {
	return &Error{
		Kind:    KindInsufficientInput,
		Message: fmt.Sprintf("found %d flagged items, need at least %d", count, minimum),
		Count:   count,
	}
}

func NewNoClustersError() error {
	return &Error{Kind: KindNoClusters, Message: "no clusters could be formed from the flagged items"}
}

// NewGenerationError wraps a failed or unparseable generative call.
func NewGenerationError(msg string, err error) error {
	return &Error{Kind: KindGeneration, Message: msg, Err: err}
}

// NewGenerationFailedError is returned when every cluster of a run failed.
func NewGenerationFailedError(attempted int, err error) error {
	return &Error{
		Kind:    KindGenerationFailed,
		Message: fmt.Sprintf("all %d clusters failed to produce a proposal", attempted),
		Err:     err,
	}
}

func NewPersistenceError(msg string, err error) error {
	return &Error{Kind: KindPersistence, Message: msg, Err: err}
}
