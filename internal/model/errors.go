package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced by the coordinator. Each kind
// is produced in exactly one place and rendered uniformly by the API.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindNotFound      ErrorKind = "not_found"
	KindConflict      ErrorKind = "conflict"
	KindState         ErrorKind = "state"
	KindUnknownWorker ErrorKind = "unknown_worker"
)

// Error carries a kind plus a single-sentence human-readable message.
// The message is what API clients see verbatim.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string { return e.Message }

// Errorf builds a classified error.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or "" when err carries no kind.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
