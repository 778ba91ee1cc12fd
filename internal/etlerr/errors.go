// Package etlerr defines the error kinds shared by the extractor and the
// staged loader.
package etlerr

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrCredential        = errors.New("credential error")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientInput = errors.New("insufficient input")
	ErrConfiguration     = errors.New("configuration error")
	ErrExecution         = errors.New("execution error")
)

// Error wraps a failure with the operation and the identifier it concerns.
type Error struct {
	Kind    error  // One of the Err* kinds above
	Op      string // Operation: "resolve_channel", "ingest", "reconcile", ...
	Subject string // Channel ID, table name, record set, SQL kind
	Err     error  // Underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Subject != "" {
		msg += " " + e.Subject
	}
	msg += ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// New builds an *Error of the given kind with a formatted cause.
func New(kind error, op, subject, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Subject: subject, Err: fmt.Errorf(format, args...)}
}

// Wrap builds an *Error of the given kind around err.
func Wrap(kind error, op, subject string, err error) *Error {
	return &Error{Kind: kind, Op: op, Subject: subject, Err: err}
}
