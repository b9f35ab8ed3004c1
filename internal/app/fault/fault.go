package fault

import (
	"errors"
	"fmt"
)

// Kind classifies an operation failure for callers; no raw storage error
// crosses the service boundary.
type Kind string

const (
	InvalidRequest   Kind = "invalid_request"
	NotFound         Kind = "not_found"
	Forbidden        Kind = "forbidden"
	DuplicateName    Kind = "duplicate_name"
	InvalidOperation Kind = "invalid_operation"
	Conflict         Kind = "conflict"
	Unavailable      Kind = "unavailable"
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the classification; unclassified errors count as
// Unavailable so storage failures never leak as success.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unavailable
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
