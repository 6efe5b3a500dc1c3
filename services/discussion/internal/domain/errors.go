package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error leaving the comment service matches exactly one
// of these with errors.Is.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrConflictExhausted = errors.New("conflict retries exhausted")
	ErrUnavailable       = errors.New("store unavailable")
)

var kinds = []error{
	ErrInvalidInput,
	ErrNotFound,
	ErrPermissionDenied,
	ErrConflictExhausted,
	ErrUnavailable,
}

// Error carries the kind, the failing operation and an optional cause.
type Error struct {
	Kind   error
	Op     string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Detail != "" {
		msg = msg + ": " + e.Detail
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

// E builds a kind error without a cause.
func E(kind error, op, detail string) error {
	return &Error{Kind: kind, Op: op, Detail: detail}
}

// Wrap attaches a kind to a lower-level cause.
func Wrap(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind sentinel err matches, or nil when err is untyped.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Typed attributes err to op while keeping its kind. Errors already raised
// by op are returned unchanged; untyped errors become ErrUnavailable, so no
// untyped error crosses the service boundary.
func Typed(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) && de.Op == op {
		return err
	}
	kind := KindOf(err)
	if kind == nil {
		kind = ErrUnavailable
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Retryable reports whether the caller may retry the same request.
func Retryable(err error) bool {
	return errors.Is(err, ErrConflictExhausted) || errors.Is(err, ErrUnavailable)
}
