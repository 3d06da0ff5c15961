// Package apperr defines the error kinds surfaced by the sync engine to its callers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error so that callers can react to it without parsing messages.
type Kind int

// These constants are the error kinds the core reports.
const (
	Unknown Kind = iota
	Unauthenticated
	Offline
	ValidationFailed
	WriteFailed
	SubscriptionFailed
	NotFound
	DecodeFailed
)

var kindNames = map[Kind]string{
	Unknown:            "unknown",
	Unauthenticated:    "unauthenticated",
	Offline:            "offline",
	ValidationFailed:   "validation failed",
	WriteFailed:        "write failed",
	SubscriptionFailed: "subscription failed",
	NotFound:           "not found",
	DecodeFailed:       "decode failed",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("kind(%d)", int(k))
}

// Error lets a bare Kind be used as a target for errors.Is.
func (k Kind) Error() string {
	return k.String()
}

// Error is an error tagged with a Kind and the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// New returns an *Error of the given kind. err may be nil.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf returns an *Error of the given kind wrapping a formatted message.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the same Kind, or an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case Kind:
		return e.Kind == t
	case *Error:
		return e.Kind == t.Kind
	}

	return false
}

// KindOf returns the Kind of the first *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return Unknown
}
