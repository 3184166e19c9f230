package backend

import (
	"errors"
	"fmt"
)

// ErrorKind classifies backend failures.
type ErrorKind string

const (
	KindTransport  ErrorKind = "transport"
	KindAuth       ErrorKind = "auth"
	KindConstraint ErrorKind = "constraint"
)

// Error is a failure reported by (or while talking to) the backend.
//
// Message, when set, is meant for the user and is shown verbatim.
// Every backend error is non-fatal: the operation is aborted and prior
// state is preserved.
type Error struct {
	Op      string
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + ": backend error"
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Constraint builds a constraint violation with a user-facing message.
func Constraint(op, message string) *Error {
	return &Error{Op: op, Kind: KindConstraint, Message: message}
}

// Unauthorized builds an authentication failure.
func Unauthorized(op, message string, err error) *Error {
	return &Error{Op: op, Kind: KindAuth, Message: message, Err: err}
}

// Wrap turns err into a *Error for op. Existing *Error values are returned
// as-is so the original kind and message survive; nil stays nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var be *Error
	if errors.As(err, &be) {
		return be
	}
	return &Error{Op: op, Kind: KindTransport, Err: err}
}

// UserMessage returns the message to show for err, or fallback when the
// backend did not provide one.
func UserMessage(err error, fallback string) string {
	var be *Error
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	return fallback
}
