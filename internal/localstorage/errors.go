package localstorage

import (
	"fmt"
	"net/http"
)

// Reason classifies a storage failure.
type Reason uint8

// Storage failure reasons.
const (
	ReasonInvalidInput Reason = iota + 1
	ReasonNotFound
	ReasonAlreadyExists
)

func (r Reason) String() string {
	switch r {
	case ReasonInvalidInput:
		return "invalid input"
	case ReasonNotFound:
		return "not found"
	case ReasonAlreadyExists:
		return "already exists"
	default:
		return fmt.Sprintf("reason(%d)", uint8(r))
	}
}

// Error is a storage failure delivered with backend results. Errors match
// each other with errors.Is by reason alone.
type Error struct {
	Reason  Reason
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Reason.String()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a storage error with the same reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Reason == e.Reason
}

// HTTPCode returns the status the HTTP layer answers with.
func (e *Error) HTTPCode() int {
	switch e.Reason {
	case ReasonNotFound:
		return http.StatusNotFound
	case ReasonAlreadyExists:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// WithMessage returns a copy of e with another message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Reason: e.Reason, Message: msg, Err: e.Err}
}

// Wrap returns a copy of e caused by err.
func (e *Error) Wrap(err error) *Error {
	return &Error{Reason: e.Reason, Message: e.Message, Err: err}
}

// Sentinels for errors.Is.
var (
	ErrInvalidInput  = &Error{Reason: ReasonInvalidInput}
	ErrNotFound      = &Error{Reason: ReasonNotFound}
	ErrAlreadyExists = &Error{Reason: ReasonAlreadyExists}
)

// notFound reports a missing record of the given kind.
func notFound(kind, key string) error {
	return ErrNotFound.WithMessage(fmt.Sprintf("%s %q not found", kind, key))
}

// alreadyExists reports a duplicate local id.
func alreadyExists(kind, localID string) error {
	return ErrAlreadyExists.WithMessage(fmt.Sprintf("%s %q already exists", kind, localID))
}
