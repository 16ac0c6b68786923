// Package errors provides the coded errors reported by the tree models.
//
// Usage:
//
//	// In models - return typed errors
//	if duplicate {
//	    return errors.Validationf("name %q is already taken", name)
//	}
//
//	// In callers - check with errors.Is
//	if errors.Is(err, errors.ErrStructural) {
//	    // the tree was left unchanged
//	}
//
//	// Or use the Code directly for switch statements
//	var modelErr *errors.Error
//	if errors.As(err, &modelErr) {
//	    switch modelErr.Code {
//	    case errors.CodeRestriction:
//	        ...
//	    }
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the models.
const (
	// CodeValidation: empty, too short, too long or duplicate name. Rejected
	// before any mutation.
	CodeValidation Code = "VALIDATION"
	// CodeRestriction: the linked notebook permission cache denies the change.
	CodeRestriction Code = "RESTRICTION"
	// CodeStructural: the requested tree change would break a tree invariant.
	CodeStructural Code = "STRUCTURAL"
	// CodeInternalConsistency: an expected row or record was not found.
	CodeInternalConsistency Code = "INTERNAL_CONSISTENCY"
	// CodeBackend: an asynchronous backend request failed.
	CodeBackend Code = "BACKEND"
	// CodeNotFound: the caller referenced an index or name that does not exist.
	CodeNotFound Code = "NOT_FOUND"
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeValidation:
		return http.StatusUnprocessableEntity
	case CodeRestriction:
		return http.StatusForbidden
	case CodeStructural:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeBackend:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is a model error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error  // unexported, for wrapping
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a new error with additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		cause:   e.cause,
	}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		cause:   err,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrValidation          = &Error{Code: CodeValidation, Message: "validation error"}
	ErrRestriction         = &Error{Code: CodeRestriction, Message: "restricted"}
	ErrStructural          = &Error{Code: CodeStructural, Message: "structural error"}
	ErrInternalConsistency = &Error{Code: CodeInternalConsistency, Message: "internal consistency error"}
	ErrBackend             = &Error{Code: CodeBackend, Message: "backend error"}
	ErrNotFound            = &Error{Code: CodeNotFound, Message: "not found"}
)

// CodeOf returns the code carried by err, or CodeInternalConsistency when err
// is not a model error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternalConsistency
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Restriction creates a restriction error.
func Restriction(msg string) *Error {
	return &Error{Code: CodeRestriction, Message: msg}
}

// Restrictionf creates a restriction error with formatted message.
func Restrictionf(format string, args ...any) *Error {
	return &Error{Code: CodeRestriction, Message: fmt.Sprintf(format, args...)}
}

// Structural creates a structural error.
func Structural(msg string) *Error {
	return &Error{Code: CodeStructural, Message: msg}
}

// Structuralf creates a structural error with formatted message.
func Structuralf(format string, args ...any) *Error {
	return &Error{Code: CodeStructural, Message: fmt.Sprintf(format, args...)}
}

// InternalConsistency creates an internal consistency error.
func InternalConsistency(msg string) *Error {
	return &Error{Code: CodeInternalConsistency, Message: msg}
}

// InternalConsistencyf creates an internal consistency error with formatted message.
func InternalConsistencyf(format string, args ...any) *Error {
	return &Error{Code: CodeInternalConsistency, Message: fmt.Sprintf(format, args...)}
}

// Backend wraps a failed backend request.
func Backend(msg string, cause error) *Error {
	return &Error{Code: CodeBackend, Message: msg, cause: cause}
}

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}
