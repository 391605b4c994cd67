package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is the machine readable error category returned to API callers.
type Code string

const (
	CodeBadRequest   Code = "BAD_REQUEST"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeInternal     Code = "INTERNAL_SERVER_ERROR"
)

// Error carries a stable code, a human readable message and the operation
// that produced it. Fields holds per-field validation detail.
type Error struct {
	Code    Code
	Message string
	Op      string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the code to the status used by the gin handlers.
func (e *Error) HTTPStatus() int {
	return StatusOf(e.Code)
}

func StatusOf(code Code) int {
	switch code {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func BadRequest(op, msg string) *Error {
	return &Error{Code: CodeBadRequest, Op: op, Message: msg}
}

func Invalid(op string, fields map[string]string) *Error {
	return &Error{Code: CodeBadRequest, Op: op, Message: "validation failed", Fields: fields}
}

func Unauthorized(op, msg string) *Error {
	return &Error{Code: CodeUnauthorized, Op: op, Message: msg}
}

func Forbidden(op, msg string) *Error {
	return &Error{Code: CodeForbidden, Op: op, Message: msg}
}

func NotFound(op, msg string) *Error {
	return &Error{Code: CodeNotFound, Op: op, Message: msg}
}

func Internal(op, msg string, cause error) *Error {
	return &Error{Code: CodeInternal, Op: op, Message: msg, Err: cause}
}

// Wrap attaches an operation name to err. Errors that already carry a code
// keep it; anything else becomes an internal error.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return &Error{Code: ae.Code, Op: op, Message: ae.Message, Fields: ae.Fields, Err: err}
	}
	return Internal(op, "unexpected error", err)
}

// CodeOf returns the code of the first *Error in the chain, or CodeInternal.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// Public returns the outermost message and fields that are safe to show to a
// caller. Internal causes are never exposed.
func Public(err error) (Code, string, map[string]string) {
	var ae *Error
	if !errors.As(err, &ae) {
		return CodeInternal, "internal server error", nil
	}
	if ae.Code == CodeInternal {
		return ae.Code, ae.Message, nil
	}
	return ae.Code, ae.Message, ae.Fields
}
