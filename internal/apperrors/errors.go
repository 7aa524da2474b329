// Package apperrors provides coded application errors. Every failure that
// crosses a package boundary carries a stable machine-readable code so that
// handlers can map it to a transport status and callers can branch on it
// without string matching.
package apperrors

import (
	"errors"
	"fmt"
)

// Code identifies a class of failure.
type Code string

const (
	// Generic codes.
	CodeInternal     Code = "internal"
	CodeNotFound     Code = "not_found"
	CodeInvalidInput Code = "invalid_input"
	CodeConflict     Code = "conflict"
	CodeUnauthorized Code = "unauthorized"

	// Workflow codes. Each represents a data or authorization defect that
	// requires human correction; none are retried automatically.
	CodeUnauthorizedAction    Code = "unauthorized_action"
	CodeNoApproverConfigured  Code = "no_approver_configured"
	CodeAmbiguousApprover     Code = "ambiguous_approver"
	CodeInvalidRedirectTarget Code = "invalid_redirect_target"
	CodeMissingVendorData     Code = "missing_vendor_data"
	CodeDuplicateAction       Code = "duplicate_action"
	CodeIllegalTransition     Code = "illegal_transition"
)

// Error is a coded error with an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a code and message, preserving the cause chain.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// NotFound reports a missing resource.
func NotFound(resource, id string) *Error {
	return Newf(CodeNotFound, "%s %q not found", resource, id)
}

// InvalidInput reports a rejected input field.
func InvalidInput(field, message string) *Error {
	return Newf(CodeInvalidInput, "%s: %s", field, message)
}

// CodeOf extracts the code from an error chain, or CodeInternal when the
// error carries no code.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}
