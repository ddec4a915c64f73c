// Package brainerr defines the typed errors services emit and the HTTP
// layer maps mechanically to status codes.
package brainerr

import (
	"errors"
	"fmt"

	"github.com/CLIAIBRAIN/internal/types"
)

// Kind is the error taxonomy shared by all services
type Kind string

const (
	KindValidation         Kind = "validation"
	KindNotFound           Kind = "not_found"
	KindAmbiguousMatch     Kind = "ambiguous_match"
	KindConflict           Kind = "conflict"
	KindBackendUnavailable Kind = "backend_unavailable"
	KindIo                 Kind = "io"
	KindInternal           Kind = "internal"
)

// FieldError describes one invalid request field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Suggestion is one candidate for an ambiguous title match
type Suggestion struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Path  string `json:"path"`
}

// Error carries the kind plus whatever payload the kind needs. Conflict
// errors carry the existing claim; ambiguous matches carry up to five
// suggestions.
type Error struct {
	Kind        Kind
	Message     string
	Details     []FieldError
	Suggestions []Suggestion
	Claim       *types.ClaimInfo
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation builds a 400-class error with optional field details
func Validation(msg string, details ...FieldError) *Error {
	return &Error{Kind: KindValidation, Message: msg, Details: details}
}

// Validationf builds a validation error from a format string
func Validationf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a 404-class error
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// NotFoundf builds a not-found error from a format string
func NotFoundf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Ambiguous builds the title-resolution-tied error; suggestions are
// truncated to five by the caller
func Ambiguous(msg string, suggestions []Suggestion) *Error {
	return &Error{Kind: KindAmbiguousMatch, Message: msg, Suggestions: suggestions}
}

// Conflict builds a claim-held-by-another-runner error
func Conflict(msg string, claim *types.ClaimInfo) *Error {
	return &Error{Kind: KindConflict, Message: msg, Claim: claim}
}

// Unavailable marks an operation that needs the rich notebook backend
func Unavailable(msg string) *Error {
	return &Error{Kind: KindBackendUnavailable, Message: msg}
}

// Io wraps a disk or parse failure
func Io(msg string, err error) *Error {
	return &Error{Kind: KindIo, Message: msg, Err: err}
}

// Internal wraps an unexpected failure
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf extracts the taxonomy kind from any error chain; unknown errors
// report KindInternal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether the error chain carries the given kind
func IsKind(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

// AsError returns the typed error in the chain, or wraps err as internal
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}
