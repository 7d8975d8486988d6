// Package apierr defines the error taxonomy surfaced at the HTTP boundary and
// the Translator that turns any error into the uniform JSON response.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the stable machine-readable category written to the "error" field.
type Kind string

const (
	KindAuthentication Kind = "Unauthorized"
	KindAuthorization  Kind = "Forbidden"
	KindValidation     Kind = "ValidationError"
	KindNotFound       Kind = "NotFound"
	KindBadRequest     Kind = "BadRequest"
	KindInternal       Kind = "InternalServerError"
)

// Status maps a kind to its HTTP status code.
func (k Kind) Status() int {
	switch k {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindValidation, KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// FieldError is one per-field detail of a validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a classified failure. Message is safe to show to callers (except for
// internal errors outside development); Err carries the cause for logs only.
type Error struct {
	Kind    Kind
	Message string
	Details []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Status returns the HTTP status code for the error's kind.
func (e *Error) Status() int { return e.Kind.Status() }

// Authentication reports an invalid, expired or unverifiable credential.
func Authentication(message string, cause error) *Error {
	return &Error{Kind: KindAuthentication, Message: message, Err: cause}
}

// Authorization reports an authenticated caller that may not perform the request.
func Authorization(message string) *Error {
	return &Error{Kind: KindAuthorization, Message: message}
}

// Validation reports input that violates a persistence constraint or shape rule.
func Validation(message string, details ...FieldError) *Error {
	return &Error{Kind: KindValidation, Message: message, Details: details}
}

// NotFound must only be used where revealing existence is harmless.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// BadRequest reports a malformed request: webhook signature problems, invalid uploads, bad JSON.
func BadRequest(message string, cause error) *Error {
	return &Error{Kind: KindBadRequest, Message: message, Err: cause}
}

// Internal wraps an unexpected failure. The cause text becomes the message,
// which the Translator hides outside development.
func Internal(cause error) *Error {
	msg := "internal error"
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{Kind: KindInternal, Message: msg, Err: cause}
}

// From classifies err. Anything that is not already an *Error is internal.
func From(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal(err)
}

// IsKind reports whether err classifies as kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && From(err).Kind == kind
}
