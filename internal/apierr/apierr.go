// Package apierr defines the error taxonomy shared by the REST API and its client.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an API failure
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindForbidden        Kind = "forbidden"
	KindUnauthorized     Kind = "unauthorized"
	KindConflict         Kind = "conflict"
	KindValidationFailed Kind = "validation_failed"
	KindRateLimited      Kind = "rate_limited"
	KindServerError      Kind = "server_error"
)

// FieldError describes one rejected input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is an API error with the HTTP status it travels as
type Error struct {
	Kind    Kind         `json:"kind"`
	Status  int          `json:"-"`
	Message string       `json:"message"`
	Fields  []FieldError `json:"errors,omitempty"`
}

// New creates an error of the given kind with the kind's default status
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Status: StatusFor(kind), Message: message}
}

// NotFound creates a not found error
func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

// Forbidden creates a forbidden error
func Forbidden(message string) *Error {
	return New(KindForbidden, message)
}

// Unauthorized creates an unauthorized error
func Unauthorized(message string) *Error {
	return New(KindUnauthorized, message)
}

// Validation creates a validation error carrying per-field messages
func Validation(message string, fields ...FieldError) *Error {
	e := New(KindValidationFailed, message)
	e.Fields = fields
	return e
}

// Internal creates a server error
func Internal(message string) *Error {
	return New(KindServerError, message)
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("API error %d (%s): %s", e.Status, e.Kind, e.Message)
}

// StatusFor returns the HTTP status a kind is sent with
func StatusFor(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindConflict, KindValidationFailed:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// KindForStatus infers a kind from an HTTP status when the body does not carry one
func KindForStatus(status int) Kind {
	switch status {
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindValidationFailed
	case http.StatusConflict:
		return KindConflict
	case http.StatusTooManyRequests:
		return KindRateLimited
	default:
		return KindServerError
	}
}

// KindOf returns the kind of err, or KindServerError for errors that are not API errors
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindServerError
}

// IsNotFound reports whether err is a not found API error
func IsNotFound(err error) bool {
	return err != nil && KindOf(err) == KindNotFound
}
