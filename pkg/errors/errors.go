// Package errors provides the error taxonomy shared across the order
// submission pipeline, with HTTP status and retryability mapping.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard error functions
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
)

// Kind classifies an error for transport mapping and retry decisions.
type Kind string

const (
	KindUnknown        Kind = "UNKNOWN"
	KindValidation     Kind = "VALIDATION_ERROR"
	KindOverloaded     Kind = "SYSTEM_OVERLOADED"
	KindUpstreamClient Kind = "UPSTREAM_CLIENT_ERROR"
	KindUpstreamServer Kind = "UPSTREAM_SERVER_ERROR"
	KindConnectivity   Kind = "UPSTREAM_CONNECTIVITY_ERROR"
	KindPersistence    Kind = "PERSISTENCE_ERROR"
	KindNotFound       Kind = "NOT_FOUND"
)

// Error is a custom error type for passing more information
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`

	cause error
}

var _ error = (*Error)(nil)

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a new error of the given kind
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// Error implements error
func (e *Error) Error() string {
	str := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.cause != nil {
		str += fmt.Sprintf(" (%s)", e.cause)
	}
	return str
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// KindOf returns the kind of err, or KindUnknown for foreign errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Retryable reports whether the caller may safely retry the whole
// operation. Upstream 5xx and connectivity failures are retryable
// because no local state was mutated; a persistence failure is retryable
// only at the persistence layer, never by re-calling the upstream.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindOverloaded, KindUpstreamServer, KindConnectivity:
		return true
	default:
		return false
	}
}

// HTTPStatus maps an error kind onto the HTTP status of the local API
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindOverloaded:
		return http.StatusServiceUnavailable
	case KindUpstreamClient, KindUpstreamServer, KindConnectivity:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
