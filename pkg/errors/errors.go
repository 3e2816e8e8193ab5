package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Kind classifies an error for retry and reporting decisions
type Kind string

const (
	KindConfiguration     Kind = "configuration"
	KindAuth              Kind = "auth"
	KindNotFound          Kind = "not_found"
	KindClient            Kind = "client"
	KindTransient         Kind = "transient"
	KindRetryExhausted    Kind = "retry_exhausted"
	KindResolutionMissing Kind = "resolution_missing"
	KindValidation        Kind = "validation"
)

// Error is a classified error raised by the resolution subsystem
type Error struct {
	Kind       Kind
	Message    string
	Function   string
	StatusCode int
	Attempts   int
	Elapsed    time.Duration
	EntityKind models.EntityKind
	Code       string
	Cause      error
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// NewConfigurationError creates an error for missing or invalid configuration
func NewConfigurationError(format string, args ...any) *Error {
	return newError(KindConfiguration, fmt.Sprintf(format, args...))
}

// NewValidationError creates an error for invalid caller input
func NewValidationError(format string, args ...any) *Error {
	return newError(KindValidation, fmt.Sprintf(format, args...))
}

// NewAuthError creates an error for a 401/403 response
func NewAuthError(function string, statusCode int, serverMessage string) *Error {
	msg := "remote service rejected the credentials; check the configured token and the access policy for this function"
	if serverMessage != "" {
		msg += ": " + serverMessage
	}
	return &Error{Kind: KindAuth, Message: msg, Function: function, StatusCode: statusCode}
}

// NewNotFoundError creates an error for a 404 response
func NewNotFoundError(function string, serverMessage string) *Error {
	msg := "remote function not found; check the base URL and function name"
	if serverMessage != "" {
		msg += ": " + serverMessage
	}
	return &Error{Kind: KindNotFound, Message: msg, Function: function, StatusCode: http.StatusNotFound}
}

// NewClientError creates an error for any other 4xx response
func NewClientError(function string, statusCode int, serverMessage string) *Error {
	if serverMessage == "" {
		serverMessage = http.StatusText(statusCode)
	}
	return &Error{Kind: KindClient, Message: serverMessage, Function: function, StatusCode: statusCode}
}

// NewTransientError creates a retryable error for 5xx responses and network failures
func NewTransientError(function string, statusCode int, cause error) *Error {
	msg := "remote service unavailable"
	if statusCode > 0 {
		msg = fmt.Sprintf("remote service returned %d", statusCode)
	}
	return &Error{Kind: KindTransient, Message: msg, Function: function, StatusCode: statusCode, Cause: cause}
}

// NewRetryExhaustedError wraps the last transient failure once all attempts are used
func NewRetryExhaustedError(function string, attempts int, elapsed time.Duration, last error) *Error {
	e := &Error{
		Kind:     KindRetryExhausted,
		Message:  fmt.Sprintf("gave up after %d attempts in %s", attempts, elapsed.Round(time.Millisecond)),
		Function: function,
		Attempts: attempts,
		Elapsed:  elapsed,
		Cause:    last,
	}
	var lastErr *Error
	if errors.As(last, &lastErr) {
		e.StatusCode = lastErr.StatusCode
	}
	return e
}

// NewResolutionMissingError reports a required stable code that resolved to nothing
func NewResolutionMissingError(kind models.EntityKind, code string) *Error {
	return &Error{
		Kind:       KindResolutionMissing,
		Message:    fmt.Sprintf("required %s code %q did not resolve to an entity", kind, code),
		EntityKind: kind,
		Code:       code,
	}
}

func (e *Error) Error() string {
	path := []string{}
	if e.Function != "" {
		path = append(path, fmt.Sprintf("function '%s'", e.Function))
	}
	if e.StatusCode > 0 {
		path = append(path, fmt.Sprintf("status %d", e.StatusCode))
	}

	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}

	if len(path) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, strings.Join(path, " -> "), msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithAttempts records how many attempts were made before the error surfaced
func (e *Error) WithAttempts(attempts int, elapsed time.Duration) *Error {
	e.Attempts = attempts
	e.Elapsed = elapsed
	return e
}

// Retryable reports whether the operation that produced the error may be retried
func (e *Error) Retryable() bool {
	return e.Kind == KindTransient
}

// ToHTTPError converts the error for the HTTP surface
func (e *Error) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(e.httpStatus(), e.Error()).
		AddMetaValue("kind", string(e.Kind)).
		AddMetaValue("function", e.Function).
		AddMetaValue("attempts", e.Attempts).
		AddMetaValue("entity_type", string(e.EntityKind)).
		AddMetaValue("code", e.Code)
}

func (e *Error) httpStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindResolutionMissing:
		return http.StatusUnprocessableEntity
	case KindAuth, KindNotFound, KindClient, KindTransient, KindRetryExhausted:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// As returns the classified error in err's chain, if any
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of the first classified error in err's chain, or "" when unclassified
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err's chain contains a classified error of the given kind
func IsKind(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if errors.As(err, &e) {
			if e.Kind == kind {
				return true
			}
			err = e.Cause
			continue
		}
		return false
	}
	return false
}

// IsRetryable reports whether err is a transient, retryable failure
func IsRetryable(err error) bool {
	e, ok := As(err)
	return ok && e.Retryable()
}
