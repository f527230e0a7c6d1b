package domain

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// UnknownIdentifier is used when a not-found response does not reveal what was missing.
const UnknownIdentifier = "unknown"

// ErrorKind is the closed set of failures the GitHub connector can produce.
type ErrorKind int

const (
	// KindConnectorFailure is the catch-all for failures that were not classified.
	KindConnectorFailure ErrorKind = iota
	KindAuthenticationFailed
	KindRateLimitExceeded
	KindAccessForbidden
	KindUserNotFound
	KindClientError
	KindServerError
	KindTransportError
)

// Code returns the stable identifier exposed to API consumers.
func (k ErrorKind) Code() string {
	switch k {
	case KindAuthenticationFailed:
		return "AUTHENTICATION_FAILED"
	case KindRateLimitExceeded:
		return "RATE_LIMIT_EXCEEDED"
	case KindAccessForbidden:
		return "ACCESS_FORBIDDEN"
	case KindUserNotFound:
		return "USER_NOT_FOUND"
	case KindClientError:
		return "CLIENT_ERROR"
	case KindServerError:
		return "SERVER_ERROR"
	case KindTransportError:
		return "TRANSPORT_ERROR"
	default:
		return "UNKNOWN_ERROR"
	}
}

func (k ErrorKind) String() string { return k.Code() }

// ConnectorError is a classified failure of a call to GitHub.
type ConnectorError struct {
	Kind ErrorKind

	// Status is the HTTP status that best represents the failure to a caller.
	Status int

	Message string

	// Username is set for KindUserNotFound.
	Username string

	// ResetAt and Remaining are set for KindRateLimitExceeded.
	ResetAt   time.Time
	Remaining int

	Err error
}

func (e *ConnectorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind.Code(), e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind.Code(), e.Message)
}

func (e *ConnectorError) Unwrap() error { return e.Err }

// Code returns the stable error code of the failure.
func (e *ConnectorError) Code() string { return e.Kind.Code() }

// Retryable reports whether repeating the same request may succeed.
// Authentication, not-found and rate-limit failures are terminal.
func (e *ConnectorError) Retryable() bool {
	switch e.Kind {
	case KindAccessForbidden, KindClientError, KindServerError, KindTransportError:
		return true
	default:
		return false
	}
}

// NewAuthenticationFailed reports a 401 from GitHub.
func NewAuthenticationFailed(message string) *ConnectorError {
	return &ConnectorError{Kind: KindAuthenticationFailed, Status: http.StatusUnauthorized, Message: message}
}

// NewRateLimitExceeded reports an exhausted request budget, local or upstream.
func NewRateLimitExceeded(message string, resetAt time.Time, remaining int) *ConnectorError {
	return &ConnectorError{
		Kind:      KindRateLimitExceeded,
		Status:    http.StatusTooManyRequests,
		Message:   message,
		ResetAt:   resetAt,
		Remaining: remaining,
	}
}

// NewAccessForbidden reports a 403 that is not a rate limit.
func NewAccessForbidden(message string) *ConnectorError {
	return &ConnectorError{Kind: KindAccessForbidden, Status: http.StatusForbidden, Message: message}
}

// NewUserNotFound reports a 404 for the given identifier.
func NewUserNotFound(username string) *ConnectorError {
	if username == "" {
		username = UnknownIdentifier
	}
	return &ConnectorError{
		Kind:     KindUserNotFound,
		Status:   http.StatusNotFound,
		Message:  "GitHub user not found: " + username,
		Username: username,
	}
}

// NewClientError reports any other 4xx response.
func NewClientError(status int, message string) *ConnectorError {
	return &ConnectorError{Kind: KindClientError, Status: status, Message: message}
}

// NewServerError reports a 5xx response.
func NewServerError(status int, message string) *ConnectorError {
	return &ConnectorError{Kind: KindServerError, Status: status, Message: message}
}

// NewTransportError reports a request that produced no response at all.
func NewTransportError(cause error) *ConnectorError {
	return &ConnectorError{
		Kind:    KindTransportError,
		Status:  http.StatusServiceUnavailable,
		Message: "GitHub API unreachable",
		Err:     cause,
	}
}

// NewConnectorFailure wraps an unclassified cause.
func NewConnectorFailure(message string, cause error) *ConnectorError {
	return &ConnectorError{
		Kind:    KindConnectorFailure,
		Status:  http.StatusInternalServerError,
		Message: message,
		Err:     cause,
	}
}

// AsConnectorError returns the first ConnectorError in err's chain.
func AsConnectorError(err error) (*ConnectorError, bool) {
	var connectorErr *ConnectorError
	if errors.As(err, &connectorErr) {
		return connectorErr, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindConnectorFailure if err was never classified.
func KindOf(err error) ErrorKind {
	if connectorErr, ok := AsConnectorError(err); ok {
		return connectorErr.Kind
	}
	return KindConnectorFailure
}

// IsRetryable reports whether err is a classified failure worth retrying.
func IsRetryable(err error) bool {
	connectorErr, ok := AsConnectorError(err)
	return ok && connectorErr.Retryable()
}
