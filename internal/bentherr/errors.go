// Package bentherr defines Bentham's error taxonomy (spec §6/§7): a single
// ServiceError type carrying a stable machine-readable code, an HTTP status
// mapping, and a retryability flag, so the Retry Policy, Orchestrator and
// any HTTP boundary all classify errors the same way.
package bentherr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable machine-readable error identifier from the spec §7
// taxonomy.
type Code string

const (
	// Retryable kinds.
	RateLimited        Code = "RATE_LIMITED"
	NetworkError       Code = "NETWORK_ERROR"
	Timeout            Code = "TIMEOUT"
	ServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	InvalidResponse    Code = "INVALID_RESPONSE"
	SessionExpired     Code = "SESSION_EXPIRED"
	TemporaryFailure   Code = "TEMPORARY_FAILURE"
	ProxyError         Code = "PROXY_ERROR"
	SurfaceUnavailable Code = "SURFACE_UNAVAILABLE"

	// Non-retryable kinds.
	AuthFailed        Code = "AUTH_FAILED"
	QuotaExceeded     Code = "QUOTA_EXCEEDED"
	InvalidRequest    Code = "INVALID_REQUEST"
	ContentBlocked    Code = "CONTENT_BLOCKED"
	CaptchaRequired   Code = "CAPTCHA_REQUIRED"

	// Validation / boundary kinds.
	InvalidManifest  Code = "INVALID_MANIFEST"
	ValidationFailed Code = "VALIDATION_FAILED"

	// AuthN/Z kinds.
	Unauthorized Code = "UNAUTHORIZED"
	Forbidden    Code = "FORBIDDEN"

	// Not-found kinds.
	StudyNotFound Code = "STUDY_NOT_FOUND"
	JobNotFound   Code = "JOB_NOT_FOUND"

	// System kinds.
	InternalError  Code = "INTERNAL_ERROR"
	DatabaseError  Code = "DATABASE_ERROR"
	SessionInvalid Code = "SESSION_INVALID"
)

// DefaultRetryableKinds mirrors spec §7's default retryable set.
var DefaultRetryableKinds = map[Code]bool{
	RateLimited:        true,
	NetworkError:       true,
	Timeout:            true,
	ServiceUnavailable: true,
	InvalidResponse:    true,
	SessionExpired:     true,
	TemporaryFailure:   true,
	ProxyError:         true,
	SurfaceUnavailable: true,
}

// DefaultNonRetryableKinds mirrors spec §4.A / §7's default non-retryable
// set. CaptchaRequired and ContentBlocked are configurable per manifest.
var DefaultNonRetryableKinds = map[Code]bool{
	AuthFailed:      true,
	QuotaExceeded:   true,
	InvalidRequest:  true,
	ContentBlocked:  true,
	CaptchaRequired: true,
}

// httpStatusByCode is the §6 HTTP mapping table.
var httpStatusByCode = map[Code]int{
	InvalidManifest:  http.StatusBadRequest,
	ValidationFailed: http.StatusBadRequest,
	Unauthorized:     http.StatusUnauthorized,
	Forbidden:        http.StatusForbidden,
	StudyNotFound:    http.StatusNotFound,
	JobNotFound:      http.StatusNotFound,
	RateLimited:      http.StatusTooManyRequests,
	QuotaExceeded:    http.StatusTooManyRequests,

	InternalError:      http.StatusInternalServerError,
	DatabaseError:      http.StatusInternalServerError,
	TemporaryFailure:   http.StatusServiceUnavailable,
	Timeout:            http.StatusServiceUnavailable,
	SurfaceUnavailable: http.StatusServiceUnavailable,
	SessionInvalid:     http.StatusInternalServerError,
	ProxyError:         http.StatusInternalServerError,
	CaptchaRequired:    http.StatusInternalServerError,
	ContentBlocked:     http.StatusInternalServerError,
}

// HTTPStatus maps a Code to its §6 HTTP status, defaulting to 500 for any
// code not in the explicit table (e.g. domain-internal kinds like
// NetworkError/InvalidResponse/SessionExpired/AuthFailed/InvalidRequest
// that never cross the HTTP boundary directly).
func HTTPStatus(code Code) int {
	if status, ok := httpStatusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ServiceError is Bentham's single error type across components.
type ServiceError struct {
	Code        Code
	Message     string
	HTTPStatus  int
	Retryable   bool
	UserMessage string
	Details     map[string]any
	Cause       error
}

func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Cause }

// New builds a ServiceError for code, deriving HTTPStatus and Retryable
// from the default tables unless the kind is one of the non-taxonomy
// boundary codes (validation, not-found, auth), which are never retryable.
func New(code Code, message string) *ServiceError {
	return &ServiceError{
		Code:       code,
		Message:    message,
		HTTPStatus: HTTPStatus(code),
		Retryable:  DefaultRetryableKinds[code],
	}
}

// Wrap builds a ServiceError around an existing error, preserving it via
// errors.Unwrap.
func Wrap(code Code, message string, cause error) *ServiceError {
	e := New(code, message)
	e.Cause = cause
	return e
}

// NotFound is a convenience constructor for the common not-found shape.
func NotFound(code Code, message string) *ServiceError {
	e := New(code, message)
	e.Retryable = false
	return e
}

// IsRetryable reports whether err is a retryable ServiceError. Non-
// ServiceError values are treated as non-retryable by default — the caller
// must classify third-party errors into the taxonomy before they reach the
// retry policy.
func IsRetryable(err error) bool {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Retryable
	}
	return false
}

// CodeOf extracts the Code from err, or "" if err is not a ServiceError.
func CodeOf(err error) Code {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Code
	}
	return ""
}
