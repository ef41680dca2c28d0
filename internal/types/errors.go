package types

import (
	"fmt"
	"net/http"
)

// ErrorCode is a typed machine token for categorizing application errors.
// These tokens appear verbatim in API error bodies as "error_code".
type ErrorCode string

// Complete error code constants.
// All handlers MUST use these constants instead of hardcoded strings.
const (
	// 400
	ErrCodeValidation          ErrorCode = "VALIDATION_ERROR"
	ErrCodeRecordLimitExceeded ErrorCode = "RECORD_LIMIT_EXCEEDED"
	ErrCodeDuplicateResource   ErrorCode = "DUPLICATE_RESOURCE"
	ErrCodeInvalidToken        ErrorCode = "INVALID_OR_EXPIRED_TOKEN"

	// 401
	ErrCodeAuthRequired       ErrorCode = "AUTHENTICATION_REQUIRED"
	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"

	// 403
	ErrCodeAccountInactive     ErrorCode = "ACCOUNT_INACTIVE"
	ErrCodeEmailNotVerified    ErrorCode = "EMAIL_NOT_VERIFIED"
	ErrCodeNamespaceNotAllowed ErrorCode = "NAMESPACE_NOT_ALLOWED"
	ErrCodeReadOnlyPlan        ErrorCode = "READ_ONLY_PLAN"
	ErrCodeCapabilityDenied    ErrorCode = "CAPABILITY_DENIED"
	ErrCodeNoPlanAssigned      ErrorCode = "NO_PLAN_ASSIGNED"
	ErrCodeInvalidPlanConfig   ErrorCode = "INVALID_PLAN_CONFIGURATION"
	ErrCodePermissionDenied    ErrorCode = "PERMISSION_DENIED"
	ErrCodePlanDeleteForbidden ErrorCode = "PLAN_DELETE_FORBIDDEN"
	ErrCodeObjectLimitExceeded ErrorCode = "CUSTOM_OBJECT_LIMIT_EXCEEDED"
	ErrCodeFieldLimitExceeded  ErrorCode = "CUSTOM_FIELD_LIMIT_EXCEEDED"

	// 404
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// 429
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// 5xx
	ErrCodeInternalDB         ErrorCode = "INTERNAL_DATABASE_ERROR"
	ErrCodeInternalUnexpected ErrorCode = "INTERNAL_UNEXPECTED_ERROR"
	ErrCodeUpstreamEmail      ErrorCode = "UPSTREAM_EMAIL_UNAVAILABLE"
	ErrCodeUpstreamContent    ErrorCode = "UPSTREAM_CONTENT_UNAVAILABLE"
	ErrCodeUpstreamBilling    ErrorCode = "UPSTREAM_BILLING_UNAVAILABLE"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Used by the API layer to translate AppErrors into HTTP responses.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case ErrCodeValidation, ErrCodeRecordLimitExceeded,
		ErrCodeDuplicateResource, ErrCodeInvalidToken:
		return http.StatusBadRequest
	case ErrCodeAuthRequired, ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case ErrCodeAccountInactive, ErrCodeEmailNotVerified,
		ErrCodeNamespaceNotAllowed, ErrCodeReadOnlyPlan,
		ErrCodeCapabilityDenied, ErrCodeNoPlanAssigned,
		ErrCodeInvalidPlanConfig, ErrCodePermissionDenied,
		ErrCodePlanDeleteForbidden, ErrCodeObjectLimitExceeded,
		ErrCodeFieldLimitExceeded:
		return http.StatusForbidden
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case ErrCodeUpstreamEmail, ErrCodeUpstreamContent, ErrCodeUpstreamBilling:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the standard application error type used throughout the platform.
// All domain and handler errors should be expressed as AppError to enable
// consistent error formatting, HTTP status mapping, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"error_code"`
	Message string         `json:"detail"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
// Useful for adding context without mutating the original error.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error. This is the standard constructor for domain errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with the given code, message,
// underlying error, and structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}
