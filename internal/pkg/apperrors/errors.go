package apperrors

import (
	"fmt"
	"net/http"
	"time"
)

type ErrorType string

const (
	ErrInvalidCredential      ErrorType = "INVALID_CREDENTIAL"
	ErrRevokedCredential      ErrorType = "REVOKED_CREDENTIAL"
	ErrInsufficientPermission ErrorType = "INSUFFICIENT_PERMISSION"
	ErrRateLimitExceeded      ErrorType = "RATE_LIMIT_EXCEEDED"
	ErrBulkSizeExceeded       ErrorType = "BULK_SIZE_EXCEEDED"
	ErrOnboardingFailed       ErrorType = "ONBOARDING_FAILED"
	ErrExecutionFailed        ErrorType = "EXECUTION_FAILED"
	ErrInvalidRequest         ErrorType = "INVALID_REQUEST"
	ErrNotFound               ErrorType = "NOT_FOUND"
	ErrInternal               ErrorType = "INTERNAL_ERROR"
	ErrUpstream               ErrorType = "UPSTREAM_ERROR"
)

// AppError is the standard error struct for the application
type AppError struct {
	Type       ErrorType `json:"code"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
	ResetAt    int64     `json:"reset_at,omitempty"` // unix seconds, rate-limit errors only
	HTTPStatus int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
		Suggestion: mapTypeToSuggestion(errType),
	}
}

func NewInvalidRequest(msg string) *AppError {
	return New(ErrInvalidRequest, msg, nil)
}

func NewRateLimited(resetAt time.Time) *AppError {
	e := New(ErrRateLimitExceeded, "rate limit exceeded", nil)
	e.ResetAt = resetAt.Unix()
	return e
}

func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return New(ErrInternal, err.Error(), err)
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrInvalidCredential, ErrRevokedCredential:
		return http.StatusUnauthorized
	case ErrInsufficientPermission:
		return http.StatusForbidden
	case ErrRateLimitExceeded:
		return http.StatusTooManyRequests
	case ErrBulkSizeExceeded, ErrInvalidRequest, ErrOnboardingFailed:
		return http.StatusBadRequest
	case ErrNotFound:
		return http.StatusNotFound
	case ErrExecutionFailed, ErrUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func mapTypeToSuggestion(t ErrorType) string {
	switch t {
	case ErrInvalidCredential:
		return "Check the public key and secret."
	case ErrRevokedCredential:
		return "Request a new credential; this one is no longer active."
	case ErrInsufficientPermission:
		return "Request a credential with the required permission."
	case ErrRateLimitExceeded:
		return "Back off and retry after reset_at."
	case ErrBulkSizeExceeded:
		return "Split the batch below your tier's bulk order limit."
	case ErrUpstream, ErrExecutionFailed:
		return "The trade executor rejected or timed out; resubmit failed orders."
	default:
		return ""
	}
}
