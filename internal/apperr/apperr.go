// Package apperr defines the error taxonomy shared by the reconciliation
// engine, the lifecycle state machine and the HTTP layer.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidSignature     = New("INVALID_SIGNATURE", "webhook signature verification failed", http.StatusBadRequest)
	ErrMalformedEvent       = New("MALFORMED_EVENT", "event payload is missing required data", http.StatusBadRequest)
	ErrMalformedRequest     = New("MALFORMED_REQUEST", "request is missing required data", http.StatusBadRequest)
	ErrValidation           = New("VALIDATION_ERROR", "validation failed", http.StatusBadRequest)
	ErrRequiresCampaignID   = New("REQUIRES_CAMPAIGN_ID", "campaign_id is required to locate this checkout session", http.StatusBadRequest)
	ErrUnauthorized         = New("UNAUTHORIZED", "authentication required", http.StatusUnauthorized)
	ErrForbidden            = New("FORBIDDEN", "not allowed to perform this action", http.StatusForbidden)
	ErrNotFound             = New("NOT_FOUND", "resource not found", http.StatusNotFound)
	ErrNotReady             = New("NOT_READY", "payment account is not ready to receive donations", http.StatusConflict)
	ErrInvalidTransition    = New("INVALID_TRANSITION", "campaign status does not allow this action", http.StatusConflict)
	ErrAlreadyReady         = New("ALREADY_READY", "payment account onboarding is already complete", http.StatusConflict)
	ErrPaymentIncomplete    = New("PAYMENT_INCOMPLETE", "payment has not completed yet", http.StatusAccepted)
	ErrRateLimited          = New("RATE_LIMITED", "too many requests", http.StatusTooManyRequests)
	ErrProcessorError       = New("PROCESSOR_ERROR", "payment processor rejected the request", http.StatusBadGateway)
	ErrProcessorUnavailable = New("PROCESSOR_UNAVAILABLE", "payment processor is unavailable", http.StatusServiceUnavailable)
	ErrInternal             = New("INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
)

// AppError carries a stable code, a client-facing message and the HTTP status
// it maps to. Two AppErrors match under errors.Is when their codes are equal.
type AppError struct {
	Code       string
	Message    string
	StatusCode int
	Details    map[string]interface{}
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s - %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// Retryable reports whether the caller may retry the same request later. An
// unconfigured processor stays unavailable until the deployment changes.
func (e *AppError) Retryable() bool {
	if e.Code != ErrProcessorUnavailable.Code {
		return false
	}
	configured, ok := e.Details["configured"].(bool)
	return !ok || configured
}

func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	clone := e.clone()
	for k, v := range details {
		clone.Details[k] = v
	}
	return clone
}

func (e *AppError) WithError(err error) *AppError {
	clone := e.clone()
	clone.Err = err
	return clone
}

// WithMessage replaces the client-facing message.
func (e *AppError) WithMessage(format string, args ...interface{}) *AppError {
	clone := e.clone()
	clone.Message = fmt.Sprintf(format, args...)
	return clone
}

func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Details:    make(map[string]interface{}),
	}
}

func (e *AppError) clone() *AppError {
	clone := *e
	clone.Details = make(map[string]interface{}, len(e.Details))
	for k, v := range e.Details {
		clone.Details[k] = v
	}
	return &clone
}

// As extracts the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// FromError maps any error onto the taxonomy, defaulting to ErrInternal.
func FromError(err error) *AppError {
	if appErr, ok := As(err); ok {
		return appErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrProcessorUnavailable.WithError(err).WithMessage("request timed out")
	}
	return ErrInternal.WithError(err)
}

// FromValidation converts validator.ValidationErrors into ErrValidation with a
// per-field breakdown.
func FromValidation(err error) *AppError {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return ErrMalformedRequest.WithError(err)
	}

	fields := make([]map[string]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		fields = append(fields, map[string]string{
			"field":   fe.Field(),
			"message": validationMessage(fe),
		})
	}
	return ErrValidation.WithDetails(map[string]interface{}{"fields": fields})
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "invalid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed '%s' validation", fe.Field(), fe.Tag())
	}
}
