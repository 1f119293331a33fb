package errors

import (
	"fmt"
)

// Common error creators for frequent use cases

// NewValidationError creates a validation error with field context
func NewValidationError(field, value, message string) *AppError {
	return New(ErrCodeValidationFailed, message).
		WithContext("field", field).
		WithContext("value", value).
		WithUserMessage(fmt.Sprintf("Invalid %s: %s", field, message))
}

// NewConfigError creates a configuration error
func NewConfigError(key, message string) *AppError {
	return New(ErrCodeInvalidConfig, message).
		WithContext("config_key", key).
		WithUserMessage("Configuration error")
}

// NewStorageError creates a storage error with operation context
func NewStorageError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeStorageQuery, fmt.Sprintf("storage %s failed", operation)).
		WithContext("operation", operation).
		WithUserMessage("Storage operation failed")
}

// NewDeliveryError creates a delivery transport error. Server-side and
// throttling failures are retryable; client errors are not.
func NewDeliveryError(chatID string, statusCode int, err error) *AppError {
	retryable := statusCode >= 500 || statusCode == 429 || statusCode == 408 || statusCode == 0

	appErr := Wrap(err, ErrCodeDeliveryFailed, "message delivery failed").
		WithContext("status_code", statusCode)
	appErr.Retryable = retryable
	return appErr
}

// NewRetryExhaustedError creates the terminal per-entry error raised when the
// retry budget is used up.
func NewRetryExhaustedError(queueID int64, attempts int) *AppError {
	return New(ErrCodeRetryExhausted, fmt.Sprintf("delivery failed after %d attempts", attempts)).
		WithContext("queue_id", queueID).
		WithContext("attempts", attempts).
		WithUserMessage("Message could not be delivered")
}

// NewTimeoutError creates a timeout error with context
func NewTimeoutError(operation string, duration string) *AppError {
	return New(ErrCodeTimeout, fmt.Sprintf("%s timed out after %s", operation, duration)).
		WithContext("operation", operation).
		WithContext("timeout", duration).
		WithUserMessage("Operation timed out, please try again")
}

// NewNotFoundError creates a not found error with resource context
func NewNotFoundError(resource string, identifier interface{}) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithContext("resource", resource).
		WithContext("identifier", identifier).
		WithUserMessage(fmt.Sprintf("%s not found", resource))
}
