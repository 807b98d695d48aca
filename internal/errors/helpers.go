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

// NewDatabaseError creates a database error with operation context
func NewDatabaseError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDatabaseQuery, fmt.Sprintf("database %s failed", operation)).
		WithContext("operation", operation).
		WithUserMessage("Database operation failed")
}

// NewPermissionError reports a capture device that could not be acquired
func NewPermissionError(device string, err error) *AppError {
	return Wrap(err, ErrCodePermissionDenied, "could not access capture device").
		WithContext("device", device).
		WithUserMessage("Could not access microphone")
}

// NewFileTypeError rejects a media type that is not in any allow-list
func NewFileTypeError(contentType string) *AppError {
	return New(ErrCodeValidationFailed, fmt.Sprintf("file type %q is not allowed", contentType)).
		WithContext("content_type", contentType).
		WithUserMessage("Invalid file type")
}

// NewFileSizeError rejects media over its category limit
func NewFileSizeError(category string, size, limit int64) *AppError {
	return New(ErrCodeValidationFailed, fmt.Sprintf("%s too large: %d > %d bytes", category, size, limit)).
		WithContext("category", category).
		WithContext("size", size).
		WithContext("limit", limit).
		WithUserMessage(fmt.Sprintf("File too large for %s", category))
}

// NewAPIError creates an error for a failed call to the chat backend.
// Network-level failures carry statusCode 0.
func NewAPIError(code ErrorCode, endpoint string, statusCode int, err error) *AppError {
	retryable := statusCode == 0 || statusCode >= 500 || statusCode == 429 || statusCode == 408

	appErr := Wrap(err, code, "backend call failed").
		WithContext("endpoint", endpoint)
	if statusCode != 0 {
		appErr = appErr.WithContext("status_code", statusCode)
	}
	appErr.Retryable = retryable

	switch code {
	case ErrCodeUploadFailed:
		appErr.UserMessage = "Error uploading file"
	case ErrCodeHistoryFetch:
		appErr.UserMessage = "Error fetching chat history"
	default:
		appErr.UserMessage = "Chat server request failed"
	}
	return appErr
}

// NewRealtimeError wraps a failure of the realtime channel
func NewRealtimeError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeRealtime, fmt.Sprintf("realtime %s failed", operation)).
		WithContext("operation", operation).
		WithUserMessage("Not connected to chat server")
}

// NewStateError reports an operation invoked in the wrong pipeline state
func NewStateError(operation, state string) *AppError {
	return New(ErrCodeInvalidState, fmt.Sprintf("cannot %s while %s", operation, state)).
		WithContext("operation", operation).
		WithContext("state", state).
		WithUserMessage(fmt.Sprintf("Cannot %s right now", operation))
}

// NewNotFoundError creates a not found error with resource context
func NewNotFoundError(resource, identifier string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithContext("resource", resource).
		WithContext("identifier", identifier).
		WithUserMessage(fmt.Sprintf("%s not found", resource))
}

// HTTPStatusCode maps error codes to HTTP status codes for the status server
func HTTPStatusCode(err error) int {
	switch GetCode(err) {
	case ErrCodeValidationFailed, ErrCodeInvalidInput, ErrCodeInvalidConfig:
		return 400
	case ErrCodeNotFound:
		return 404
	case ErrCodeInvalidState:
		return 409
	case ErrCodeUploadFailed, ErrCodeHistoryFetch, ErrCodeBackendAPI, ErrCodeRealtime:
		return 502
	case ErrCodeDatabaseConnection, ErrCodeDatabaseQuery:
		return 503
	default:
		return 500
	}
}
