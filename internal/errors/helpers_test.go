package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("contact_id", "", "cannot be empty")

	assert.Equal(t, ErrCodeValidationFailed, err.Code)
	assert.Equal(t, "contact_id", err.Context["field"])
	assert.Equal(t, "Invalid contact_id: cannot be empty", err.UserMessage)
}

func TestNewPermissionError(t *testing.T) {
	cause := errors.New("exec: \"ffmpeg\": executable file not found in $PATH")
	err := NewPermissionError("default", cause)

	assert.Equal(t, ErrCodePermissionDenied, err.Code)
	assert.Equal(t, "Could not access microphone", err.UserMessage)
	assert.ErrorIs(t, err, cause)
}

func TestNewFileTypeError(t *testing.T) {
	err := NewFileTypeError("application/zip")

	assert.Equal(t, ErrCodeValidationFailed, err.Code)
	assert.Equal(t, "application/zip", err.Context["content_type"])
	assert.False(t, err.Retryable)
}

func TestNewFileSizeError(t *testing.T) {
	err := NewFileSizeError("image", 10, 5)

	assert.Contains(t, err.Message, "image too large")
	assert.Equal(t, int64(10), err.Context["size"])
}

func TestNewAPIError(t *testing.T) {
	tests := []struct {
		name        string
		code        ErrorCode
		statusCode  int
		retryable   bool
		userMessage string
	}{
		{"network failure", ErrCodeUploadFailed, 0, true, "Error uploading file"},
		{"server error", ErrCodeUploadFailed, 503, true, "Error uploading file"},
		{"client error", ErrCodeHistoryFetch, 404, false, "Error fetching chat history"},
		{"rate limited", ErrCodeBackendAPI, 429, true, "Chat server request failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewAPIError(tt.code, "/api/upload", tt.statusCode, errors.New("x"))
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.retryable, err.Retryable)
			assert.Equal(t, tt.userMessage, err.UserMessage)
			if tt.statusCode != 0 {
				assert.Equal(t, tt.statusCode, err.Context["status_code"])
			} else {
				assert.NotContains(t, err.Context, "status_code")
			}
		})
	}
}

func TestNewStateError(t *testing.T) {
	err := NewStateError("start recording", "uploading")

	assert.Equal(t, ErrCodeInvalidState, err.Code)
	assert.Equal(t, "cannot start recording while uploading", err.Message)
}

func TestHTTPStatusCode(t *testing.T) {
	assert.Equal(t, 400, HTTPStatusCode(NewFileTypeError("x")))
	assert.Equal(t, 404, HTTPStatusCode(NewNotFoundError("contact", "1")))
	assert.Equal(t, 409, HTTPStatusCode(NewStateError("send", "idle")))
	assert.Equal(t, 502, HTTPStatusCode(NewRealtimeError("emit", errors.New("closed"))))
	assert.Equal(t, 503, HTTPStatusCode(NewDatabaseError("insert", errors.New("locked"))))
	assert.Equal(t, 500, HTTPStatusCode(errors.New("plain")))
}
