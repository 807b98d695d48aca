package errors

import (
	"bytes"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func newTestLogger(buf *bytes.Buffer) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(buf)
	logger.SetLevel(logrus.DebugLevel)
	return logger
}

func TestFields(t *testing.T) {
	fields := Fields(NewFileTypeError("application/zip"))

	assert.Equal(t, ErrCodeValidationFailed, fields["error_code"])
	assert.Equal(t, false, fields["retryable"])
	assert.Equal(t, "application/zip", fields["content_type"])

	assert.Empty(t, Fields(errors.New("plain")))
}

func TestLog(t *testing.T) {
	tests := []struct {
		name             string
		err              error
		expectedInOutput []string
	}{
		{
			name: "validation logged as warning",
			err:  NewFileTypeError("application/zip"),
			expectedInOutput: []string{
				`"level":"warning"`,
				`"error_code":"VALIDATION_FAILED"`,
				`"content_type":"application/zip"`,
			},
		},
		{
			name: "network logged as error",
			err:  NewAPIError(ErrCodeUploadFailed, "/api/upload", 500, errors.New("x")),
			expectedInOutput: []string{
				`"level":"error"`,
				`"error_code":"UPLOAD_FAILED"`,
				`"status_code":500`,
			},
		},
		{
			name:             "plain error logged as error",
			err:              errors.New("plain"),
			expectedInOutput: []string{`"level":"error"`, `"error":"plain"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			Log(newTestLogger(&buf), tt.err, "operation failed")

			output := buf.String()
			assert.Contains(t, output, `"msg":"operation failed"`)
			for _, expected := range tt.expectedInOutput {
				assert.Contains(t, output, expected)
			}
		})
	}
}
