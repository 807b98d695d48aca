package errors

import (
	"github.com/sirupsen/logrus"
)

// Fields returns the structured context of err for log entries
func Fields(err error) logrus.Fields {
	fields := logrus.Fields{}
	appErr, ok := As(err)
	if !ok {
		return fields
	}

	fields["error_code"] = appErr.Code
	fields["retryable"] = appErr.Retryable
	for k, v := range appErr.Context {
		fields[k] = v
	}
	return fields
}

// Log writes err at warn level for validation and permission failures and
// at error level for everything else.
func Log(logger logrus.FieldLogger, err error, message string) {
	entry := logger.WithError(err).WithFields(Fields(err))
	switch GetCode(err) {
	case ErrCodeValidationFailed, ErrCodeInvalidInput, ErrCodePermissionDenied, ErrCodeInvalidState:
		entry.Warn(message)
	default:
		entry.Error(message)
	}
}
