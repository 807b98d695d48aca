package validation

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"wechat/internal/constants"
	"wechat/internal/errors"
)

// ValidateUserID validates a user or contact identifier
func ValidateUserID(field, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.NewValidationError(field, id, "cannot be empty")
	}

	if len(id) > constants.MaxUserIDLength {
		return errors.NewValidationError(field, id,
			fmt.Sprintf("too long (max %d characters)", constants.MaxUserIDLength))
	}

	for _, char := range id {
		if unicode.IsSpace(char) || unicode.IsControl(char) {
			return errors.NewValidationError(field, id, "contains invalid characters")
		}
	}

	return nil
}

// ValidateMessageText validates already-trimmed outgoing text
func ValidateMessageText(text string) error {
	if !utf8.ValidString(text) {
		return errors.NewValidationError("message", "", "must be valid UTF-8")
	}

	if len(text) > constants.MaxMessageLength {
		return errors.NewValidationError("message", "",
			fmt.Sprintf("too long (max %d bytes)", constants.MaxMessageLength))
	}

	return nil
}

// ValidateBaseURL validates an endpoint URL against the allowed schemes
func ValidateBaseURL(field, raw string, schemes ...string) error {
	if raw == "" {
		return errors.NewValidationError(field, raw, "cannot be empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return errors.NewValidationError(field, raw, "is not a valid URL")
	}

	if u.Host == "" {
		return errors.NewValidationError(field, raw, "must include a host")
	}

	for _, scheme := range schemes {
		if strings.EqualFold(u.Scheme, scheme) {
			return nil
		}
	}

	return errors.NewValidationError(field, raw,
		fmt.Sprintf("scheme must be one of %s", strings.Join(schemes, ", ")))
}

// ValidateTimeout validates timeout values
func ValidateTimeout(timeoutSec int, fieldName string) error {
	if timeoutSec < 1 {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s must be at least 1 second", fieldName))
	}

	if timeoutSec > 3600 { // Max 1 hour
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s too large (max 3600 seconds)", fieldName))
	}

	return nil
}

// ValidateRetentionDays validates audit log retention period
func ValidateRetentionDays(days int) error {
	if days < 1 {
		return errors.New(errors.ErrCodeInvalidInput, "retention days must be at least 1")
	}

	if days > 3650 { // Max 10 years
		return errors.New(errors.ErrCodeInvalidInput, "retention days too large (max 3650)")
	}

	return nil
}
