package privacy

import (
	"fmt"
	"net/url"
	"strings"

	"wechat/internal/constants"
)

// MaskID masks a user or contact identifier, keeping the last few characters
// Example: "64f1c2a9e1b2" -> "********e1b2"
func MaskID(id string) string {
	return maskString(id, constants.DefaultIDMaskLength)
}

// MaskContent hides message content, keeping only its shape for debugging
// Example: "hello there" -> "[text len=11]"
func MaskContent(content string) string {
	if content == "" {
		return ""
	}
	if u, err := url.Parse(content); err == nil && u.Scheme != "" && u.Host != "" {
		return fmt.Sprintf("[url host=%s]", u.Host)
	}
	return fmt.Sprintf("[text len=%d]", len(content))
}

// maskString masks a string showing only the last n characters
func maskString(s string, keepLast int) string {
	if s == "" {
		return ""
	}
	if len(s) <= keepLast {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-keepLast) + s[len(s)-keepLast:]
}
