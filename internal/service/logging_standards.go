package service

// Standard field names for structured logging. Use these exact names so log
// queries work across components.
const (
	// Identifiers
	LogFieldUserID    = "user_id"
	LogFieldContactID = "contact_id"
	LogFieldMessageID = "message_id"
	LogFieldRequestID = "request_id"
	LogFieldTraceID   = "trace_id"

	// Service and operation fields
	LogFieldService   = "service"
	LogFieldOperation = "operation"
	LogFieldComponent = "component"
	LogFieldMethod    = "method"

	// Message fields
	LogFieldMessageType = "message_type"
	LogFieldDirection   = "direction" // "incoming" or "outgoing"
	LogFieldContent     = "content"
	LogFieldTerm        = "term"

	// Performance and metrics
	LogFieldDuration = "duration_ms"
	LogFieldCount    = "count"
	LogFieldSize     = "size_bytes"

	// Network
	LogFieldURL        = "url"
	LogFieldStatusCode = "status_code"
	LogFieldRemoteIP   = "remote_ip"
	LogFieldUserAgent  = "user_agent"

	// Errors
	LogFieldErrorCode = "error_code"
	LogFieldAttempt   = "attempt"
)

// Log levels:
//
// DEBUG: per-message flow, frame handling, progress updates.
// INFO: connect/disconnect, uploads completed, history loaded.
// WARN: dropped frames, moderation warnings, audit log write failures.
// ERROR: failed user actions (send, upload, history) and server errors.
//
// Message patterns: "Starting [operation]", "Failed to [operation]",
// "[Operation] completed".
