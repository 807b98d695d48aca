package service

import (
	"context"

	"wechat/internal/models"
	"wechat/internal/privacy"
	"wechat/internal/tracing"

	"github.com/sirupsen/logrus"
)

// ContextKey is a package-local type to prevent context key collisions
type ContextKey string

// VerboseContextKey marks a context whose logs may include message content
const VerboseContextKey ContextKey = "verbose"

func WithVerbose(ctx context.Context, verbose bool) context.Context {
	return context.WithValue(ctx, VerboseContextKey, verbose)
}

func IsVerboseLogging(ctx context.Context) bool {
	if verbose, ok := ctx.Value(VerboseContextKey).(bool); ok {
		return verbose
	}
	return false
}

// LogWithContext returns an entry carrying the request and trace ids found in
// ctx.
func LogWithContext(ctx context.Context, logger *logrus.Logger) *logrus.Entry {
	fields := logrus.Fields{}
	if id := tracing.GetRequestID(ctx); id != "" {
		fields[LogFieldRequestID] = id
	}
	if id := tracing.GetOtelTraceID(ctx); id != "" {
		fields[LogFieldTraceID] = id
	}
	return logger.WithFields(fields)
}

// LogMessage logs a conversation entry. IDs are masked and content is only
// included for verbose contexts.
func LogMessage(ctx context.Context, logger *logrus.Logger, direction, contactID string, msg models.Message) {
	fields := logrus.Fields{
		LogFieldDirection:   direction,
		LogFieldContactID:   privacy.MaskID(contactID),
		LogFieldMessageType: msg.Type.String(),
	}
	if IsVerboseLogging(ctx) {
		fields[LogFieldContactID] = contactID
		fields[LogFieldMessageID] = msg.ID
		fields[LogFieldContent] = msg.Content
	} else {
		fields[LogFieldContent] = privacy.MaskContent(msg.Content)
	}
	LogWithContext(ctx, logger).WithFields(fields).Debug("Conversation updated")
}
