package service

import (
	"context"

	"wechat/internal/errors"
	"wechat/internal/models"

	"github.com/sirupsen/logrus"
)

// ModerationWarning is shown when a flagged term has been used excessively.
const ModerationWarning = "Warning: This chat contains flagged terms used excessively."

// Notifier surfaces alerts to the user.
type Notifier interface {
	Alert(ctx context.Context, alert models.Alert)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, alert models.Alert)

func (f NotifierFunc) Alert(ctx context.Context, alert models.Alert) {
	f(ctx, alert)
}

// LogNotifier writes alerts to the log. It is used when no interactive
// surface is attached.
type LogNotifier struct {
	Logger *logrus.Logger
}

func (n LogNotifier) Alert(ctx context.Context, alert models.Alert) {
	LogWithContext(ctx, n.Logger).WithField("kind", alert.Kind).Warn(alert.Message)
}

// AlertFor maps an error to the alert the user sees.
func AlertFor(err error) models.Alert {
	kind := models.AlertNetwork
	switch errors.GetCode(err) {
	case errors.ErrCodePermissionDenied:
		kind = models.AlertPermission
	case errors.ErrCodeValidationFailed, errors.ErrCodeInvalidInput, errors.ErrCodeInvalidState:
		kind = models.AlertValidation
	}
	return models.Alert{Kind: kind, Message: errors.GetUserMessage(err)}
}
