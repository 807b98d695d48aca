package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wechat/internal/constants"
	"wechat/internal/retry"
)

var writeBackoff = retry.BackoffConfig{
	InitialDelay: time.Duration(constants.DefaultRetryBackoffMs) * time.Millisecond,
	MaxDelay:     time.Duration(constants.DefaultMaxBackoffMs) * time.Millisecond,
	Multiplier:   2.0,
	MaxAttempts:  constants.DefaultDatabaseRetryAttempts,
	Jitter:       true,
}

// retryableDBOperation retries operation while sqlite reports a transient
// condition such as a locked database.
func retryableDBOperation(ctx context.Context, operation func() error, operationName string) error {
	return retryWith(ctx, retry.NewBackoff(writeBackoff), operation, operationName)
}

func retryWith(ctx context.Context, b *retry.Backoff, operation func() error, operationName string) error {
	err := b.RetryWithPredicate(ctx, operation, isRetryableDBError)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if !isRetryableDBError(err) {
		return fmt.Errorf("%s failed (non-retryable): %w", operationName, err)
	}
	return fmt.Errorf("%s failed after retries: %w", operationName, err)
}

// isRetryableDBError determines if a database error is worth retrying
func isRetryableDBError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	errStr := err.Error()
	for _, transient := range []string{"database is locked", "database table is locked", "disk I/O error"} {
		if strings.Contains(errStr, transient) {
			return true
		}
	}
	return false
}
