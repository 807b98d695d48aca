package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryableDBOperation_Success(t *testing.T) {
	callCount := 0
	err := retryableDBOperation(context.Background(), func() error {
		callCount++
		return nil
	}, "test operation")

	assert.NoError(t, err)
	assert.Equal(t, 1, callCount)
}

func TestRetryableDBOperation_SuccessAfterRetries(t *testing.T) {
	callCount := 0
	err := retryableDBOperation(context.Background(), func() error {
		callCount++
		if callCount < 3 {
			return fmt.Errorf("database is locked")
		}
		return nil
	}, "test operation")

	assert.NoError(t, err)
	assert.Equal(t, 3, callCount)
}

func TestRetryableDBOperation_NonRetryable(t *testing.T) {
	callCount := 0
	err := retryableDBOperation(context.Background(), func() error {
		callCount++
		return fmt.Errorf("UNIQUE constraint failed")
	}, "insert")

	assert.Error(t, err)
	assert.Equal(t, 1, callCount)
	assert.Contains(t, err.Error(), "non-retryable")
}

func TestRetryableDBOperation_Exhausted(t *testing.T) {
	callCount := 0
	err := retryableDBOperation(context.Background(), func() error {
		callCount++
		return fmt.Errorf("database is locked")
	}, "insert")

	assert.Error(t, err)
	assert.Equal(t, writeBackoff.MaxAttempts, callCount)
	assert.Contains(t, err.Error(), "after retries")
}

func TestRetryableDBOperation_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := retryableDBOperation(ctx, func() error { return nil }, "insert")
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestIsRetryableDBError(t *testing.T) {
	tests := []struct {
		err      error
		expected bool
	}{
		{err: nil, expected: false},
		{err: fmt.Errorf("database is locked"), expected: true},
		{err: fmt.Errorf("database table is locked"), expected: true},
		{err: fmt.Errorf("disk I/O error"), expected: true},
		{err: fmt.Errorf("syntax error"), expected: false},
		{err: context.Canceled, expected: false},
		{err: fmt.Errorf("wrapped: %w", context.DeadlineExceeded), expected: false},
	}

	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isRetryableDBError(tt.err))
		})
	}
}
