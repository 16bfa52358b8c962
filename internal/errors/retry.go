package errors

import (
	"context"
	"errors"
	"time"
)

const (
	retryAttempts   = 3
	retryBaseDelay  = 100 * time.Millisecond
	retryDelayLimit = 5 * time.Second
)

// WithRetry runs fn up to three extra times when it fails with a retryable
// AppError, doubling the delay between attempts. Non-retryable errors and
// context cancellation stop the loop immediately.
func WithRetry(ctx context.Context, fn func() error) error {
	if fn == nil {
		return nil
	}

	delay := retryBaseDelay
	var lastErr error

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil || !IsRetryable(lastErr) || attempt == retryAttempts {
			return lastErr
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > retryDelayLimit {
			delay = retryDelayLimit
		}
	}
}

// IsRetryable reports whether err carries an AppError marked retryable.
func IsRetryable(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr != nil && appErr.Retryable
}
