package cache

import (
	"context"
	"errors"
	"time"
)

// retryAttempts and retryBaseDelay bound RetryWithBackoff: three tries with
// 1s, then 2s between them.
const (
	retryAttempts  = 3
	retryBaseDelay = time.Second
)

// RetryableError marks an error as transient. Backends wrap network-level
// failures with it; everything else fails fast.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps err as transient. A nil err stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err is marked transient anywhere in its chain.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// RetryWithBackoff runs fn, retrying transient failures with exponential
// backoff. Non-retryable errors and context cancellation return immediately;
// after the attempt budget the last error is returned.
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	delay := retryBaseDelay
	var lastErr error
	for i := 0; i < retryAttempts; i++ {
		lastErr = fn()
		if lastErr == nil || !IsRetryable(lastErr) {
			return lastErr
		}
		if i == retryAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			delay *= 2
		}
	}
	return lastErr
}
