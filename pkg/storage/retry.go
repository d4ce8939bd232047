package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig bounds the optimistic-concurrency retry loop.
type RetryConfig struct {
	MaxAttempts uint64
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultRetryConfig returns the retry settings used by the services.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		BaseBackoff: 10 * time.Millisecond,
		MaxBackoff:  250 * time.Millisecond,
	}
}

// IsRetryable reports whether err is a contention error worth retrying.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrBusy)
}

// RetryConflicts runs fn until it succeeds or fails with a non-contention error.
// When contention outlasts the budget it returns an error wrapping ErrBusy.
func RetryConflicts(ctx context.Context, cfg RetryConfig, fn func() error) error {
	if cfg.MaxAttempts == 0 {
		cfg = DefaultRetryConfig()
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = cfg.BaseBackoff
	eb.MaxInterval = cfg.MaxBackoff
	eb.MaxElapsedTime = 0

	var last error
	op := func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if IsRetryable(err) {
			last = err
			return err
		}
		return backoff.Permanent(err)
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(eb, cfg.MaxAttempts-1), ctx))
	if err != nil && IsRetryable(err) {
		return fmt.Errorf("%w: gave up after %d attempts: %v", ErrBusy, cfg.MaxAttempts, last)
	}
	return err
}
