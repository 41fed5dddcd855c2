// Package utils provides small shared helpers: retry with exponential
// backoff, id generation, and BUR script manipulation.
package utils

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	autoimply "github.com/boorubot/autoimply"
)

// RetryConfig configures the retry behavior.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (0 means no
	// retries).
	MaxRetries uint64

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the delay between retries.
	MaxDelay time.Duration

	// RetryIf decides whether an error is retryable. Defaults to
	// autoimply.IsRetryable.
	RetryIf func(error) bool

	// OnRetry is called before each retry attempt.
	OnRetry func(err error, delay time.Duration)
}

// DefaultRetryConfig returns sensible defaults for retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		RetryIf:      autoimply.IsRetryable,
	}
}

// Retryer retries operations with exponential backoff. Non-retryable
// errors abort immediately.
type Retryer struct {
	cfg RetryConfig
}

// NewRetryer creates a retryer with the given configuration.
func NewRetryer(cfg RetryConfig) *Retryer {
	if cfg.RetryIf == nil {
		cfg.RetryIf = autoimply.IsRetryable
	}
	if cfg.InitialDelay == 0 {
		cfg.InitialDelay = 1 * time.Second
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	return &Retryer{cfg: cfg}
}

// Do executes fn, retrying retryable failures until MaxRetries is
// exhausted or the context is canceled.
func (r *Retryer) Do(ctx context.Context, fn func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.cfg.InitialDelay
	bo.MaxInterval = r.cfg.MaxDelay
	bo.MaxElapsedTime = 0

	wrapped := func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if !r.cfg.RetryIf(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, r.cfg.MaxRetries), ctx)
	notify := func(err error, delay time.Duration) {
		if r.cfg.OnRetry != nil {
			r.cfg.OnRetry(err, delay)
		}
	}
	return backoff.RetryNotify(wrapped, policy, notify)
}

// DoWithResult executes fn with retry logic and returns its result.
func DoWithResult[T any](ctx context.Context, r *Retryer, fn func() (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, func() error {
		var innerErr error
		result, innerErr = fn()
		return innerErr
	})
	return result, err
}
