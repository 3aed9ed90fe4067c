// ABOUTME: Retry with exponential backoff and full jitter for text-generation calls.
// ABOUTME: Retries only errors whose IsRetryable reports true; RetryAfter hints act as a delay floor.

package llm

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// RetryPolicy configures backoff behavior for provider calls.
type RetryPolicy struct {
	// MaxRetries is the number of retry attempts beyond the initial call.
	MaxRetries int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the delay between retries.
	MaxDelay time.Duration

	// BackoffMultiplier controls exponential growth between retries.
	BackoffMultiplier float64

	// Jitter randomizes each delay in [0, calculated] to avoid thundering herds.
	Jitter bool

	// OnRetry is invoked before each retry sleep with the triggering error,
	// the 0-indexed attempt number, and the delay about to be applied.
	OnRetry func(err error, attempt int, delay time.Duration)
}

// DefaultRetryPolicy returns the standard policy: 4 retries (5 attempts
// total), 1s base, 60s cap, 2x backoff, jitter on.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        4,
		BaseDelay:         time.Second,
		MaxDelay:          60 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// CalculateDelay computes the backoff delay for a 0-indexed attempt.
func (p RetryPolicy) CalculateDelay(attempt int) time.Duration {
	delayFloat := float64(p.BaseDelay) * math.Pow(p.BackoffMultiplier, float64(attempt))
	if delayFloat > float64(p.MaxDelay) {
		delayFloat = float64(p.MaxDelay)
	}
	delay := time.Duration(delayFloat)
	if p.Jitter && delay > 0 {
		delay = time.Duration(rand.Int64N(int64(delay) + 1))
	}
	return delay
}

// ShouldRetry reports whether the error warrants another attempt.
func (p RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.MaxRetries {
		return false
	}
	type retryable interface {
		IsRetryable() bool
	}
	if r, ok := err.(retryable); ok {
		return r.IsRetryable()
	}
	return false
}

// Retry executes fn under the policy, sleeping between attempts. A RetryAfter
// hint on the error raises the delay floor. Context cancellation ends the
// loop with the last error.
func Retry(ctx context.Context, policy RetryPolicy, fn func() error) error {
	var lastErr error

	for attempt := 0; ; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !policy.ShouldRetry(lastErr, attempt) {
			return lastErr
		}

		delay := applyRetryAfter(lastErr, policy.CalculateDelay(attempt))

		if policy.OnRetry != nil {
			policy.OnRetry(lastErr, attempt, delay)
		}

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(delay):
		}
	}
}

// applyRetryAfter returns the greater of the calculated delay and the error's
// RetryAfter hint, if any.
func applyRetryAfter(err error, calculated time.Duration) time.Duration {
	if pe, ok := extractProviderError(err); ok && pe.RetryAfter != nil {
		hinted := time.Duration(*pe.RetryAfter * float64(time.Second))
		if hinted > calculated {
			return hinted
		}
	}
	return calculated
}
