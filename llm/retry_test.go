// ABOUTME: Tests for retry policy delay calculation, retryability classification, and the Retry loop.
// ABOUTME: Covers jitter bounds, max delay capping, RetryAfter floors, and fatal-error short-circuiting.

package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	if p.MaxRetries != 4 {
		t.Errorf("expected MaxRetries=4, got %d", p.MaxRetries)
	}
	if p.BaseDelay != time.Second {
		t.Errorf("expected BaseDelay=1s, got %v", p.BaseDelay)
	}
	if !p.Jitter {
		t.Error("expected Jitter enabled")
	}
}

func TestCalculateDelayExponential(t *testing.T) {
	p := RetryPolicy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Minute, BackoffMultiplier: 2.0}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
	}
	for _, tc := range cases {
		if got := p.CalculateDelay(tc.attempt); got != tc.want {
			t.Errorf("attempt %d: expected %v, got %v", tc.attempt, tc.want, got)
		}
	}
}

func TestCalculateDelayCappedAtMax(t *testing.T) {
	p := RetryPolicy{BaseDelay: time.Second, MaxDelay: 5 * time.Second, BackoffMultiplier: 10.0}
	if got := p.CalculateDelay(3); got != 5*time.Second {
		t.Errorf("expected cap at 5s, got %v", got)
	}
}

func TestCalculateDelayJitterBounds(t *testing.T) {
	p := RetryPolicy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Minute, BackoffMultiplier: 2.0, Jitter: true}
	for i := 0; i < 50; i++ {
		d := p.CalculateDelay(2)
		if d < 0 || d > 400*time.Millisecond {
			t.Fatalf("jittered delay %v out of [0, 400ms]", d)
		}
	}
}

func TestShouldRetryRespectsRetryability(t *testing.T) {
	p := RetryPolicy{MaxRetries: 3}

	rateLimit := &RateLimitError{ProviderError: ProviderError{SDKError: SDKError{Message: "429"}}}
	if !p.ShouldRetry(rateLimit, 0) {
		t.Error("rate limit errors should be retryable")
	}

	auth := &AuthenticationError{ProviderError: ProviderError{SDKError: SDKError{Message: "401"}}}
	if p.ShouldRetry(auth, 0) {
		t.Error("authentication errors must not be retried")
	}

	if p.ShouldRetry(errors.New("plain"), 0) {
		t.Error("non-taxonomy errors must not be retried")
	}

	if p.ShouldRetry(rateLimit, 3) {
		t.Error("must stop once attempt reaches MaxRetries")
	}

	if p.ShouldRetry(nil, 0) {
		t.Error("nil error must not be retried")
	}
}

func TestRetryStopsOnSuccess(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 5, BackoffMultiplier: 2.0}

	calls := 0
	err := Retry(context.Background(), policy, func() error {
		calls++
		if calls < 3 {
			return &ServerError{ProviderError: ProviderError{SDKError: SDKError{Message: "503"}, Retryable: true}}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetryFatalErrorRaisedImmediately(t *testing.T) {
	policy := DefaultRetryPolicy()

	calls := 0
	fatal := &InvalidRequestError{ProviderError: ProviderError{SDKError: SDKError{Message: "400"}}}
	err := Retry(context.Background(), policy, func() error {
		calls++
		return fatal
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("expected the fatal error back, got %v", err)
	}
	if calls != 1 {
		t.Errorf("fatal error must not be retried, got %d calls", calls)
	}
}

func TestRetryExhaustsBudget(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 2, BackoffMultiplier: 2.0}

	calls := 0
	err := Retry(context.Background(), policy, func() error {
		calls++
		return &RateLimitError{ProviderError: ProviderError{SDKError: SDKError{Message: "429"}, Retryable: true}}
	})
	if err == nil {
		t.Fatal("expected error after budget exhaustion")
	}
	if calls != 3 {
		t.Errorf("expected 1 initial + 2 retries = 3 calls, got %d", calls)
	}
}

func TestApplyRetryAfterActsAsFloor(t *testing.T) {
	after := 2.5
	err := &RateLimitError{ProviderError: ProviderError{
		SDKError:   SDKError{Message: "429"},
		RetryAfter: &after,
	}}

	if got := applyRetryAfter(err, time.Second); got != 2500*time.Millisecond {
		t.Errorf("expected RetryAfter floor of 2.5s, got %v", got)
	}
	if got := applyRetryAfter(err, 10*time.Second); got != 10*time.Second {
		t.Errorf("larger calculated delay must win, got %v", got)
	}
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	policy := RetryPolicy{MaxRetries: 5, BaseDelay: time.Hour, BackoffMultiplier: 2.0}
	calls := 0
	err := Retry(ctx, policy, func() error {
		calls++
		return &ServerError{ProviderError: ProviderError{SDKError: SDKError{Message: "503"}, Retryable: true}}
	})
	if err == nil {
		t.Fatal("expected error when context cancelled")
	}
	if calls != 1 {
		t.Errorf("cancelled context must not allow a second attempt, got %d calls", calls)
	}
}
