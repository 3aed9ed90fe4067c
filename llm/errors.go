// ABOUTME: Error taxonomy for text-generation calls: provider errors with retryability classification.
// ABOUTME: Rate-limit, timeout, and server errors are retryable; everything else is raised immediately.

package llm

import "encoding/json"

// SDKError is the base error type for this package. All other error types
// embed it directly or transitively.
type SDKError struct {
	Message string
	Cause   error
}

func (e *SDKError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *SDKError) Unwrap() error { return e.Cause }

// IsRetryable returns false for the base SDKError. Subtypes override this.
func (e *SDKError) IsRetryable() bool { return false }

// ProviderError is an error returned by a provider's API, carrying the HTTP
// status and an optional Retry-After hint in seconds.
type ProviderError struct {
	SDKError
	Provider   string
	StatusCode int
	Retryable  bool
	RetryAfter *float64
	Raw        json.RawMessage
}

func (e *ProviderError) Error() string     { return e.SDKError.Error() }
func (e *ProviderError) Unwrap() error     { return e.SDKError.Unwrap() }
func (e *ProviderError) IsRetryable() bool { return e.Retryable }

// RateLimitError represents a 429 response. Retryable.
type RateLimitError struct {
	ProviderError
}

func (e *RateLimitError) IsRetryable() bool { return true }

// ServerError represents a 5xx response. Retryable.
type ServerError struct {
	ProviderError
}

func (e *ServerError) IsRetryable() bool { return true }

// TimeoutError represents a request that exceeded its deadline. Retryable.
type TimeoutError struct {
	SDKError
}

func (e *TimeoutError) IsRetryable() bool { return true }

// AuthenticationError represents a 401/403 response. Not retryable.
type AuthenticationError struct {
	ProviderError
}

// InvalidRequestError represents a 4xx response other than auth or rate
// limiting. Not retryable.
type InvalidRequestError struct {
	ProviderError
}

// ConfigurationError indicates the client itself is misconfigured (missing
// API key, unknown model). Not retryable.
type ConfigurationError struct {
	SDKError
}

// NoObjectGeneratedError indicates schema-constrained output could not be
// parsed into the requested shape. Not retryable.
type NoObjectGeneratedError struct {
	SDKError
}

// extractProviderError pulls the embedded ProviderError out of any taxonomy
// subtype so retry logic can read RetryAfter hints.
func extractProviderError(err error) (*ProviderError, bool) {
	switch e := err.(type) {
	case *RateLimitError:
		return &e.ProviderError, true
	case *ServerError:
		return &e.ProviderError, true
	case *AuthenticationError:
		return &e.ProviderError, true
	case *InvalidRequestError:
		return &e.ProviderError, true
	case *ProviderError:
		return e, true
	default:
		return nil, false
	}
}

// classifyStatus builds the appropriate taxonomy error for an HTTP status.
func classifyStatus(provider string, status int, msg string, cause error, retryAfter *float64) error {
	pe := ProviderError{
		SDKError:   SDKError{Message: msg, Cause: cause},
		Provider:   provider,
		StatusCode: status,
		RetryAfter: retryAfter,
	}
	switch {
	case status == 429:
		pe.Retryable = true
		return &RateLimitError{ProviderError: pe}
	case status >= 500:
		pe.Retryable = true
		return &ServerError{ProviderError: pe}
	case status == 401 || status == 403:
		return &AuthenticationError{ProviderError: pe}
	default:
		return &InvalidRequestError{ProviderError: pe}
	}
}
