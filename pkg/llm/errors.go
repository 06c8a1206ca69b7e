package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// LLMError carries the provider status code and message for a failed
// completion call. Provider adapters wrap their SDK errors in one of the
// concrete types below so callers can classify failures without knowing
// which provider produced them.
type LLMError struct {
	Code    int
	Message string
	Cause   error
}

func (e *LLMError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("llm error %d: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("llm error %d: %s", e.Code, e.Message)
}

func (e *LLMError) Unwrap() error { return e.Cause }

// RateLimitError: the provider throttled the request (429).
type RateLimitError struct{ LLMError }

// ServerError: the provider failed on its side (5xx, overloaded).
type ServerError struct{ LLMError }

// AuthError: the credentials were rejected (401, 403).
type AuthError struct{ LLMError }

// ContextLengthError: the request does not fit the model's context window.
type ContextLengthError struct{ LLMError }

// Retryable reports whether err is transient. Rate limits and provider-side
// failures clear on their own; auth and context-length problems do not.
func Retryable(err error) bool {
	var rl *RateLimitError
	var se *ServerError
	return errors.As(err, &rl) || errors.As(err, &se)
}

const (
	retryBaseDelay = time.Second
	retryMaxDelay  = 30 * time.Second
)

// WithRetry runs fn up to maxAttempts times, backing off exponentially with
// jitter between retryable failures. Non-retryable errors return
// immediately; a cancelled context interrupts the wait.
func WithRetry(ctx context.Context, maxAttempts int, fn func() error) error {
	var lastErr error
	for attempt := range maxAttempts {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !Retryable(lastErr) {
			return lastErr
		}
		if attempt == maxAttempts-1 {
			break
		}

		delay := min(retryBaseDelay<<attempt, retryMaxDelay)
		// 75% of the exponential delay plus up to 50% jitter.
		wait := delay*3/4 + time.Duration(rand.Float64()*0.5*float64(delay))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("max retries (%d) exceeded: %w", maxAttempts, lastErr)
}
