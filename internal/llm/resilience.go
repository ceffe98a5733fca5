package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
)

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

var (
	// ErrCircuitOpen is returned while the breaker rejects calls.
	ErrCircuitOpen = errors.New("circuit breaker open")
	// ErrEmptyResponse is returned when the model answers with no choices.
	ErrEmptyResponse = errors.New("empty completion response")

	errInvalidConfig = errors.New("invalid backoff configuration")
)

// permanentError marks failures that retrying cannot fix.
type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// classify wraps client errors (4xx other than 429) as permanent.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && isPermanentStatus(apiErr.HTTPStatusCode) {
		return permanentError{err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && isPermanentStatus(reqErr.HTTPStatusCode) {
		return permanentError{err}
	}
	return err
}

func isPermanentStatus(code int) bool {
	return code >= 400 && code < 500 && code != http.StatusTooManyRequests
}

// withResilience runs call with retries, exponential backoff and a circuit
// breaker.
func withResilience[T any](
	ctx context.Context,
	backoff BackoffConfig,
	cb *gobreaker.CircuitBreaker,
	call func(context.Context) (T, error),
) (T, error) {
	var zero T
	if backoff.MaxRetries < 0 || backoff.InitialInterval <= 0 {
		return zero, errInvalidConfig
	}

	var attempt int
	var lastErr error

	for {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		result, err := cb.Execute(func() (interface{}, error) {
			v, callErr := call(ctx)
			if callErr != nil {
				return nil, classify(callErr)
			}
			return v, nil
		})

		if err == nil {
			v, ok := result.(T)
			if !ok {
				return zero, fmt.Errorf("unexpected result type from circuit breaker")
			}
			return v, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		var perm permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}

		lastErr = err
		if attempt >= backoff.MaxRetries {
			return zero, lastErr
		}

		// Backoff with exponential delay.
		delay := backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > backoff.MaxInterval && backoff.MaxInterval > 0 {
			delay = backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}

		attempt++
	}
}
