package retry

import (
	"context"
	"math"
	"time"
)

// Config holds the configuration for retry logic
type Config struct {
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

// DefaultConfig returns the retry configuration used by the HTTP adapters
func DefaultConfig() Config {
	return Config{
		MaxRetries:      3,
		BaseDelay:       200 * time.Millisecond,
		MaxDelay:        5 * time.Second,
		BackoffMultiple: 2.0,
	}
}

// ErrorChecker reports whether an attempt's outcome should be retried
type ErrorChecker func(err error, statusCode int, responseBody []byte) bool

// Attempt is one try of a retryable operation. It reports the HTTP status
// and body alongside the result so the ErrorChecker can inspect them.
type Attempt[T any] func(attempt int) (result T, statusCode int, responseBody []byte, err error)

// Logger receives printf-style progress messages. zap's SugaredLogger.Infof fits.
type Logger func(template string, args ...any)

// Options configures retry behavior
type Options struct {
	Config       Config
	ErrorChecker ErrorChecker
	Logger       Logger
	APIName      string
}

// Delay computes the backoff before retry number attempt (zero based)
func (c Config) Delay(attempt int) time.Duration {
	delay := time.Duration(float64(c.BaseDelay) * math.Pow(c.BackoffMultiple, float64(attempt)))
	if delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	return delay
}

func (o Options) logf(template string, args ...any) {
	if o.Logger != nil {
		o.Logger(template, args...)
	}
}

// Execute runs fn until it succeeds, returns a non-retryable error, or the
// configured retries run out.
func Execute[T any](ctx context.Context, opts Options, fn Attempt[T]) (T, error) {
	var zero T
	var lastErr error
	var lastStatusCode int
	var lastResponseBody []byte
	total := opts.Config.MaxRetries + 1

	for attempt := 0; attempt < total; attempt++ {
		if attempt > 0 {
			delay := opts.Config.Delay(attempt - 1)
			opts.logf("%s API retry attempt %d/%d after %v delay", opts.APIName, attempt+1, total, delay)

			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		}

		result, statusCode, responseBody, err := fn(attempt)
		lastErr = err
		lastStatusCode = statusCode
		lastResponseBody = responseBody

		if opts.ErrorChecker != nil && opts.ErrorChecker(err, statusCode, responseBody) && attempt < opts.Config.MaxRetries {
			if err != nil {
				opts.logf("%s API error (attempt %d/%d): %v", opts.APIName, attempt+1, total, err)
			} else {
				opts.logf("%s API retryable status (attempt %d/%d): %d", opts.APIName, attempt+1, total, statusCode)
			}
			continue
		}

		if err != nil {
			return zero, err
		}
		if attempt > 0 {
			opts.logf("%s API request succeeded on attempt %d/%d", opts.APIName, attempt+1, total)
		}
		return result, nil
	}

	if lastErr != nil {
		return zero, lastErr
	}

	return zero, &ExhaustedError{
		APIName:        opts.APIName,
		MaxAttempts:    total,
		LastStatusCode: lastStatusCode,
		LastResponse:   lastResponseBody,
	}
}

// ExhaustedError is returned when every attempt was retryable but none succeeded
type ExhaustedError struct {
	APIName        string
	MaxAttempts    int
	LastStatusCode int
	LastResponse   []byte
}

func (e *ExhaustedError) Error() string {
	return "retry attempts exhausted for " + e.APIName + " API"
}
