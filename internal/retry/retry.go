package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
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

// DefaultConfig returns the backoff used for embedding requests
func DefaultConfig() Config {
	return Config{
		MaxRetries:      3,
		BaseDelay:       500 * time.Millisecond,
		MaxDelay:        10 * time.Second,
		BackoffMultiple: 2.0,
	}
}

// ErrorChecker reports whether an error is worth another attempt
type ErrorChecker func(err error) bool

// Options configures retry behavior
type Options struct {
	Config       Config
	ErrorChecker ErrorChecker // nil retries every error
	Logger       *slog.Logger // nil disables attempt logging
	Operation    string
}

// ExhaustedError wraps the last error once every attempt has failed
type ExhaustedError struct {
	Operation string
	Attempts  int
	Err       error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Operation, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// permanent marks an error that must not be retried
type permanent struct{ err error }

func (p *permanent) Error() string { return p.err.Error() }
func (p *permanent) Unwrap() error { return p.err }

// Permanent wraps err so Do returns it without further attempts
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanent{err: err}
}

// delay computes the wait before the given retry using exponential backoff
func (c Config) delay(retry int) time.Duration {
	d := time.Duration(float64(c.BaseDelay) * math.Pow(c.BackoffMultiple, float64(retry)))
	if d > c.MaxDelay {
		d = c.MaxDelay
	}
	return d
}

// Do runs fn until it succeeds, returns a non-retryable error, or runs out of
// attempts. Cancelling ctx aborts the wait between attempts.
func Do[T any](ctx context.Context, opts Options, fn func(attempt int) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= opts.Config.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := opts.Config.delay(attempt - 1)
			if opts.Logger != nil {
				opts.Logger.Warn("Retrying",
					"operation", opts.Operation,
					"attempt", attempt+1,
					"max_attempts", opts.Config.MaxRetries+1,
					"delay", wait,
					"error", lastErr,
				)
			}

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		}

		result, err := fn(attempt)
		if err == nil {
			if attempt > 0 && opts.Logger != nil {
				opts.Logger.Info("Retry succeeded", "operation", opts.Operation, "attempt", attempt+1)
			}
			return result, nil
		}

		var p *permanent
		if errors.As(err, &p) {
			return zero, p.err
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		if opts.ErrorChecker != nil && !opts.ErrorChecker(err) {
			return zero, err
		}
		lastErr = err
	}

	return zero, &ExhaustedError{
		Operation: opts.Operation,
		Attempts:  opts.Config.MaxRetries + 1,
		Err:       lastErr,
	}
}
