// Package retrier provides exponential backoff with jitter for transient
// failures.
package retrier

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

const (
	defaultBaseDelay = 1 * time.Second
	defaultMaxDelay  = 30 * time.Second
	defaultAttempts  = 5
	defaultJitter    = 0.1
)

// Retrier re-runs an operation with exponentially growing delays between
// attempts.
type Retrier struct {
	baseDelay time.Duration
	maxDelay  time.Duration
	attempts  int
	jitter    float64
}

// Option configures a Retrier.
type Option func(*Retrier)

// WithBaseDelay sets the delay before the first retry.
func WithBaseDelay(d time.Duration) Option {
	return func(r *Retrier) { r.baseDelay = d }
}

// WithMaxDelay caps the delay between attempts.
func WithMaxDelay(d time.Duration) Option {
	return func(r *Retrier) { r.maxDelay = d }
}

// WithAttempts sets the total number of attempts, including the first.
func WithAttempts(n int) Option {
	return func(r *Retrier) { r.attempts = n }
}

// WithJitter sets the jitter factor applied to each delay, 0 to 1.
func WithJitter(j float64) Option {
	return func(r *Retrier) { r.jitter = j }
}

func New(opts ...Option) *Retrier {
	r := &Retrier{
		baseDelay: defaultBaseDelay,
		maxDelay:  defaultMaxDelay,
		attempts:  defaultAttempts,
		jitter:    defaultJitter,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.attempts < 1 {
		r.attempts = 1
	}
	return r
}

type permanentError struct {
	err error
}

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Permanent marks an error as non-retryable; Do returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// Do runs fn until it succeeds, the attempts are exhausted, the error is
// permanent, or the context is cancelled.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	delay := r.baseDelay

	var err error
	for attempt := 0; attempt < r.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.jittered(delay)):
			}
			delay *= 2
			if delay > r.maxDelay {
				delay = r.maxDelay
			}
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		var perm permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
	}
	return err
}

// DoWithData runs fn with retries and returns its result.
func DoWithData[T any](r *Retrier, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, func(ctx context.Context) error {
		var innerErr error
		result, innerErr = fn(ctx)
		return innerErr
	})
	return result, err
}

func (r *Retrier) jittered(d time.Duration) time.Duration {
	if r.jitter <= 0 {
		return d
	}
	offset := (rand.Float64()*2 - 1) * r.jitter * float64(d)
	jittered := time.Duration(float64(d) + offset)
	if jittered < 0 {
		return 0
	}
	return jittered
}
