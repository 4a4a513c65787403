package sources

import (
	"context"
	"errors"
	"time"
)

// Backoff retries an operation with exponential delay.
type Backoff struct {
	base       time.Duration
	maxRetries int
}

// NewBackoff returns a Backoff making at most maxRetries extra attempts.
func NewBackoff(base time.Duration, maxRetries int) Backoff {
	return Backoff{base: base, maxRetries: maxRetries}
}

// Do calls fn until it succeeds, returns a permanent error, runs out of
// attempts or ctx ends.
func (b Backoff) Do(ctx context.Context, fn func(attempt int) error) error {
	var err error
	for i := 0; i <= b.maxRetries; i++ {
		err = fn(i)
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if i == b.maxRetries {
			break
		}
		t := time.NewTimer(time.Duration(1<<i) * b.base)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return err
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }

// permanent marks err as not worth retrying.
func permanent(err error) error { return &permanentError{err: err} }
