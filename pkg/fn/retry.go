package fn

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// RetryOpts configures Retry.
type RetryOpts struct {
	MaxAttempts int
	// InitialWait is the pause after the first failure; it doubles after each
	// further failure, capped at MaxWait when MaxWait > 0.
	InitialWait time.Duration
	MaxWait     time.Duration
	Jitter      bool
	// Sleep pauses between attempts. Nil means a timer that honours ctx.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry observes a failed attempt and the wait that follows it.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultRetry is three attempts starting at one second.
var DefaultRetry = RetryOpts{
	MaxAttempts: 3,
	InitialWait: time.Second,
	MaxWait:     30 * time.Second,
	Jitter:      true,
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying. Retry stops at the first
// permanent error and returns it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Backoff returns the wait after the given zero-based failed attempt:
// InitialWait * 2^attempt, capped at MaxWait.
func (o RetryOpts) Backoff(attempt int) time.Duration {
	wait := o.InitialWait
	for i := 0; i < attempt; i++ {
		wait *= 2
		if o.MaxWait > 0 && wait >= o.MaxWait {
			return o.MaxWait
		}
	}
	if o.MaxWait > 0 && wait > o.MaxWait {
		wait = o.MaxWait
	}
	return wait
}

// Retry calls f until it succeeds, returns a permanent error, or
// MaxAttempts calls have been made. There is no wait after the last attempt.
func Retry[T any](ctx context.Context, opts RetryOpts, f func(context.Context) Result[T]) Result[T] {
	sleep := opts.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	attempts := max(opts.MaxAttempts, 1)

	var r Result[T]
	for attempt := 0; attempt < attempts; attempt++ {
		r = f(ctx)
		if r.IsOk() || IsPermanent(r.err) || attempt == attempts-1 {
			return r
		}

		wait := opts.Backoff(attempt)
		if opts.Jitter {
			wait = time.Duration(float64(wait) * (0.5 + rand.Float64()))
		}
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, r.err, wait)
		}
		if err := sleep(ctx, wait); err != nil {
			return Err[T](err)
		}
	}
	return r
}

// RetryStage wraps a Stage with Retry.
func RetryStage[In, Out any](opts RetryOpts, stage Stage[In, Out]) Stage[In, Out] {
	return func(ctx context.Context, in In) Result[Out] {
		return Retry(ctx, opts, func(ctx context.Context) Result[Out] {
			return stage(ctx, in)
		})
	}
}
