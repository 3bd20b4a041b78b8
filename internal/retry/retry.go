// Package retry runs store operations under a bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrExhausted is wrapped into the error returned once every attempt failed.
var ErrExhausted = errors.New("retries exhausted")

type Policy struct {
	// MaxAttempts counts the first try. Values below 1 mean a single try.
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64

	// BeforeFinal runs once before the last attempt, typically a reconnect.
	// Its error is reported through OnRetry and does not stop the last attempt.
	BeforeFinal func(ctx context.Context) error

	// Retryable decides whether an error is worth another attempt.
	// Nil retries everything except context cancellation.
	Retryable func(err error) bool

	// OnRetry observes each failed attempt that will be retried.
	OnRetry func(op string, attempt int, err error)

	// Sleep waits between attempts; nil uses a timer honoring ctx.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Default is three attempts starting at 100ms and doubling.
func Default() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		Multiplier:  2,
	}
}

// Delay returns the pause after the given failed attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	m := p.Multiplier
	if m < 1 {
		m = 1
	}
	return time.Duration(float64(p.BaseDelay) * math.Pow(m, float64(attempt-1)))
}

// Do runs fn until it succeeds, returns a non-retryable error, or the
// attempts run out.
func (p Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		last = err

		if !p.retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		if p.OnRetry != nil {
			p.OnRetry(op, attempt, err)
		}

		if err := p.sleep(ctx, p.Delay(attempt)); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		if attempt == attempts-1 && p.BeforeFinal != nil {
			if rerr := p.BeforeFinal(ctx); rerr != nil && p.OnRetry != nil {
				p.OnRetry(op+": reconnect", attempt, rerr)
			}
		}
	}

	return fmt.Errorf("%s: %w after %d attempts: %w", op, ErrExhausted, attempts, last)
}

func (p Policy) retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return true
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
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

// Value runs fn under p and returns its result.
func Value[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
