// Package retry re-runs session operations that failed for transient reasons.
package retry

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/rileyhilliard/sshwrap/internal/errors"
	"github.com/rileyhilliard/sshwrap/internal/logger"
	goretry "github.com/sethvargo/go-retry"
)

const (
	DefaultMaxRetry = 3
	DefaultDuration = time.Second
)

// Policy controls how many times and how often an operation is retried.
type Policy struct {
	// MaxRetry is the retry limit. Zero means DefaultMaxRetry; one means a
	// single attempt with no retry at all.
	MaxRetry int
	// Duration is the constant wait between attempts.
	Duration time.Duration
	// Min and Max, when both set, switch to exponential backoff from Min
	// capped at Max.
	Min time.Duration
	Max time.Duration

	Log logger.Logger
}

// Limit returns the effective retry limit.
func (p Policy) Limit() int {
	if p.MaxRetry <= 0 {
		return DefaultMaxRetry
	}
	return p.MaxRetry
}

// Backoff returns the go-retry backoff for the policy, without a retry cap.
func (p Policy) Backoff() goretry.Backoff {
	if p.Min > 0 && p.Max > 0 {
		return goretry.WithCappedDuration(p.Max, goretry.NewExponential(p.Min))
	}
	d := p.Duration
	if d <= 0 {
		d = DefaultDuration
	}
	return goretry.NewConstant(d)
}

// ResetFunc restores a clean state before the next attempt, e.g. by
// dropping the master connection.
type ResetFunc func(ctx context.Context) error

// Do runs work until it succeeds, fails with a non-retryable error, or the
// retry limit is used up. After every retryable failure reset is called
// before the backoff wait. An exhausted error is annotated with the attempt
// count and limit.
func Do[T any](ctx context.Context, p Policy, reset ResetFunc, work func(ctx context.Context) (T, error)) (T, error) {
	log := p.Log
	if log == nil {
		log = logger.Noop()
	}

	limit := p.Limit()
	if limit == 1 {
		return work(ctx)
	}

	var (
		result   T
		attempts int
	)
	err := goretry.Do(ctx, goretry.WithMaxRetries(uint64(limit), p.Backoff()), func(ctx context.Context) error {
		attempts++
		v, err := work(ctx)
		if err == nil {
			result = v
			return nil
		}
		if !errors.IsRetryable(err) {
			return err
		}

		log.Debug("attempt %d/%d failed, will retry: %v", attempts, limit+1, err)
		if reset != nil {
			if rerr := reset(ctx); rerr != nil {
				log.Debug("reset before retry: %v", rerr)
			}
		}
		return goretry.RetryableError(err)
	})
	if err == nil {
		return result, nil
	}

	var se *errors.SessionError
	if errors.IsRetryable(err) && stderrors.As(err, &se) {
		se.Attempts = attempts
		se.MaxRetry = limit
	}
	return result, err
}
