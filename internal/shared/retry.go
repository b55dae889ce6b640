package shared

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds an outbound call: each attempt gets its own timeout and failed attempts are retried
// with exponential backoff until MaxAttempts is reached.
type RetryPolicy struct {
	MaxAttempts     int
	Timeout         time.Duration
	InitialInterval time.Duration
	OnRetry         func(err error, wait time.Duration)
}

// DefaultRetryPolicy is three attempts with a 15 second per-attempt timeout.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Timeout: 15 * time.Second, InitialInterval: 250 * time.Millisecond}
}

// NewRetryPolicy builds a policy from the [HTTPConfig], filling zero values from [DefaultRetryPolicy].
func NewRetryPolicy(cfg HTTPConfig) RetryPolicy {
	p := DefaultRetryPolicy()
	if cfg.MaxAttempts > 0 {
		p.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.Timeout > 0 {
		p.Timeout = cfg.Timeout
	}
	return p
}

// Permanent wraps err so [RetryPolicy.Do] returns it without further attempts.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns a [Permanent] error, the attempts run out, or ctx is done.
//
// The context handed to op carries the per-attempt deadline; op must finish reading any response body before returning.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	exp := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		exp.InitialInterval = p.InitialInterval
	}
	exp.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts-1)), ctx)

	attempt := func() error {
		if p.Timeout <= 0 {
			return op(ctx)
		}
		attemptCtx, cancel := context.WithTimeout(ctx, p.Timeout)
		defer cancel()
		return op(attemptCtx)
	}

	return backoff.RetryNotify(attempt, b, p.OnRetry)
}
