package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"newsdesk/apperr"
	"newsdesk/config"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy bounds every external provider call.
type RetryPolicy struct {
	Attempts        uint
	Timeout         time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// PolicyFromConfig builds the policy shared by every provider call.
func PolicyFromConfig(cfg config.ProvidersConfig) RetryPolicy {
	return RetryPolicy{
		Attempts:        cfg.Attempts,
		Timeout:         cfg.Timeout,
		InitialInterval: cfg.InitialBackoff,
		MaxInterval:     cfg.MaxBackoff,
	}
}

// Do runs fn with a per-attempt timeout and exponential backoff.
// Only transient failures and attempt timeouts are retried; when attempts run out
// the last error is returned as a TransientProviderError with code PROVIDER_UNAVAILABLE.
func Do[T any](ctx context.Context, p RetryPolicy, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	attempts := p.Attempts
	if attempts == 0 {
		attempts = 1
	}

	var lastErr error
	op := func() (T, error) {
		actx, cancel := ctx, context.CancelFunc(func() {})
		if p.Timeout > 0 {
			actx, cancel = context.WithTimeout(ctx, p.Timeout)
		}
		defer cancel()

		v, err := fn(actx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return v, backoff.Permanent(ctx.Err())
		}
		if apperr.IsTransient(err) || errors.Is(err, context.DeadlineExceeded) {
			return v, err
		}
		return v, backoff.Permanent(err)
	}

	v, err := backoff.Retry(ctx, op, backoff.WithBackOff(b), backoff.WithMaxTries(attempts))
	if err == nil {
		return v, nil
	}
	if ctx.Err() != nil {
		return v, ctx.Err()
	}
	if apperr.IsTransient(err) || errors.Is(err, context.DeadlineExceeded) {
		return v, apperr.New(apperr.KindTransient, apperr.CodeProviderUnavailable,
			&exhaustedError{name: name, attempts: attempts, err: lastErr})
	}
	return v, err
}

type exhaustedError struct {
	name     string
	attempts uint
	err      error
}

func (e *exhaustedError) Error() string {
	return fmt.Sprintf("%s: gave up after %d attempts: %v", e.name, e.attempts, e.err)
}

func (e *exhaustedError) Unwrap() error { return e.err }
