// Package retry runs store operations with bounded exponential backoff.
// Only errors classified as transient are retried.
package retry

import (
	"context"
	"time"

	"fjacquet/recon-ledger/internal/logging"
	"fjacquet/recon-ledger/internal/reconerror"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds the retries of one operation.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// DefaultPolicy makes three attempts starting at 100ms.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Multiplier:      2,
	}
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	if p.Multiplier > 0 {
		b.Multiplier = p.Multiplier
	}
	b.MaxElapsedTime = 0
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// Do calls fn until it succeeds, returns a non-transient error, the attempts
// are exhausted or ctx is done. The last error is returned unchanged.
func Do(ctx context.Context, p Policy, logger logging.Logger, op string, fn func(context.Context) error) error {
	logger = logging.OrDefault(logger)
	attempt := 0
	operation := func() error {
		attempt++
		err := fn(ctx)
		if err != nil && !reconerror.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.WithError(err).WithFields(
			logging.F(logging.FieldOperation, op),
			logging.F(logging.FieldAttempt, attempt),
			logging.F("wait", wait.String()),
		).Warn("Transient failure, retrying")
	}
	return backoff.RetryNotify(operation, p.backOff(ctx), notify)
}

// Value is Do for operations that return a result.
func Value[T any](ctx context.Context, p Policy, logger logging.Logger, op string, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, p, logger, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
