// Package retry runs boolean-outcome operations under a bounded, fixed-delay
// retry policy and reports how the attempts went.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nucleus/doris-core/internal/core"
	"github.com/nucleus/doris-core/internal/logger"
)

const (
	DefaultMaxRetries = 3
	DefaultDelay      = 3 * time.Second
)

// ErrFalseOutcome is recorded when an operation reports failure without an
// error of its own.
var ErrFalseOutcome = errors.New("operation reported failure")

// Operation is one attempt. It returns true on success.
type Operation func(ctx context.Context) (bool, error)

// Policy retries an operation up to MaxRetries times after the first attempt,
// waiting Delay between attempts. The delay is fixed, not exponential, and is
// not applied before the first attempt.
type Policy struct {
	MaxRetries int
	Delay      time.Duration
	Logger     logger.Logger
}

// DefaultPolicy returns 3 retries with a 3 second delay.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: DefaultMaxRetries, Delay: DefaultDelay}
}

// Result describes the outcome of Do.
type Result struct {
	// Succeeded is true when some attempt returned true.
	Succeeded bool
	// Attempts counts every call made to the operation.
	Attempts int
	// Err is the last failure seen, nil on success.
	Err error
	// Aborted is true when retrying stopped early because the failure was
	// not retryable or the context ended.
	Aborted bool
}

// Exhausted reports that every permitted attempt was made and failed.
func (r Result) Exhausted() bool {
	return !r.Succeeded && !r.Aborted
}

// Do runs op until it succeeds, fails permanently, the context ends, or the
// retry budget is spent.
func (p Policy) Do(ctx context.Context, op Operation) Result {
	log := logger.OrDefault(p.Logger)
	maxRetries := p.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	var res Result
	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(maxRetries)),
		ctx,
	)

	err := backoff.RetryNotify(func() error {
		res.Attempts++
		ok, err := op(ctx)
		if ok {
			return nil
		}
		if err == nil {
			err = ErrFalseOutcome
		}
		res.Err = err
		if ctx.Err() != nil || !core.IsRetryable(err) {
			res.Aborted = true
			return backoff.Permanent(err)
		}
		return err
	}, bo, func(err error, next time.Duration) {
		log.Warnf("attempt failed: %v; will retry after %s, retry times: %d/%d", err, next, res.Attempts, maxRetries)
	})

	if err == nil {
		res.Succeeded = true
		res.Err = nil
		return res
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		res.Aborted = true
		if res.Err == nil {
			res.Err = ctxErr
		}
	}
	return res
}
