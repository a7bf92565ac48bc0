package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nucleus/doris-core/internal/core"
	"github.com/nucleus/doris-core/internal/logger"
)

func fastPolicy(buf *logger.BufferLogger) Policy {
	return Policy{MaxRetries: 3, Delay: time.Millisecond, Logger: buf}
}

func TestPolicy_SucceedsOnThirdAttempt(t *testing.T) {
	buf := logger.NewBufferLogger()
	calls := 0
	res := fastPolicy(buf).Do(context.Background(), func(ctx context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	})

	assert.True(t, res.Succeeded)
	assert.False(t, res.Exhausted())
	assert.Equal(t, 3, res.Attempts)
	assert.NoError(t, res.Err)
	assert.Len(t, buf.Warnings(), 2)
}

func TestPolicy_ExhaustedIsDistinguishable(t *testing.T) {
	res := fastPolicy(logger.NewBufferLogger()).Do(context.Background(), func(ctx context.Context) (bool, error) {
		return false, nil
	})

	assert.False(t, res.Succeeded)
	assert.True(t, res.Exhausted())
	assert.Equal(t, 4, res.Attempts)
	assert.ErrorIs(t, res.Err, ErrFalseOutcome)
}

func TestPolicy_KeepsLastError(t *testing.T) {
	calls := 0
	res := fastPolicy(logger.NewBufferLogger()).Do(context.Background(), func(ctx context.Context) (bool, error) {
		calls++
		return false, core.Ingestf("attempt %d", calls)
	})

	assert.True(t, res.Exhausted())
	assert.EqualError(t, res.Err, "E_INGEST: attempt 4")
}

func TestPolicy_FirstAttemptIsImmediate(t *testing.T) {
	p := Policy{MaxRetries: 3, Delay: time.Hour, Logger: logger.NopLogger}
	start := time.Now()
	res := p.Do(context.Background(), func(ctx context.Context) (bool, error) {
		return true, nil
	})

	assert.True(t, res.Succeeded)
	assert.Equal(t, 1, res.Attempts)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPolicy_PermanentErrorStops(t *testing.T) {
	res := fastPolicy(logger.NewBufferLogger()).Do(context.Background(), func(ctx context.Context) (bool, error) {
		return false, core.Configurationf("no reachable write coordinator")
	})

	assert.Equal(t, 1, res.Attempts)
	assert.True(t, res.Aborted)
	assert.False(t, res.Exhausted())
	assert.True(t, core.IsCode(res.Err, core.CodeConfiguration))
}

func TestPolicy_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxRetries: 5, Delay: time.Hour, Logger: logger.NopLogger}

	res := p.Do(ctx, func(ctx context.Context) (bool, error) {
		cancel()
		return false, errors.New("boom")
	})

	assert.Equal(t, 1, res.Attempts)
	assert.True(t, res.Aborted)
	assert.False(t, res.Succeeded)
}

func TestPolicy_ZeroRetries(t *testing.T) {
	res := Policy{Logger: logger.NopLogger}.Do(context.Background(), func(ctx context.Context) (bool, error) {
		return false, nil
	})
	assert.Equal(t, 1, res.Attempts)
	assert.True(t, res.Exhausted())
}
