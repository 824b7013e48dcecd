package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerTripsAfterThreshold(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 2, Timeout: time.Hour})
	failing := func(context.Context) error { return errors.New("boom") }

	assert.Error(t, b.Call(context.Background(), failing))
	assert.Error(t, b.Call(context.Background(), failing))
	assert.Equal(t, StateOpen, b.State())

	err := b.Call(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreakerHalfOpenRecovers(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 1, Timeout: 10 * time.Millisecond})
	require.Error(t, b.Call(context.Background(), func(context.Context) error { return errors.New("boom") }))
	assert.Equal(t, StateOpen, b.State())

	time.Sleep(15 * time.Millisecond)
	require.NoError(t, b.Call(context.Background(), func(context.Context) error { return nil }))
	assert.Equal(t, StateClosed, b.State())
}

func TestLimiterAllowRespectsBurst(t *testing.T) {
	l := NewLimiter(LimiterOpts{Rate: 1, Burst: 2})
	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
}

func TestLimiterWaitBlocksUntilRefill(t *testing.T) {
	l := NewLimiter(LimiterOpts{Rate: 100, Burst: 1})
	require.True(t, l.Allow())

	start := time.Now()
	require.NoError(t, l.Wait(context.Background()))
	assert.Greater(t, time.Since(start), time.Duration(0))
}
