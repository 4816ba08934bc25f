package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestLimiterStore_GetLimiterAndCleanup(t *testing.T) {
	store := NewLimiterStore(rate.Limit(1), 1)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	a := store.GetLimiter("a")
	assert.Same(t, a, store.GetLimiter("a"))
	store.GetLimiter("b")
	assert.Equal(t, 2, store.Len())

	now = now.Add(5 * time.Minute)
	store.GetLimiter("b")

	now = now.Add(6 * time.Minute)
	assert.Equal(t, 1, store.Cleanup(10*time.Minute))
	assert.Equal(t, 1, store.Len())
	assert.NotSame(t, a, store.GetLimiter("a"))
}

func TestTokenLimiter_Wait(t *testing.T) {
	l := newTokenLimiter(100, time.Hour)
	l.pollInterval = time.Millisecond

	require.NoError(t, l.Wait(context.Background(), 60))
	assert.Equal(t, 40, l.GetRemaining())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Wait(ctx, 50), context.DeadlineExceeded)

	assert.Error(t, l.Wait(context.Background(), 101))
}

func TestTokenLimiter_Refill(t *testing.T) {
	l := newTokenLimiter(10, 10*time.Millisecond)
	l.pollInterval = time.Millisecond

	require.NoError(t, l.Wait(context.Background(), 10))
	require.NoError(t, l.Wait(context.Background(), 10))
	assert.Equal(t, 0, l.GetRemaining())
}
