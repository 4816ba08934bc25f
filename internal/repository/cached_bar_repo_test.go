package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang-backtest/internal/backtest"
	"golang-backtest/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLoader struct {
	calls   int32
	err     error
	release chan struct{}
}

func (l *countingLoader) LoadBars(ctx context.Context, ticker string, start, end time.Time, interval string) ([]backtest.Bar, error) {
	atomic.AddInt32(&l.calls, 1)
	if l.release != nil {
		<-l.release
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.err != nil {
		return nil, l.err
	}
	return []backtest.Bar{{Date: start, Close: 100}}, nil
}

func TestCachedBarRepository_HitsAndEviction(t *testing.T) {
	loader := &countingLoader{}
	repo, err := NewCachedBarRepository(loader, 2, logger.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	start, end := date(2024, 1, 1), date(2024, 6, 30)

	_, err = repo.LoadBars(ctx, "AAPL", start, end, "1d")
	require.NoError(t, err)
	_, err = repo.LoadBars(ctx, "aapl", start, end, "1d")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&loader.calls), "ticker case is normalized in the key")

	_, _ = repo.LoadBars(ctx, "MSFT", start, end, "1d")
	_, _ = repo.LoadBars(ctx, "AAPL", start, end, "1d") // touch AAPL so MSFT is oldest
	_, _ = repo.LoadBars(ctx, "GOOG", start, end, "1d")
	assert.Equal(t, 2, repo.Len())
	assert.Equal(t, int32(3), atomic.LoadInt32(&loader.calls))

	_, _ = repo.LoadBars(ctx, "AAPL", start, end, "1d")
	assert.Equal(t, int32(3), atomic.LoadInt32(&loader.calls))

	_, _ = repo.LoadBars(ctx, "MSFT", start, end, "1d")
	assert.Equal(t, int32(4), atomic.LoadInt32(&loader.calls), "evicted series is reloaded")
}

func TestCachedBarRepository_KeyIncludesRangeAndInterval(t *testing.T) {
	loader := &countingLoader{}
	repo, err := NewCachedBarRepository(loader, 10, logger.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	_, _ = repo.LoadBars(ctx, "AAPL", date(2024, 1, 1), date(2024, 6, 30), "1d")
	_, _ = repo.LoadBars(ctx, "AAPL", date(2024, 1, 1), date(2024, 7, 31), "1d")
	_, _ = repo.LoadBars(ctx, "AAPL", date(2024, 1, 1), date(2024, 6, 30), "1wk")
	assert.Equal(t, int32(3), atomic.LoadInt32(&loader.calls))
}

func TestCachedBarRepository_ErrorsAreNotCached(t *testing.T) {
	loader := &countingLoader{err: errors.New("upstream down")}
	repo, err := NewCachedBarRepository(loader, 2, logger.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	_, err = repo.LoadBars(ctx, "AAPL", date(2024, 1, 1), date(2024, 6, 30), "1d")
	assert.Error(t, err)
	_, err = repo.LoadBars(ctx, "AAPL", date(2024, 1, 1), date(2024, 6, 30), "1d")
	assert.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&loader.calls))
	assert.Equal(t, 0, repo.Len())
}

func TestCachedBarRepository_CoalescesConcurrentLoads(t *testing.T) {
	loader := &countingLoader{release: make(chan struct{})}
	repo, err := NewCachedBarRepository(loader, 2, logger.NewNop())
	require.NoError(t, err)

	const callers = 8
	var wg sync.WaitGroup
	results := make([][]backtest.Bar, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			bars, err := repo.LoadBars(context.Background(), "AAPL", date(2024, 1, 1), date(2024, 6, 30), "1d")
			assert.NoError(t, err)
			results[i] = bars
		}(i)
	}

	require.Eventually(t, func() bool { return atomic.LoadInt32(&loader.calls) == 1 }, time.Second, time.Millisecond)
	// give the remaining callers time to join the in-flight load
	time.Sleep(20 * time.Millisecond)
	close(loader.release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&loader.calls))
	for _, bars := range results {
		assert.Len(t, bars, 1)
	}
}

func TestCachedBarRepository_CallerCancellationDoesNotFailSharedLoad(t *testing.T) {
	loader := &countingLoader{release: make(chan struct{})}
	repo, err := NewCachedBarRepository(loader, 2, logger.NewNop())
	require.NoError(t, err)

	start, end := date(2024, 1, 1), date(2024, 6, 30)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := repo.LoadBars(ctxA, "AAPL", start, end, "1d")
		errA <- err
	}()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&loader.calls) == 1 }, time.Second, time.Millisecond)

	type loadResult struct {
		bars []backtest.Bar
		err  error
	}
	resB := make(chan loadResult, 1)
	go func() {
		bars, err := repo.LoadBars(context.Background(), "AAPL", start, end, "1d")
		resB <- loadResult{bars: bars, err: err}
	}()
	// let the second caller join the in-flight load
	time.Sleep(20 * time.Millisecond)

	cancelA()
	select {
	case err := <-errA:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting for the shared load")
	}

	close(loader.release)
	select {
	case res := <-resB:
		require.NoError(t, res.err)
		assert.Len(t, res.bars, 1)
	case <-time.After(time.Second):
		t.Fatal("second caller never received the shared load")
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&loader.calls))
	assert.Equal(t, 1, repo.Len(), "completed load is cached even though its initiator went away")
}

func TestNewCachedBarRepository_InvalidCapacity(t *testing.T) {
	_, err := NewCachedBarRepository(&countingLoader{}, 0, logger.NewNop())
	assert.Error(t, err)
}
