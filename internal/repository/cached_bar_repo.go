package repository

import (
	"context"
	"fmt"
	"time"

	"golang-backtest/internal/backtest"
	"golang-backtest/pkg/cache"
	"golang-backtest/pkg/logger"
	"golang-backtest/pkg/utils"

	"golang.org/x/sync/singleflight"
)

// CachedBarRepository decorates a BarLoader with a bounded LRU of loaded
// series. Concurrent loads of the same key share one upstream call. Cached
// slices are shared between callers and must not be modified.
type CachedBarRepository struct {
	loader backtest.BarLoader
	cache  *cache.LRU[string, []backtest.Bar]
	group  singleflight.Group
	logger *logger.Logger
}

func NewCachedBarRepository(loader backtest.BarLoader, capacity int, log *logger.Logger) (*CachedBarRepository, error) {
	lru, err := cache.NewLRU[string, []backtest.Bar](capacity)
	if err != nil {
		return nil, fmt.Errorf("create bar cache: %w", err)
	}
	return &CachedBarRepository{loader: loader, cache: lru, logger: log}, nil
}

func barCacheKey(ticker string, start, end time.Time, interval string) string {
	return fmt.Sprintf("%s:%s:%s:%s",
		utils.NormalizeTicker(ticker),
		start.Format(utils.DateLayout),
		end.Format(utils.DateLayout),
		interval,
	)
}

// LoadBars serves from cache when possible. Errors are not cached; an empty
// series is. A shared upstream load is detached from the cancellation of the
// caller that started it; each caller stops waiting when its own ctx is done.
func (r *CachedBarRepository) LoadBars(ctx context.Context, ticker string, start, end time.Time, interval string) ([]backtest.Bar, error) {
	key := barCacheKey(ticker, start, end, interval)
	if bars, ok := r.cache.Get(key); ok {
		r.logger.DebugContext(ctx, "Bar cache hit", logger.StringField("key", key))
		return bars, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (interface{}, error) {
		if bars, ok := r.cache.Get(key); ok {
			return bars, nil
		}
		bars, err := r.loader.LoadBars(loadCtx, ticker, start, end, interval)
		if err != nil {
			return nil, err
		}
		if evicted := r.cache.Add(key, bars); evicted {
			r.logger.DebugContext(loadCtx, "Bar cache evicted least recently used series", logger.IntField("size", r.cache.Len()))
		}
		return bars, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			r.logger.DebugContext(ctx, "Bar load shared with concurrent caller", logger.StringField("key", key))
		}
		return res.Val.([]backtest.Bar), nil
	}
}

func (r *CachedBarRepository) Len() int {
	return r.cache.Len()
}

func (r *CachedBarRepository) Purge() {
	r.cache.Purge()
}
