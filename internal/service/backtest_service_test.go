package service

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"golang-backtest/config"
	"golang-backtest/internal/backtest"
	"golang-backtest/internal/dto"
	"golang-backtest/internal/model"
	"golang-backtest/internal/repository"
	"golang-backtest/internal/strategy"
	"golang-backtest/pkg/cache"
	"golang-backtest/pkg/logger"
	"golang-backtest/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type waveLoader struct {
	calls int32
	empty bool
}

func (l *waveLoader) LoadBars(ctx context.Context, ticker string, start, end time.Time, interval string) ([]backtest.Bar, error) {
	atomic.AddInt32(&l.calls, 1)
	if l.empty {
		return nil, nil
	}
	bars := make([]backtest.Bar, 0, 120)
	for i := 0; i < 120; i++ {
		c := 100 + 10*math.Sin(float64(i)/6)
		bars = append(bars, backtest.Bar{Date: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 1000})
	}
	return bars, nil
}

type memoryRunRepo struct {
	runs   []model.BacktestRun
	nextID uint
}

func (r *memoryRunRepo) Create(ctx context.Context, run *model.BacktestRun, opts ...utils.DBOption) error {
	r.nextID++
	run.ID = r.nextID
	r.runs = append(r.runs, *run)
	return nil
}

func (r *memoryRunRepo) Get(ctx context.Context, param model.GetBacktestRunParam, opts ...utils.DBOption) ([]model.BacktestRun, error) {
	var out []model.BacktestRun
	for i := len(r.runs) - 1; i >= 0; i-- {
		if param.Ticker != "" && r.runs[i].Ticker != param.Ticker {
			continue
		}
		out = append(out, r.runs[i])
	}
	if param.Limit > 0 && len(out) > param.Limit {
		out = out[:param.Limit]
	}
	return out, nil
}

func (r *memoryRunRepo) FindByID(ctx context.Context, id uint) (*model.BacktestRun, error) {
	for _, run := range r.runs {
		if run.ID == id {
			return &run, nil
		}
	}
	return nil, repository.ErrRecordNotFound
}

func (r *memoryRunRepo) DeleteOlderThan(ctx context.Context, date time.Time, opts ...utils.DBOption) (int64, error) {
	return 0, nil
}

type staticSystemParamRepo struct {
	repository.SystemParamRepository
	defaults repository.StrategyDefaults
	err      error
}

func (r *staticSystemParamRepo) GetStrategyDefaults(ctx context.Context) (repository.StrategyDefaults, error) {
	return r.defaults, r.err
}

type stubAIRepo struct {
	err error
}

func (r *stubAIRepo) SummarizeBacktest(ctx context.Context, report backtest.Report) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "Solid risk-adjusted return on " + report.Ticker, nil
}

func newTestService(loader backtest.BarLoader, runRepo repository.BacktestRunRepository, sysParam repository.SystemParamRepository, ai repository.AIRepository) BacktestService {
	cfg := config.Default()
	return NewBacktestService(cfg, logger.NewNop(), loader, runRepo, sysParam, ai, cache.NewCache(time.Minute, time.Minute))
}

func validRequest() dto.BacktestRequest {
	return dto.BacktestRequest{
		Ticker:    "aapl",
		Strategy:  "sma_crossover",
		StartDate: "2023-01-01",
		EndDate:   "2023-06-30",
		Params:    map[string]float64{"short_period": 5, "long_period": 15},
	}
}

func TestBacktestService_RunBacktest(t *testing.T) {
	loader := &waveLoader{}
	runRepo := &memoryRunRepo{}
	svc := newTestService(loader, runRepo, nil, &stubAIRepo{})

	req := validRequest()
	req.WithSummary = true
	resp, err := svc.RunBacktest(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "AAPL", resp.Report.Ticker)
	assert.Equal(t, "sma_crossover", resp.Report.Strategy)
	assert.Equal(t, "2023-01-01", resp.Report.StartDate)
	assert.Equal(t, 120, resp.Report.BarCount)
	assert.Greater(t, resp.Report.TotalTrades, 0)
	assert.LessOrEqual(t, len(resp.Report.EquityCurve), 100)
	assert.Equal(t, "Solid risk-adjusted return on AAPL", resp.Summary)
	assert.False(t, resp.Cached)

	require.Len(t, runRepo.runs, 1)
	run := runRepo.runs[0]
	assert.Equal(t, resp.RunID, run.ID)
	assert.Equal(t, model.SourceAPI, run.Source)
	assert.Equal(t, resp.Report.Metrics.TotalReturn, run.TotalReturn)
	assert.Equal(t, resp.Report.TotalTrades, run.TotalTrades)
	assert.JSONEq(t, `{"short_period":5,"long_period":15}`, string(run.Params))
}

func TestBacktestService_RunBacktestIsMemoized(t *testing.T) {
	loader := &waveLoader{}
	runRepo := &memoryRunRepo{}
	svc := newTestService(loader, runRepo, nil, nil)

	first, err := svc.RunBacktest(context.Background(), validRequest())
	require.NoError(t, err)
	second, err := svc.RunBacktest(context.Background(), validRequest())
	require.NoError(t, err)

	assert.True(t, second.Cached)
	assert.Equal(t, first.Report.FinalCapital, second.Report.FinalCapital)
	assert.Equal(t, int32(1), atomic.LoadInt32(&loader.calls))
	assert.Len(t, runRepo.runs, 1)

	other := validRequest()
	other.Params = map[string]float64{"short_period": 4, "long_period": 15}
	_, err = svc.RunBacktest(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&loader.calls))
}

func TestBacktestService_RunBacktestErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*dto.BacktestRequest)
		loader  *waveLoader
		wantErr error
	}{
		{
			name:    "bad date",
			mutate:  func(r *dto.BacktestRequest) { r.StartDate = "2023-02-30" },
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "end before start",
			mutate:  func(r *dto.BacktestRequest) { r.EndDate = "2022-12-31" },
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "unknown strategy",
			mutate:  func(r *dto.BacktestRequest) { r.Strategy = "martingale" },
			wantErr: strategy.ErrUnknownStrategy,
		},
		{
			name:    "invalid params",
			mutate:  func(r *dto.BacktestRequest) { r.Params = map[string]float64{"short_period": 50, "long_period": 20} },
			wantErr: strategy.ErrInvalidParams,
		},
		{
			name: "invalid commission",
			mutate: func(r *dto.BacktestRequest) {
				c := 1.5
				r.Commission = &c
			},
			wantErr: backtest.ErrInvalidConfig,
		},
		{
			name:    "no data",
			mutate:  func(r *dto.BacktestRequest) {},
			loader:  &waveLoader{empty: true},
			wantErr: backtest.ErrNoData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := tt.loader
			if loader == nil {
				loader = &waveLoader{}
			}
			svc := newTestService(loader, nil, nil, nil)

			req := validRequest()
			tt.mutate(&req)
			_, err := svc.RunBacktest(context.Background(), req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBacktestService_StrategyDefaults(t *testing.T) {
	sysParam := &staticSystemParamRepo{defaults: repository.StrategyDefaults{
		"rsi_mean_reversion": {"period": 10, "oversold": 25},
	}}
	svc := newTestService(&waveLoader{}, nil, sysParam, nil)

	req := validRequest()
	req.Strategy = "RSI_Mean_Reversion"
	req.Params = map[string]float64{"oversold": 20}
	resp, err := svc.RunBacktest(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 10.0, resp.Report.Params["period"])
	assert.Equal(t, 20.0, resp.Report.Params["oversold"], "request params win over stored defaults")
	assert.Equal(t, 70.0, resp.Report.Params["overbought"])

	for _, info := range svc.ListStrategies(context.Background()) {
		if info.Name == strategy.KindRSIMeanReversion {
			assert.Equal(t, 10.0, info.DefaultParams["period"])
			assert.Equal(t, 25.0, info.DefaultParams["oversold"])
		}
	}
}

func TestBacktestService_SummaryFailureIsNotFatal(t *testing.T) {
	svc := newTestService(&waveLoader{}, nil, nil, &stubAIRepo{err: errors.New("quota exceeded")})

	req := validRequest()
	req.WithSummary = true
	resp, err := svc.RunBacktest(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, resp.Summary)
	assert.Zero(t, resp.RunID)
}

func TestBacktestService_HistoryAndGetRun(t *testing.T) {
	runRepo := &memoryRunRepo{}
	svc := newTestService(&waveLoader{}, runRepo, nil, nil)

	first, err := svc.RunBacktest(context.Background(), validRequest())
	require.NoError(t, err)
	req := validRequest()
	req.Ticker = "MSFT"
	_, err = svc.RunBacktest(context.Background(), req)
	require.NoError(t, err)

	history, err := svc.GetHistory(context.Background(), dto.BacktestHistoryRequest{})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "MSFT", history[0].Ticker)

	history, err = svc.GetHistory(context.Background(), dto.BacktestHistoryRequest{Ticker: "aapl"})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "2023-06-30", history[0].EndDate)

	got, err := svc.GetRun(context.Background(), first.RunID)
	require.NoError(t, err)
	assert.Equal(t, first.Report.FinalCapital, got.Report.FinalCapital)
	assert.Equal(t, len(first.Report.Trades), len(got.Report.Trades))

	_, err = svc.GetRun(context.Background(), 999)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestBacktestService_HistoryUnavailableWithoutRepository(t *testing.T) {
	svc := newTestService(&waveLoader{}, nil, nil, nil)

	_, err := svc.GetHistory(context.Background(), dto.BacktestHistoryRequest{})
	assert.ErrorIs(t, err, ErrHistoryUnavailable)
	_, err = svc.GetRun(context.Background(), 1)
	assert.ErrorIs(t, err, ErrHistoryUnavailable)
}
