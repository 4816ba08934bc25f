package backtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLoader struct {
	bars  []Bar
	err   error
	calls int
}

func (l *stubLoader) LoadBars(ctx context.Context, ticker string, start, end time.Time, interval string) ([]Bar, error) {
	l.calls++
	return l.bars, l.err
}

// scriptedStrategy emits Buy and Sell at fixed bar indexes.
type scriptedStrategy struct {
	buyAt, sellAt int
}

func (s scriptedStrategy) Name() string { return "scripted" }

func (s scriptedStrategy) Params() map[string]float64 {
	return map[string]float64{"buy_at": float64(s.buyAt), "sell_at": float64(s.sellAt)}
}

func (s scriptedStrategy) GenerateSignals(bars []Bar) []Signal {
	var signals []Signal
	if s.buyAt < len(bars) {
		signals = append(signals, signalAt(bars, s.buyAt, SignalBuy))
	}
	if s.sellAt < len(bars) {
		signals = append(signals, signalAt(bars, s.sellAt, SignalSell))
	}
	return signals
}

func frictionlessConfig() Config {
	cfg := DefaultConfig()
	cfg.Commission = 0
	cfg.Slippage = 0
	return cfg
}

func TestNewEngine_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialCapital = -1

	_, err := NewEngine(cfg, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewEngine_Defaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Interval = ""
	cfg.TradingDaysPerYear = 0

	engine, err := NewEngine(cfg, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "1d", engine.Config().Interval)
	assert.Equal(t, DefaultTradingDaysPerYear, engine.Config().TradingDaysPerYear)
}

func TestEngine_Run(t *testing.T) {
	loader := &stubLoader{bars: makeBars(100, 100, 110, 120, 115)}
	engine, err := NewEngine(frictionlessConfig(), loader, nil)
	require.NoError(t, err)

	start := testStart.AddDate(0, 0, -3)
	end := testStart.AddDate(0, 0, 10)
	result, err := engine.Run(context.Background(), "AAPL", scriptedStrategy{buyAt: 1, sellAt: 3}, start, end, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, loader.calls)
	assert.Equal(t, "AAPL", result.Ticker)
	assert.Equal(t, "scripted", result.Strategy)
	assert.Equal(t, start, result.StartDate)
	assert.Equal(t, end, result.EndDate)
	assert.Equal(t, 5, result.BarCount)
	assert.Equal(t, 2, result.SignalCount)
	require.Len(t, result.Trades, 1)
	assert.InDelta(t, 2000.0, result.Trades[0].PnL, 1e-9)
	assert.InDelta(t, 12000.0, result.FinalCapital, 1e-9)
	assert.Len(t, result.EquityCurve, 5)
	assert.InDelta(t, 20.0, result.Metrics.TotalReturn, 1e-9)
	assert.Equal(t, 1, result.Metrics.TotalTrades)
}

func TestEngine_RunErrors(t *testing.T) {
	loadErr := errors.New("upstream down")

	tests := []struct {
		name    string
		loader  BarLoader
		wantErr error
	}{
		{name: "empty series", loader: &stubLoader{}, wantErr: ErrNoData},
		{name: "loader failure", loader: &stubLoader{err: loadErr}, wantErr: loadErr},
		{name: "no loader", loader: nil, wantErr: ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := NewEngine(DefaultConfig(), tt.loader, nil)
			require.NoError(t, err)

			_, err = engine.Run(context.Background(), "NONE", scriptedStrategy{}, testStart, testStart, 100)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestEngine_RunBarsIsDeterministic(t *testing.T) {
	bars := makeBars(10, 11, 12, 11, 13, 14, 12, 15)
	engine, err := NewEngine(DefaultConfig(), nil, nil)
	require.NoError(t, err)

	strategy := scriptedStrategy{buyAt: 2, sellAt: 6}
	first, err := engine.RunBars(context.Background(), "X", strategy, bars, 50)
	require.NoError(t, err)
	second, err := engine.RunBars(context.Background(), "X", strategy, bars, 50)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, bars[0].Date, first.StartDate)
	assert.Equal(t, bars[7].Date, first.EndDate)
}
