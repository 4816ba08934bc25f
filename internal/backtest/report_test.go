package backtest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRound2(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{in: 1.005, want: 1.01},
		{in: 2.675, want: 2.68},
		{in: -1.005, want: -1.01},
		{in: 10.0, want: 10.0},
		{in: 3.14159, want: 3.14},
		{in: math.NaN(), want: 0},
		{in: math.Inf(1), want: 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Round2(tt.in), "Round2(%v)", tt.in)
	}
}

func TestDownsample(t *testing.T) {
	curve := make([]EquityPoint, 250)
	for i := range curve {
		curve[i] = EquityPoint{Date: testStart.AddDate(0, 0, i), Value: float64(i)}
	}

	t.Run("long curve keeps first and last", func(t *testing.T) {
		got := Downsample(curve, 100)
		require.Len(t, got, 100)
		assert.Equal(t, curve[0], got[0])
		assert.Equal(t, curve[249], got[99])
		for i := 1; i < len(got); i++ {
			assert.True(t, got[i].Date.After(got[i-1].Date))
		}
	})

	t.Run("short curve is copied", func(t *testing.T) {
		got := Downsample(curve[:10], 100)
		assert.Equal(t, curve[:10], got)
		got[0].Value = -1
		assert.Equal(t, 0.0, curve[0].Value)
	})

	t.Run("non-positive max uses default", func(t *testing.T) {
		assert.Len(t, Downsample(curve, 0), DefaultMaxEquityPoints)
	})

	t.Run("single point keeps last", func(t *testing.T) {
		assert.Equal(t, []EquityPoint{curve[249]}, Downsample(curve, 1))
	})
}

func TestResult_Report(t *testing.T) {
	bars := makeBars(100, 100.123, 110.456)
	result := &Result{
		Ticker:         "MSFT",
		Strategy:       "sma_crossover",
		Params:         map[string]float64{"short_period": 2, "long_period": 5},
		StartDate:      bars[0].Date,
		EndDate:        bars[2].Date,
		Interval:       "1d",
		InitialCapital: 10000,
		FinalCapital:   11045.6789,
		Metrics:        Metrics{TotalReturn: 10.456789, SharpeRatio: math.NaN(), TotalTrades: 1},
		Trades: []Trade{{
			Direction:  DirectionLong,
			EntryDate:  bars[0].Date,
			ExitDate:   bars[2].Date,
			EntryPrice: 100,
			ExitPrice:  110.456,
			Size:       100,
			PnL:        1045.6,
			PnLPercent: 10.456,
			ExitReason: ExitReasonEndOfData,
		}},
		EquityCurve: []EquityPoint{
			{Date: bars[0].Date, Value: 10000},
			{Date: bars[1].Date, Value: 10012.345},
			{Date: bars[2].Date, Value: 11045.6789},
		},
		BarCount: 3,
	}

	report := result.Report(0)

	assert.Equal(t, "MSFT", report.Ticker)
	assert.Equal(t, "2024-01-01", report.StartDate)
	assert.Equal(t, "2024-01-03", report.EndDate)
	assert.Equal(t, 11045.68, report.FinalCapital)
	assert.Equal(t, 10.46, report.Metrics.TotalReturn)
	assert.Equal(t, 0.0, report.Metrics.SharpeRatio)
	assert.Equal(t, 1, report.TotalTrades)
	assert.Equal(t, 3, report.BarCount)

	require.Len(t, report.Trades, 1)
	assert.Equal(t, "2024-01-03", report.Trades[0].ExitDate)
	assert.Equal(t, 110.46, report.Trades[0].ExitPrice)
	assert.Equal(t, 2, report.Trades[0].HoldingDays)

	require.Len(t, report.EquityCurve, 3)
	assert.Equal(t, EquityReport{Date: "2024-01-02", Value: 10012.35}, report.EquityCurve[1])

	report.Params["short_period"] = 99
	assert.Equal(t, 2.0, result.Params["short_period"])
}
