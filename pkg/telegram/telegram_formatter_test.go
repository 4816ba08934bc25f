package telegram

import (
	"strings"
	"testing"
	"time"

	"golang-backtest/internal/backtest"
	"golang-backtest/internal/dto"

	"github.com/stretchr/testify/assert"
)

func TestFormatBacktestReport(t *testing.T) {
	report := backtest.Report{
		Ticker:         "AAPL",
		Strategy:       "sma_crossover",
		Params:         map[string]float64{"short_period": 20, "long_period": 50},
		StartDate:      "2023-01-01",
		EndDate:        "2024-01-01",
		InitialCapital: 10000,
		FinalCapital:   9500,
		BarCount:       250,
		Metrics:        backtest.Metrics{TotalReturn: -5, TotalTrades: 12},
	}
	for i := 0; i < 12; i++ {
		report.Trades = append(report.Trades, backtest.TradeReport{EntryDate: "2023-02-01", ExitDate: "2023-03-01", PnL: -1})
	}

	msg := FormatBacktestReport(report, "Too many <whipsaws>.")

	assert.True(t, strings.HasPrefix(msg, "📉 <b>AAPL</b>"))
	assert.Contains(t, msg, "long_period=50 short_period=20")
	assert.Contains(t, msg, "Return: <b>-5.00%</b>")
	assert.Contains(t, msg, "last 10 of 12")
	assert.Equal(t, 10, strings.Count(msg, "❌"))
	assert.Contains(t, msg, "Too many &lt;whipsaws&gt;.")
}

func TestFormatBatchResult(t *testing.T) {
	result := &dto.BatchBacktestResult{
		Items: []dto.BatchBacktestItem{
			{Ticker: "MSFT", Strategy: "rsi_mean_reversion", Error: "no data for ticker"},
			{Ticker: "AAPL", Strategy: "sma_crossover", TotalReturn: 3},
			{Ticker: "GOOG", Strategy: "sma_crossover", TotalReturn: 9},
		},
		Succeeded: 2,
		Failed:    1,
	}

	msg := FormatBatchResult("2023-01-01", "2024-01-01", result)

	goog := strings.Index(msg, "GOOG")
	aapl := strings.Index(msg, "AAPL")
	msft := strings.Index(msg, "MSFT")
	assert.True(t, goog < aapl && aapl < msft, "best return first, failures last")
	assert.Contains(t, msg, "2 succeeded")
	assert.Equal(t, "MSFT", result.Items[0].Ticker, "input is not reordered")
}

func TestFormatErrorAlertMessage(t *testing.T) {
	msg := FormatErrorAlertMessage(time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC), "boom <err>")
	assert.Contains(t, msg, "01 Mar 2024 - 09:30 UTC")
	assert.Contains(t, msg, "boom &lt;err&gt;")
}
