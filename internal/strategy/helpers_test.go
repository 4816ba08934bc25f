package strategy

import (
	"time"

	"golang-backtest/internal/backtest"
)

var testStart = time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)

func makeBars(closes ...float64) []backtest.Bar {
	bars := make([]backtest.Bar, len(closes))
	for i, c := range closes {
		bars[i] = backtest.Bar{
			Date:   testStart.AddDate(0, 0, i),
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: 10_000,
		}
	}
	return bars
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func concat(parts ...[]float64) []float64 {
	var out []float64
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// crossSeries is flat, then rallies into a golden cross at index 10 (close 102)
// and sells off into a death cross at index 22 (close 108) for SMA(3)/SMA(8).
func crossSeries() []float64 {
	return concat(
		repeat(100, 10),
		[]float64{102, 104, 106, 108, 110, 112, 114, 116, 118, 120},
		[]float64{118, 114, 108, 100, 92, 86, 80, 76, 72, 70},
	)
}

func kinds(signals []backtest.Signal) []backtest.SignalKind {
	out := make([]backtest.SignalKind, len(signals))
	for i, s := range signals {
		out[i] = s.Kind
	}
	return out
}
