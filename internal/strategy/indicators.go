package strategy

import (
	"math"

	"golang-backtest/internal/backtest"
)

func closePrices(bars []backtest.Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// SMA returns the simple moving average of values. Entries without a full
// window are NaN.
func SMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period < 1 || len(values) < period {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		sum := 0.0
		for j := i - period + 1; j <= i; j++ {
			sum += values[j]
		}
		out[i] = sum / float64(period)
	}
	return out
}

// RSI returns Wilder's relative strength index. The first value is at index
// period, seeded with the simple mean of the first period changes.
func RSI(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period < 1 || len(values) <= period {
		return out
	}

	var gainSum, lossSum float64
	for i := 1; i <= period; i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			gainSum += change
		} else {
			lossSum -= change
		}
	}

	p := float64(period)
	avgGain := gainSum / p
	avgLoss := lossSum / p
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// RateOfChange returns the percent change over lookback bars. Entries without
// enough history, or with a zero base price, are NaN.
func RateOfChange(values []float64, lookback int) []float64 {
	out := nanSlice(len(values))
	if lookback < 1 {
		return out
	}
	for i := lookback; i < len(values); i++ {
		base := values[i-lookback]
		if base == 0 {
			continue
		}
		out[i] = (values[i] - base) / base * 100
	}
	return out
}
