package strategy

import (
	"math"
	"testing"

	"golang-backtest/internal/backtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRSIMeanReversion_Latch(t *testing.T) {
	s, err := NewRSIMeanReversion(RSIMeanReversionParams{Period: 2, Oversold: 30, Overbought: 70})
	require.NoError(t, err)

	nan := math.NaN()
	rsi := []float64{
		nan, nan,
		50,         // neutral
		25, 28, 35, // dip, deeper reading ignored, recovery fires Buy
		29, 31, // oscillation around the threshold re-arms and fires again
		29, 31,
		75, 80, 60, // overbought then fall back fires Sell
		25, 75, 50, // opposite extreme disarms the pending Buy
	}
	bars := makeBars(repeat(100, len(rsi))...)

	signals := s.signalsFromRSI(bars, rsi)

	want := []struct {
		index int
		kind  backtest.SignalKind
	}{
		{5, backtest.SignalBuy},
		{7, backtest.SignalBuy},
		{9, backtest.SignalBuy},
		{12, backtest.SignalSell},
		{15, backtest.SignalSell},
	}
	require.Len(t, signals, len(want))
	for i, w := range want {
		assert.Equal(t, bars[w.index].Date, signals[i].Date, "signal %d", i)
		assert.Equal(t, w.kind, signals[i].Kind, "signal %d", i)
	}

	assert.InDelta(t, 5.0/30.0, signals[0].Strength, 1e-9)
	assert.InDelta(t, 10.0/30.0, signals[3].Strength, 1e-9)
}

func TestRSIMeanReversion_NoSignalWithoutRecovery(t *testing.T) {
	s, err := NewRSIMeanReversion(DefaultRSIMeanReversionParams())
	require.NoError(t, err)

	falling := make([]float64, 40)
	for i := range falling {
		falling[i] = 200 - float64(i)*2
	}

	assert.Empty(t, s.GenerateSignals(makeBars(falling...)))
}

func TestRSIMeanReversion_DipAndRecovery(t *testing.T) {
	s, err := NewRSIMeanReversion(RSIMeanReversionParams{Period: 3, Oversold: 30, Overbought: 70})
	require.NoError(t, err)

	closes := []float64{100, 99, 98, 97, 96, 95, 95.5, 96}
	signals := s.GenerateSignals(makeBars(closes...))

	require.Len(t, signals, 1)
	assert.Equal(t, backtest.SignalBuy, signals[0].Kind)
	assert.Equal(t, 96.0, signals[0].Price)
}
