package strategy

import (
	"fmt"
	"math"

	"golang-backtest/internal/backtest"
)

type RSIMeanReversionParams struct {
	Period     int
	Oversold   float64
	Overbought float64
}

func DefaultRSIMeanReversionParams() RSIMeanReversionParams {
	return RSIMeanReversionParams{Period: 14, Oversold: 30, Overbought: 70}
}

func (p RSIMeanReversionParams) Validate() error {
	if p.Period < 2 {
		return fmt.Errorf("%w: period must be at least 2, got %d", ErrInvalidParams, p.Period)
	}
	if p.Oversold <= 0 || p.Overbought >= 100 || p.Oversold >= p.Overbought {
		return fmt.Errorf("%w: need 0 < oversold (%v) < overbought (%v) < 100", ErrInvalidParams, p.Oversold, p.Overbought)
	}
	return nil
}

func (p *RSIMeanReversionParams) apply(params map[string]float64) error {
	if err := checkKnownParams(params, "period", "oversold", "overbought"); err != nil {
		return err
	}
	if err := intParam(params, "period", &p.Period); err != nil {
		return err
	}
	if err := floatParam(params, "oversold", &p.Oversold); err != nil {
		return err
	}
	return floatParam(params, "overbought", &p.Overbought)
}

func (p RSIMeanReversionParams) toMap() map[string]float64 {
	return map[string]float64{
		"period":     float64(p.Period),
		"oversold":   p.Oversold,
		"overbought": p.Overbought,
	}
}

// RSIMeanReversion trades recoveries out of RSI extremes.
//
// A bar with RSI below oversold arms a buy and disarms any pending sell. The
// first later bar with RSI back inside [oversold, overbought] emits one Buy and
// disarms. Overbought arms a Sell the same way. Each fresh dip re-arms, so an
// RSI oscillating around a threshold emits one signal per dip.
type RSIMeanReversion struct {
	params RSIMeanReversionParams
}

func NewRSIMeanReversion(params RSIMeanReversionParams) (*RSIMeanReversion, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &RSIMeanReversion{params: params}, nil
}

func (s *RSIMeanReversion) Name() string               { return string(KindRSIMeanReversion) }
func (s *RSIMeanReversion) Kind() Kind                 { return KindRSIMeanReversion }
func (s *RSIMeanReversion) Params() map[string]float64 { return s.params.toMap() }
func (s *RSIMeanReversion) DefaultParams() map[string]float64 {
	return DefaultRSIMeanReversionParams().toMap()
}

func (s *RSIMeanReversion) GenerateSignals(bars []backtest.Bar) []backtest.Signal {
	if len(bars) <= s.params.Period {
		return make([]backtest.Signal, 0)
	}
	return s.signalsFromRSI(bars, RSI(closePrices(bars), s.params.Period))
}

// signalsFromRSI runs the latch over a precomputed RSI series aligned with bars.
func (s *RSIMeanReversion) signalsFromRSI(bars []backtest.Bar, rsi []float64) []backtest.Signal {
	signals := make([]backtest.Signal, 0)

	var (
		buyArmed, sellArmed bool
		lowest, highest     float64
	)
	for i := s.params.Period; i < len(bars); i++ {
		v := rsi[i]
		if math.IsNaN(v) {
			continue
		}
		switch {
		case v < s.params.Oversold:
			if !buyArmed || v < lowest {
				lowest = v
			}
			buyArmed, sellArmed = true, false
		case v > s.params.Overbought:
			if !sellArmed || v > highest {
				highest = v
			}
			sellArmed, buyArmed = true, false
		case buyArmed:
			buyArmed = false
			signals = append(signals, backtest.Signal{
				Date:     bars[i].Date,
				Kind:     backtest.SignalBuy,
				Price:    bars[i].Close,
				Strength: clamp01((s.params.Oversold - lowest) / s.params.Oversold),
				Reason:   fmt.Sprintf("RSI(%d) recovered to %.2f from oversold low %.2f", s.params.Period, v, lowest),
			})
		case sellArmed:
			sellArmed = false
			signals = append(signals, backtest.Signal{
				Date:     bars[i].Date,
				Kind:     backtest.SignalSell,
				Price:    bars[i].Close,
				Strength: clamp01((highest - s.params.Overbought) / (100 - s.params.Overbought)),
				Reason:   fmt.Sprintf("RSI(%d) fell to %.2f from overbought high %.2f", s.params.Period, v, highest),
			})
		}
	}
	return signals
}
