package strategy

import (
	"fmt"
	"math"

	"golang-backtest/internal/backtest"
)

type MomentumBreakoutParams struct {
	Lookback       int
	Threshold      float64
	UseTrendFilter bool
	TrendPeriod    int
}

func DefaultMomentumBreakoutParams() MomentumBreakoutParams {
	return MomentumBreakoutParams{Lookback: 20, Threshold: 5, UseTrendFilter: true, TrendPeriod: 50}
}

func (p MomentumBreakoutParams) Validate() error {
	if p.Lookback < 1 {
		return fmt.Errorf("%w: lookback must be at least 1, got %d", ErrInvalidParams, p.Lookback)
	}
	if p.Threshold <= 0 {
		return fmt.Errorf("%w: threshold must be positive, got %v", ErrInvalidParams, p.Threshold)
	}
	if p.UseTrendFilter && p.TrendPeriod < 1 {
		return fmt.Errorf("%w: sma_period must be at least 1, got %d", ErrInvalidParams, p.TrendPeriod)
	}
	return nil
}

func (p *MomentumBreakoutParams) apply(params map[string]float64) error {
	if err := checkKnownParams(params, "lookback", "threshold", "sma_period", "use_sma_filter"); err != nil {
		return err
	}
	if err := intParam(params, "lookback", &p.Lookback); err != nil {
		return err
	}
	if err := floatParam(params, "threshold", &p.Threshold); err != nil {
		return err
	}
	if err := intParam(params, "sma_period", &p.TrendPeriod); err != nil {
		return err
	}
	return boolParam(params, "use_sma_filter", &p.UseTrendFilter)
}

func (p MomentumBreakoutParams) toMap() map[string]float64 {
	return map[string]float64{
		"lookback":       float64(p.Lookback),
		"threshold":      p.Threshold,
		"sma_period":     float64(p.TrendPeriod),
		"use_sma_filter": boolToFloat(p.UseTrendFilter),
	}
}

// MomentumBreakout buys when the rate of change clears the threshold and is
// still accelerating, optionally only above the trend SMA. It sells once
// momentum turns negative or collapses below half its previous value and half
// the threshold. Signals alternate: no Buy while one is outstanding.
type MomentumBreakout struct {
	params MomentumBreakoutParams
}

func NewMomentumBreakout(params MomentumBreakoutParams) (*MomentumBreakout, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &MomentumBreakout{params: params}, nil
}

func (s *MomentumBreakout) Name() string               { return string(KindMomentumBreakout) }
func (s *MomentumBreakout) Kind() Kind                 { return KindMomentumBreakout }
func (s *MomentumBreakout) Params() map[string]float64 { return s.params.toMap() }
func (s *MomentumBreakout) DefaultParams() map[string]float64 {
	return DefaultMomentumBreakoutParams().toMap()
}

func (s *MomentumBreakout) minBars() int {
	n := s.params.Lookback + 2
	if s.params.UseTrendFilter && s.params.TrendPeriod > n {
		n = s.params.TrendPeriod
	}
	return n
}

func (s *MomentumBreakout) GenerateSignals(bars []backtest.Bar) []backtest.Signal {
	signals := make([]backtest.Signal, 0)
	if len(bars) < s.minBars() {
		return signals
	}

	closes := closePrices(bars)
	roc := RateOfChange(closes, s.params.Lookback)

	var trend []float64
	if s.params.UseTrendFilter {
		trend = SMA(closes, s.params.TrendPeriod)
	}

	holding := false
	for i := s.params.Lookback + 1; i < len(bars); i++ {
		cur, prev := roc[i], roc[i-1]
		if math.IsNaN(cur) || math.IsNaN(prev) {
			continue
		}

		if !holding {
			if cur <= s.params.Threshold || cur <= prev || !s.aboveTrend(trend, closes, i) {
				continue
			}
			holding = true
			signals = append(signals, backtest.Signal{
				Date:     bars[i].Date,
				Kind:     backtest.SignalBuy,
				Price:    bars[i].Close,
				Strength: clamp01(cur / (s.params.Threshold * 2)),
				Reason:   fmt.Sprintf("ROC(%d) %.2f%% above threshold %.2f%% and rising", s.params.Lookback, cur, s.params.Threshold),
			})
			continue
		}

		faded := cur < prev*0.5 && cur < s.params.Threshold*0.5
		if cur >= 0 && !faded {
			continue
		}
		holding = false
		reason := fmt.Sprintf("ROC(%d) turned negative at %.2f%%", s.params.Lookback, cur)
		if cur >= 0 {
			reason = fmt.Sprintf("ROC(%d) faded to %.2f%% from %.2f%%", s.params.Lookback, cur, prev)
		}
		signals = append(signals, backtest.Signal{
			Date:     bars[i].Date,
			Kind:     backtest.SignalSell,
			Price:    bars[i].Close,
			Strength: clamp01(math.Abs(cur-prev) / s.params.Threshold),
			Reason:   reason,
		})
	}
	return signals
}

func (s *MomentumBreakout) aboveTrend(trend, closes []float64, i int) bool {
	if trend == nil {
		return true
	}
	t := trend[i]
	return !math.IsNaN(t) && closes[i] > t
}
