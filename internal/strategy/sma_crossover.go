package strategy

import (
	"fmt"
	"math"

	"golang-backtest/internal/backtest"
)

type SMACrossoverParams struct {
	ShortPeriod int
	LongPeriod  int
}

func DefaultSMACrossoverParams() SMACrossoverParams {
	return SMACrossoverParams{ShortPeriod: 20, LongPeriod: 50}
}

func (p SMACrossoverParams) Validate() error {
	if p.ShortPeriod < 1 {
		return fmt.Errorf("%w: short_period must be at least 1, got %d", ErrInvalidParams, p.ShortPeriod)
	}
	if p.LongPeriod <= p.ShortPeriod {
		return fmt.Errorf("%w: long_period (%d) must be greater than short_period (%d)", ErrInvalidParams, p.LongPeriod, p.ShortPeriod)
	}
	return nil
}

func (p *SMACrossoverParams) apply(params map[string]float64) error {
	if err := checkKnownParams(params, "short_period", "long_period"); err != nil {
		return err
	}
	if err := intParam(params, "short_period", &p.ShortPeriod); err != nil {
		return err
	}
	return intParam(params, "long_period", &p.LongPeriod)
}

func (p SMACrossoverParams) toMap() map[string]float64 {
	return map[string]float64{
		"short_period": float64(p.ShortPeriod),
		"long_period":  float64(p.LongPeriod),
	}
}

// SMACrossover buys when the short SMA crosses above the long SMA and sells on
// the reverse cross.
type SMACrossover struct {
	params SMACrossoverParams
}

func NewSMACrossover(params SMACrossoverParams) (*SMACrossover, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &SMACrossover{params: params}, nil
}

func (s *SMACrossover) Name() string                      { return string(KindSMACrossover) }
func (s *SMACrossover) Kind() Kind                        { return KindSMACrossover }
func (s *SMACrossover) Params() map[string]float64        { return s.params.toMap() }
func (s *SMACrossover) DefaultParams() map[string]float64 { return DefaultSMACrossoverParams().toMap() }

func (s *SMACrossover) GenerateSignals(bars []backtest.Bar) []backtest.Signal {
	signals := make([]backtest.Signal, 0)
	if len(bars) <= s.params.LongPeriod {
		return signals
	}

	closes := closePrices(bars)
	short := SMA(closes, s.params.ShortPeriod)
	long := SMA(closes, s.params.LongPeriod)

	for i := s.params.LongPeriod; i < len(bars); i++ {
		prevShort, prevLong := short[i-1], long[i-1]
		curShort, curLong := short[i], long[i]

		var kind backtest.SignalKind
		switch {
		case prevShort <= prevLong && curShort > curLong:
			kind = backtest.SignalBuy
		case prevShort >= prevLong && curShort < curLong:
			kind = backtest.SignalSell
		default:
			continue
		}

		signals = append(signals, backtest.Signal{
			Date:     bars[i].Date,
			Kind:     kind,
			Price:    bars[i].Close,
			Strength: clamp01(math.Abs(curShort-curLong) / curLong * 10),
			Reason:   s.reason(kind, curShort, curLong),
		})
	}
	return signals
}

func (s *SMACrossover) reason(kind backtest.SignalKind, short, long float64) string {
	cross, dir := "Golden cross", "above"
	if kind == backtest.SignalSell {
		cross, dir = "Death cross", "below"
	}
	return fmt.Sprintf("%s: SMA(%d) %.2f crossed %s SMA(%d) %.2f",
		cross, s.params.ShortPeriod, short, dir, s.params.LongPeriod, long)
}
