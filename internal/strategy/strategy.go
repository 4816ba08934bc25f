// Package strategy holds the reference signal generators used by the backtest
// engine and the factory that builds them by name.
package strategy

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"golang-backtest/internal/backtest"
)

var (
	ErrUnknownStrategy = errors.New("unknown strategy")
	ErrInvalidParams   = errors.New("invalid strategy params")
)

type Kind string

const (
	KindSMACrossover     Kind = "sma_crossover"
	KindRSIMeanReversion Kind = "rsi_mean_reversion"
	KindMomentumBreakout Kind = "momentum_breakout"
)

// Strategy is a parameterized, deterministic signal generator.
type Strategy interface {
	backtest.SignalGenerator
	Kind() Kind
	DefaultParams() map[string]float64
}

// Info describes a strategy kind for listings.
type Info struct {
	Name          Kind               `json:"name"`
	Description   string             `json:"description"`
	DefaultParams map[string]float64 `json:"default_params"`
}

// Kinds returns every supported strategy kind.
func Kinds() []Kind {
	return []Kind{KindSMACrossover, KindRSIMeanReversion, KindMomentumBreakout}
}

// New builds the strategy registered under name. Params not present in the map
// keep their defaults; unknown keys and out-of-range values are rejected.
func New(name string, params map[string]float64) (Strategy, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(name))) {
	case KindSMACrossover:
		p := DefaultSMACrossoverParams()
		if err := p.apply(params); err != nil {
			return nil, err
		}
		return NewSMACrossover(p)
	case KindRSIMeanReversion:
		p := DefaultRSIMeanReversionParams()
		if err := p.apply(params); err != nil {
			return nil, err
		}
		return NewRSIMeanReversion(p)
	case KindMomentumBreakout:
		p := DefaultMomentumBreakoutParams()
		if err := p.apply(params); err != nil {
			return nil, err
		}
		return NewMomentumBreakout(p)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

func List() []Info {
	return []Info{
		{
			Name:          KindSMACrossover,
			Description:   "Buy on golden cross, sell on death cross of a short and a long simple moving average",
			DefaultParams: DefaultSMACrossoverParams().toMap(),
		},
		{
			Name:          KindRSIMeanReversion,
			Description:   "Buy when RSI recovers from oversold, sell when it falls back from overbought",
			DefaultParams: DefaultRSIMeanReversionParams().toMap(),
		},
		{
			Name:          KindMomentumBreakout,
			Description:   "Buy on accelerating rate of change above a threshold, sell when momentum fades",
			DefaultParams: DefaultMomentumBreakoutParams().toMap(),
		},
	}
}

func checkKnownParams(params map[string]float64, known ...string) error {
	allowed := make(map[string]struct{}, len(known))
	for _, k := range known {
		allowed[k] = struct{}{}
	}

	var unknown []string
	for k := range params {
		if _, ok := allowed[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("%w: unknown params %s", ErrInvalidParams, strings.Join(unknown, ", "))
	}
	return nil
}

func intParam(params map[string]float64, key string, dst *int) error {
	v, ok := params[key]
	if !ok {
		return nil
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return fmt.Errorf("%w: %s must be a whole number, got %v", ErrInvalidParams, key, v)
	}
	*dst = int(v)
	return nil
}

func floatParam(params map[string]float64, key string, dst *float64) error {
	v, ok := params[key]
	if !ok {
		return nil
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s must be finite", ErrInvalidParams, key)
	}
	*dst = v
	return nil
}

func boolParam(params map[string]float64, key string, dst *bool) error {
	v, ok := params[key]
	if !ok {
		return nil
	}
	if v != 0 && v != 1 {
		return fmt.Errorf("%w: %s must be 0 or 1, got %v", ErrInvalidParams, key, v)
	}
	*dst = v == 1
	return nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
