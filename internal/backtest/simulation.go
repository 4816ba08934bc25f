package backtest

import (
	"context"
	"fmt"
	"math"
)

const (
	ExitReasonSignal    = "sell_signal"
	ExitReasonEndOfData = "end_of_data"

	// cancelCheckInterval is how many bars are simulated between context checks.
	cancelCheckInterval = 256
)

// SimulationConfig holds the per-run accounting parameters of the loop.
type SimulationConfig struct {
	Ticker              string
	InitialCapital      float64
	CommissionRate      float64
	SlippageRate        float64
	PositionSizePercent float64
}

func (c SimulationConfig) Validate() error {
	if c.InitialCapital <= 0 || math.IsNaN(c.InitialCapital) || math.IsInf(c.InitialCapital, 0) {
		return fmt.Errorf("%w: initial capital must be positive, got %v", ErrInvalidConfig, c.InitialCapital)
	}
	if c.CommissionRate < 0 || c.CommissionRate >= 1 {
		return fmt.Errorf("%w: commission rate must be in [0, 1), got %v", ErrInvalidConfig, c.CommissionRate)
	}
	if c.SlippageRate < 0 || c.SlippageRate >= 1 {
		return fmt.Errorf("%w: slippage rate must be in [0, 1), got %v", ErrInvalidConfig, c.SlippageRate)
	}
	if c.PositionSizePercent <= 0 || c.PositionSizePercent > 100 {
		return fmt.Errorf("%w: position size percent must be in (0, 100], got %v", ErrInvalidConfig, c.PositionSizePercent)
	}
	return nil
}

// Simulation is the raw output of one pass over a bar series.
type Simulation struct {
	FinalCapital float64
	Trades       []Trade
	EquityCurve  []EquityPoint
}

// simState is owned by a single Simulate call. position is nil while flat.
type simState struct {
	cfg      SimulationConfig
	cash     float64
	position *Position
	trades   []Trade
	equity   []EquityPoint
}

// Simulate replays bars against signals with a single position slot.
//
// Signals are matched to bars by calendar date. When several signals share a
// date the last one in the slice wins. A Buy while holding and a Sell while flat
// are ignored. Any position still open after the last bar is closed at that
// bar's close.
//
// While a position is open its cost basis sits outside cash, so each equity
// sample is cash plus cost basis plus unrealized P&L at the bar close.
func Simulate(ctx context.Context, bars []Bar, signals []Signal, cfg SimulationConfig) (*Simulation, error) {
	if len(bars) == 0 {
		return nil, ErrNoData
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	lookup := IndexSignals(signals)
	state := &simState{
		cfg:    cfg,
		cash:   cfg.InitialCapital,
		trades: make([]Trade, 0),
		equity: make([]EquityPoint, 0, len(bars)),
	}

	for i, bar := range bars {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		state.equity = append(state.equity, EquityPoint{Date: bar.Date, Value: state.currentEquity(bar.Close)})

		signal, ok := lookup[dateKey(bar.Date)]
		if !ok {
			continue
		}

		switch signal.Kind {
		case SignalBuy:
			if state.position == nil {
				state.open(bar)
			}
		case SignalSell:
			if state.position != nil {
				state.close(bar, ExitReasonSignal)
			}
		}
	}

	if state.position != nil {
		state.close(bars[len(bars)-1], ExitReasonEndOfData)
	}

	return &Simulation{
		FinalCapital: state.cash,
		Trades:       state.trades,
		EquityCurve:  state.equity,
	}, nil
}

// IndexSignals builds the date lookup used by Simulate. Later signals overwrite
// earlier ones on the same calendar date.
func IndexSignals(signals []Signal) map[string]Signal {
	lookup := make(map[string]Signal, len(signals))
	for _, s := range signals {
		lookup[dateKey(s.Date)] = s
	}
	return lookup
}

// currentEquity is cash plus the marked value of the open position. The cost
// basis is included because it was debited from cash at entry.
func (s *simState) currentEquity(price float64) float64 {
	if s.position == nil {
		return s.cash
	}
	return s.cash + s.position.CostBasis() + s.position.UnrealizedPnL(price)
}

// open fills at close plus slippage and debits fill value plus commission and
// slippage as cost lines, so slippage is charged twice on entry.
func (s *simState) open(bar Bar) {
	entryPrice := bar.Close * (1 + s.cfg.SlippageRate)
	positionValue := s.cash * (s.cfg.PositionSizePercent / 100)

	size := int64(math.Floor(positionValue / entryPrice))
	if size < 1 {
		size = 1
	}

	cost := entryPrice * float64(size) * (1 + s.cfg.CommissionRate + s.cfg.SlippageRate)
	s.cash -= cost
	s.position = &Position{
		Ticker:     s.cfg.Ticker,
		Direction:  DirectionLong,
		EntryDate:  bar.Date,
		EntryPrice: entryPrice,
		Size:       size,
	}
}

// close fills at close minus slippage and credits cost basis plus P&L minus
// exit commission.
func (s *simState) close(bar Bar, reason string) {
	pos := s.position
	exitPrice := bar.Close * (1 - s.cfg.SlippageRate)
	trade := closeTrade(*pos, bar, exitPrice, reason)

	commission := exitPrice * float64(pos.Size) * s.cfg.CommissionRate
	s.cash += pos.CostBasis() + trade.PnL - commission
	s.trades = append(s.trades, trade)
	s.position = nil
}

func closeTrade(pos Position, bar Bar, exitPrice float64, reason string) Trade {
	pnl := pos.UnrealizedPnL(exitPrice)

	var pnlPercent float64
	if basis := pos.CostBasis(); basis != 0 {
		pnlPercent = pnl / basis * 100
	}

	return Trade{
		Ticker:     pos.Ticker,
		Direction:  pos.Direction,
		EntryDate:  pos.EntryDate,
		ExitDate:   bar.Date,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exitPrice,
		Size:       pos.Size,
		PnL:        pnl,
		PnLPercent: pnlPercent,
		ExitReason: reason,
	}
}
