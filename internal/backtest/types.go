package backtest

import "time"

// Bar is a single OHLCV record. Bars within a series are expected to be sorted
// ascending by Date; the engine does not re-check that.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

type SignalKind string

const (
	SignalBuy  SignalKind = "BUY"
	SignalSell SignalKind = "SELL"
	SignalHold SignalKind = "HOLD"
)

// Signal is a strategy instruction for one calendar date. Strength is advisory
// and is not read by the simulation.
type Signal struct {
	Date     time.Time  `json:"date"`
	Kind     SignalKind `json:"kind"`
	Price    float64    `json:"price"`
	Strength float64    `json:"strength"`
	Reason   string     `json:"reason"`
}

type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Position is the single open position slot held by a simulation.
type Position struct {
	Ticker     string    `json:"ticker"`
	Direction  Direction `json:"direction"`
	EntryDate  time.Time `json:"entry_date"`
	EntryPrice float64   `json:"entry_price"`
	Size       int64     `json:"size"`
}

// CostBasis is the notional value of the position at its fill price.
func (p Position) CostBasis() float64 {
	return p.EntryPrice * float64(p.Size)
}

// UnrealizedPnL marks the position to the given price.
func (p Position) UnrealizedPnL(price float64) float64 {
	if p.Direction == DirectionShort {
		return (p.EntryPrice - price) * float64(p.Size)
	}
	return (price - p.EntryPrice) * float64(p.Size)
}

// Trade is a completed round trip.
type Trade struct {
	Ticker     string    `json:"ticker"`
	Direction  Direction `json:"direction"`
	EntryDate  time.Time `json:"entry_date"`
	ExitDate   time.Time `json:"exit_date"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	Size       int64     `json:"size"`
	PnL        float64   `json:"pnl"`
	PnLPercent float64   `json:"pnl_percent"`
	ExitReason string    `json:"exit_reason"`
}

// HoldingDays is the number of calendar days between entry and exit, minimum 1.
func (t Trade) HoldingDays() int {
	days := int(t.ExitDate.Sub(t.EntryDate).Hours() / 24)
	if days < 1 {
		return 1
	}
	return days
}

type EquityPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// EquityValues strips the dates off an equity curve.
func EquityValues(curve []EquityPoint) []float64 {
	values := make([]float64, len(curve))
	for i, p := range curve {
		values[i] = p.Value
	}
	return values
}

// dateKey identifies a bar or signal by calendar date, ignoring time of day.
func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
