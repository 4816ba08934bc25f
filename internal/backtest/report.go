package backtest

import (
	"math"

	"github.com/shopspring/decimal"
)

// DefaultMaxEquityPoints bounds the equity curve carried in a Report.
const DefaultMaxEquityPoints = 100

const reportDateLayout = "2006-01-02"

// Report is the transport form of a Result: money and ratios rounded to two
// decimals, equity curve downsampled.
type Report struct {
	Ticker         string             `json:"ticker"`
	Strategy       string             `json:"strategy"`
	Params         map[string]float64 `json:"params"`
	StartDate      string             `json:"start_date"`
	EndDate        string             `json:"end_date"`
	Interval       string             `json:"interval"`
	InitialCapital float64            `json:"initial_capital"`
	FinalCapital   float64            `json:"final_capital"`
	Metrics        Metrics            `json:"metrics"`
	TotalTrades    int                `json:"total_trades"`
	BarCount       int                `json:"bar_count"`
	Trades         []TradeReport      `json:"trades"`
	EquityCurve    []EquityReport     `json:"equity_curve"`
}

type TradeReport struct {
	Direction   Direction `json:"direction"`
	EntryDate   string    `json:"entry_date"`
	ExitDate    string    `json:"exit_date"`
	EntryPrice  float64   `json:"entry_price"`
	ExitPrice   float64   `json:"exit_price"`
	Size        int64     `json:"size"`
	PnL         float64   `json:"pnl"`
	PnLPercent  float64   `json:"pnl_percent"`
	HoldingDays int       `json:"holding_days"`
	ExitReason  string    `json:"exit_reason"`
}

type EquityReport struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Report builds the transport form. maxPoints <= 0 uses DefaultMaxEquityPoints.
func (r *Result) Report(maxPoints int) Report {
	params := make(map[string]float64, len(r.Params))
	for k, v := range r.Params {
		params[k] = v
	}

	trades := make([]TradeReport, 0, len(r.Trades))
	for _, t := range r.Trades {
		trades = append(trades, TradeReport{
			Direction:   t.Direction,
			EntryDate:   t.EntryDate.Format(reportDateLayout),
			ExitDate:    t.ExitDate.Format(reportDateLayout),
			EntryPrice:  Round2(t.EntryPrice),
			ExitPrice:   Round2(t.ExitPrice),
			Size:        t.Size,
			PnL:         Round2(t.PnL),
			PnLPercent:  Round2(t.PnLPercent),
			HoldingDays: t.HoldingDays(),
			ExitReason:  t.ExitReason,
		})
	}

	sampled := Downsample(r.EquityCurve, maxPoints)
	curve := make([]EquityReport, 0, len(sampled))
	for _, p := range sampled {
		curve = append(curve, EquityReport{Date: p.Date.Format(reportDateLayout), Value: Round2(p.Value)})
	}

	return Report{
		Ticker:         r.Ticker,
		Strategy:       r.Strategy,
		Params:         params,
		StartDate:      r.StartDate.Format(reportDateLayout),
		EndDate:        r.EndDate.Format(reportDateLayout),
		Interval:       r.Interval,
		InitialCapital: Round2(r.InitialCapital),
		FinalCapital:   Round2(r.FinalCapital),
		Metrics:        RoundMetrics(r.Metrics),
		TotalTrades:    len(r.Trades),
		BarCount:       r.BarCount,
		Trades:         trades,
		EquityCurve:    curve,
	}
}

// Round2 rounds half away from zero to two decimals. NaN and infinities become 0.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func RoundMetrics(m Metrics) Metrics {
	return Metrics{
		TotalReturn:         Round2(m.TotalReturn),
		AnnualizedReturn:    Round2(m.AnnualizedReturn),
		Volatility:          Round2(m.Volatility),
		DownsideDeviation:   Round2(m.DownsideDeviation),
		SharpeRatio:         Round2(m.SharpeRatio),
		SortinoRatio:        Round2(m.SortinoRatio),
		CalmarRatio:         Round2(m.CalmarRatio),
		MaxDrawdown:         Round2(m.MaxDrawdown),
		MaxDrawdownDuration: m.MaxDrawdownDuration,
		TotalTrades:         m.TotalTrades,
		WinningTrades:       m.WinningTrades,
		LosingTrades:        m.LosingTrades,
		WinRate:             Round2(m.WinRate),
		AvgWin:              Round2(m.AvgWin),
		AvgLoss:             Round2(m.AvgLoss),
		ProfitFactor:        Round2(m.ProfitFactor),
		AvgTradeReturn:      Round2(m.AvgTradeReturn),
	}
}

// Downsample picks at most maxPoints evenly spaced samples, always keeping the
// first and last point. The input is not modified.
func Downsample(curve []EquityPoint, maxPoints int) []EquityPoint {
	if maxPoints <= 0 {
		maxPoints = DefaultMaxEquityPoints
	}
	n := len(curve)
	if n <= maxPoints {
		out := make([]EquityPoint, n)
		copy(out, curve)
		return out
	}
	if maxPoints == 1 {
		return []EquityPoint{curve[n-1]}
	}

	out := make([]EquityPoint, 0, maxPoints)
	for i := 0; i < maxPoints; i++ {
		idx := i * (n - 1) / (maxPoints - 1)
		out = append(out, curve[idx])
	}
	return out
}
