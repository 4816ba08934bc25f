package backtest

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

const (
	DefaultTradingDaysPerYear = 252
	DefaultRiskFreeRate       = 0.02
)

// Metrics is the performance report derived from an equity curve and a trade
// list. Percent-style fields are in percent units and are never rounded here.
type Metrics struct {
	TotalReturn         float64 `json:"total_return"`
	AnnualizedReturn    float64 `json:"annualized_return"`
	Volatility          float64 `json:"volatility"`
	DownsideDeviation   float64 `json:"downside_deviation"`
	SharpeRatio         float64 `json:"sharpe_ratio"`
	SortinoRatio        float64 `json:"sortino_ratio"`
	CalmarRatio         float64 `json:"calmar_ratio"`
	MaxDrawdown         float64 `json:"max_drawdown"`
	MaxDrawdownDuration int     `json:"max_drawdown_duration"`
	TotalTrades         int     `json:"total_trades"`
	WinningTrades       int     `json:"winning_trades"`
	LosingTrades        int     `json:"losing_trades"`
	WinRate             float64 `json:"win_rate"`
	AvgWin              float64 `json:"avg_win"`
	AvgLoss             float64 `json:"avg_loss"`
	ProfitFactor        float64 `json:"profit_factor"`
	AvgTradeReturn      float64 `json:"avg_trade_return"`
}

type metricsConfig struct {
	tradingDaysPerYear int
	riskFreeRate       float64
}

type MetricsOption func(*metricsConfig)

// WithTradingDaysPerYear overrides the annualization factor. Non-positive values are ignored.
func WithTradingDaysPerYear(days int) MetricsOption {
	return func(c *metricsConfig) {
		if days > 0 {
			c.tradingDaysPerYear = days
		}
	}
}

// WithRiskFreeRate sets the annual risk-free rate as a fraction (0.02 = 2%).
func WithRiskFreeRate(rate float64) MetricsOption {
	return func(c *metricsConfig) {
		c.riskFreeRate = rate
	}
}

// CalculateMetrics derives the performance report. It has no side effects and
// is safe for concurrent use on independent inputs. Fewer than two equity
// points yield a zero report.
//
// Volatility and downside deviation use the population standard deviation of
// per-bar returns, annualized by sqrt(trading days per year).
func CalculateMetrics(equity []float64, trades []Trade, initialCapital float64, opts ...MetricsOption) Metrics {
	cfg := metricsConfig{
		tradingDaysPerYear: DefaultTradingDaysPerYear,
		riskFreeRate:       DefaultRiskFreeRate,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if len(equity) < 2 {
		return Metrics{}
	}

	var m Metrics
	finalEquity := equity[len(equity)-1]
	if initialCapital != 0 {
		m.TotalReturn = (finalEquity - initialCapital) / initialCapital * 100
	}

	annualization := math.Sqrt(float64(cfg.tradingDaysPerYear))
	returns := periodReturns(equity)
	m.Volatility = stat.PopStdDev(returns, nil) * annualization * 100

	years := float64(len(equity)) / float64(cfg.tradingDaysPerYear)
	if years > 0 && finalEquity > 0 && initialCapital > 0 {
		m.AnnualizedReturn = (math.Pow(finalEquity/initialCapital, 1/years) - 1) * 100
	}

	excessReturn := m.AnnualizedReturn - cfg.riskFreeRate*100
	if m.Volatility > 0 {
		m.SharpeRatio = excessReturn / m.Volatility
	}

	if downside := negativeValues(returns); len(downside) > 0 {
		m.DownsideDeviation = stat.PopStdDev(downside, nil) * annualization * 100
		if m.DownsideDeviation > 0 {
			m.SortinoRatio = excessReturn / m.DownsideDeviation
		}
	}

	m.MaxDrawdown, m.MaxDrawdownDuration = maxDrawdown(equity)
	if m.MaxDrawdown > 0 {
		m.CalmarRatio = m.AnnualizedReturn / m.MaxDrawdown
	}

	applyTradeStats(&m, trades)
	return m
}

// periodReturns returns the simple return between consecutive equity points.
// A step from zero equity counts as a zero return.
func periodReturns(equity []float64) []float64 {
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1]
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, (equity[i]-prev)/prev)
	}
	return returns
}

func negativeValues(values []float64) []float64 {
	var out []float64
	for _, v := range values {
		if v < 0 {
			out = append(out, v)
		}
	}
	return out
}

// maxDrawdown walks the curve once against a running peak. Duration is the
// longest run of consecutive points strictly below the peak; a new peak
// resets the run.
func maxDrawdown(equity []float64) (float64, int) {
	peak := equity[0]
	var (
		maxDD      float64
		run        int
		longestRun int
	)

	for _, value := range equity {
		if value > peak {
			peak = value
			run = 0
		}

		var dd float64
		if peak > 0 {
			dd = (peak - value) / peak * 100
		}
		if dd > maxDD {
			maxDD = dd
		}

		if dd > 0 {
			run++
			if run > longestRun {
				longestRun = run
			}
		} else {
			run = 0
		}
	}
	return maxDD, longestRun
}

// applyTradeStats fills the trade section. Break-even trades count toward the
// total but neither wins nor losses.
func applyTradeStats(m *Metrics, trades []Trade) {
	m.TotalTrades = len(trades)
	if m.TotalTrades == 0 {
		return
	}

	var grossProfit, grossLoss, totalPnL float64
	for _, t := range trades {
		totalPnL += t.PnL
		switch {
		case t.PnL > 0:
			m.WinningTrades++
			grossProfit += t.PnL
		case t.PnL < 0:
			m.LosingTrades++
			grossLoss += -t.PnL
		}
	}

	m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades) * 100
	m.AvgTradeReturn = totalPnL / float64(m.TotalTrades)
	if m.WinningTrades > 0 {
		m.AvgWin = grossProfit / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AvgLoss = grossLoss / float64(m.LosingTrades)
	}
	if grossLoss > 0 {
		m.ProfitFactor = grossProfit / grossLoss
	}
}
