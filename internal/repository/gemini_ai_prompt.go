package repository

import (
	"fmt"
	"sort"
	"strings"

	"golang-backtest/internal/backtest"
)

// maxPromptTrades bounds how many trades are listed in the prompt.
const maxPromptTrades = 20

func promptSummarizeBacktest(report backtest.Report) string {
	var sb strings.Builder
	m := report.Metrics

	sb.WriteString(fmt.Sprintf(
		"You are a quantitative analyst. Review the backtest of the %s strategy on %s from %s to %s (%s bars, %d bars in total).\n\n",
		report.Strategy, report.Ticker, report.StartDate, report.EndDate, report.Interval, report.BarCount,
	))

	sb.WriteString("### Parameters\n")
	keys := make([]string, 0, len(report.Params))
	for k := range report.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("- %s: %g\n", k, report.Params[k]))
	}

	sb.WriteString("\n### Performance\n")
	sb.WriteString(fmt.Sprintf("- Initial capital: %.2f, final capital: %.2f\n", report.InitialCapital, report.FinalCapital))
	sb.WriteString(fmt.Sprintf("- Total return: %.2f%%, annualized: %.2f%%\n", m.TotalReturn, m.AnnualizedReturn))
	sb.WriteString(fmt.Sprintf("- Volatility: %.2f%%, max drawdown: %.2f%% over %d bars\n", m.Volatility, m.MaxDrawdown, m.MaxDrawdownDuration))
	sb.WriteString(fmt.Sprintf("- Sharpe: %.2f, Sortino: %.2f, Calmar: %.2f\n", m.SharpeRatio, m.SortinoRatio, m.CalmarRatio))
	sb.WriteString(fmt.Sprintf("- Trades: %d (won %d, lost %d), win rate %.2f%%, profit factor %.2f\n",
		m.TotalTrades, m.WinningTrades, m.LosingTrades, m.WinRate, m.ProfitFactor))

	if len(report.Trades) > 0 {
		sb.WriteString("\n### Trades\n")
		trades := report.Trades
		if len(trades) > maxPromptTrades {
			trades = trades[len(trades)-maxPromptTrades:]
			sb.WriteString(fmt.Sprintf("(last %d of %d)\n", maxPromptTrades, len(report.Trades)))
		}
		for _, t := range trades {
			sb.WriteString(fmt.Sprintf("- %s -> %s: %.2f -> %.2f, pnl %.2f (%.2f%%), %s\n",
				t.EntryDate, t.ExitDate, t.EntryPrice, t.ExitPrice, t.PnL, t.PnLPercent, t.ExitReason))
		}
	}

	sb.WriteString(`
### Task
Write at most 5 short sentences in plain text, no markdown:
1. Judge the result on risk-adjusted return (Sharpe, Sortino, drawdown).
2. Point out the biggest weakness visible in the numbers (drawdown, trade count, win rate or profit factor).
3. Suggest one concrete parameter change worth testing next.
`)
	return sb.String()
}
