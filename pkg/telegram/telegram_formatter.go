package telegram

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"golang-backtest/internal/backtest"
	"golang-backtest/internal/dto"
	"golang-backtest/pkg/utils"
)

// maxTradesInMessage keeps report messages under Telegram's 4096 char limit.
const maxTradesInMessage = 10

func FormatErrorAlertMessage(t time.Time, message string) string {
	return fmt.Sprintf("📛 <b>[ERROR ALERT]</b>\n%s\n\n<pre>%s</pre>", utils.PrettyDate(t), html.EscapeString(message))
}

// FormatBacktestReport renders a report as a Telegram HTML message.
func FormatBacktestReport(report backtest.Report, summary string) string {
	var sb strings.Builder
	m := report.Metrics

	emoji := "📈"
	if m.TotalReturn < 0 {
		emoji = "📉"
	}

	sb.WriteString(fmt.Sprintf("%s <b>%s</b> · %s\n", emoji, html.EscapeString(report.Ticker), html.EscapeString(report.Strategy)))
	sb.WriteString(fmt.Sprintf("🗓 %s → %s (%d bars)\n", report.StartDate, report.EndDate, report.BarCount))
	if len(report.Params) > 0 {
		sb.WriteString(fmt.Sprintf("⚙️ %s\n", html.EscapeString(formatParams(report.Params))))
	}
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("💰 Capital: %.2f → %.2f\n", report.InitialCapital, report.FinalCapital))
	sb.WriteString(fmt.Sprintf("Return: <b>%s</b> (annualized %s)\n", utils.FormatPercentage(m.TotalReturn), utils.FormatPercentage(m.AnnualizedReturn)))
	sb.WriteString(fmt.Sprintf("Sharpe %.2f · Sortino %.2f · Calmar %.2f\n", m.SharpeRatio, m.SortinoRatio, m.CalmarRatio))
	sb.WriteString(fmt.Sprintf("Max drawdown: %.2f%% (%d bars)\n", m.MaxDrawdown, m.MaxDrawdownDuration))
	sb.WriteString(fmt.Sprintf("Trades: %d · win rate %.2f%% · profit factor %.2f\n", m.TotalTrades, m.WinRate, m.ProfitFactor))

	if len(report.Trades) > 0 {
		sb.WriteString("\n<b>Trades</b>\n")
		trades := report.Trades
		if len(trades) > maxTradesInMessage {
			sb.WriteString(fmt.Sprintf("<i>last %d of %d</i>\n", maxTradesInMessage, len(trades)))
			trades = trades[len(trades)-maxTradesInMessage:]
		}
		for _, t := range trades {
			mark := "✅"
			if t.PnL < 0 {
				mark = "❌"
			}
			sb.WriteString(fmt.Sprintf("%s %s → %s  %.2f → %.2f  %s\n",
				mark, t.EntryDate, t.ExitDate, t.EntryPrice, t.ExitPrice, utils.FormatPercentage(t.PnLPercent)))
		}
	}

	if summary != "" {
		sb.WriteString("\n🤖 ")
		sb.WriteString(html.EscapeString(summary))
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatBatchResult lists batch items best return first, failures last.
func FormatBatchResult(startDate, endDate string, result *dto.BatchBacktestResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🧪 <b>Batch backtest</b> %s → %s\n", startDate, endDate))
	sb.WriteString(fmt.Sprintf("✅ %d succeeded · ❌ %d failed\n\n", result.Succeeded, result.Failed))

	items := make([]dto.BatchBacktestItem, len(result.Items))
	copy(items, result.Items)
	sort.SliceStable(items, func(i, j int) bool {
		if (items[i].Error == "") != (items[j].Error == "") {
			return items[i].Error == ""
		}
		return items[i].TotalReturn > items[j].TotalReturn
	})

	for _, item := range items {
		name := html.EscapeString(item.Ticker + " · " + item.Strategy)
		if item.Error != "" {
			sb.WriteString(fmt.Sprintf("❌ %s: %s\n", name, html.EscapeString(item.Error)))
			continue
		}
		sb.WriteString(fmt.Sprintf("• %s: %s, sharpe %.2f, dd %.2f%%, %d trades\n",
			name, utils.FormatPercentage(item.TotalReturn), item.SharpeRatio, item.MaxDrawdown, item.TotalTrades))
	}
	return sb.String()
}

func formatParams(params map[string]float64) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%g", k, params[k]))
	}
	return strings.Join(parts, " ")
}
