package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"sort"
	"strings"

	"golang-backtest/internal/backtest"
	"golang-backtest/internal/dto"
	"golang-backtest/internal/helper"
	"golang-backtest/internal/model"
	"golang-backtest/internal/service"
	"golang-backtest/internal/strategy"
	"golang-backtest/pkg/cache"
	"golang-backtest/pkg/logger"
	"golang-backtest/pkg/telegram"
	"golang-backtest/pkg/utils"

	"gopkg.in/telebot.v3"
)

const historyLimit = 10

func (t *TelegramBotHandler) handleBacktest(ctx context.Context, c telebot.Context) error {
	req, err := helper.ParseBacktestArgs(c.Args(), t.now())
	if err != nil {
		return t.telegram.SendWithoutMsg(ctx, c,
			fmt.Sprintf("⚠️ %s\n\nUsage: <code>/backtest TICKER [STRATEGY] [START] [END] [key=value ...]</code>", html.EscapeString(err.Error())),
			telebot.ModeHTML)
	}
	req.Source = model.SourceTelegram

	loading, err := t.telegram.Send(ctx, c, fmt.Sprintf("⏳ Running %s on %s...", req.Strategy, req.Ticker))
	if err != nil {
		return err
	}

	resp, err := t.service.BacktestService.RunBacktest(ctx, req)
	if err != nil {
		t.log.WarnContext(ctx, "Telegram backtest failed", logger.ErrorField(err), logger.StringField("ticker", req.Ticker))
		_, err = t.telegram.Edit(ctx, c, loading, backtestErrorMessage(err), telebot.ModeHTML)
		return err
	}

	t.inmemoryCache.Set(fmt.Sprintf(UserLastBacktestKey, c.Sender().ID), req, t.cfg.Cache.DefaultExpiration)

	opts := []interface{}{telebot.ModeHTML}
	if t.cfg.Gemini.Enabled() {
		menu := &telebot.ReplyMarkup{}
		menu.Inline(menu.Row(menu.Data(btnBacktestSummary.Text, btnBacktestSummary.Unique)))
		opts = append(opts, menu)
	}
	_, err = t.telegram.Edit(ctx, c, loading, telegram.FormatBacktestReport(resp.Report, resp.Summary), opts...)
	return err
}

// handleBtnBacktestSummary replays the user's last backtest with an AI summary.
func (t *TelegramBotHandler) handleBtnBacktestSummary(ctx context.Context, c telebot.Context) error {
	req, ok := cache.GetFromCache[dto.BacktestRequest](t.inmemoryCache, fmt.Sprintf(UserLastBacktestKey, c.Sender().ID))
	if !ok {
		return c.Respond(&telebot.CallbackResponse{Text: "This backtest has expired, please run /backtest again."})
	}
	if err := c.Respond(&telebot.CallbackResponse{Text: "Asking the AI..."}); err != nil {
		t.log.WarnContext(ctx, "Failed to answer callback", logger.ErrorField(err))
	}

	req.WithSummary = true
	resp, err := t.service.BacktestService.RunBacktest(ctx, req)
	if err != nil {
		t.log.WarnContext(ctx, "Telegram backtest summary failed", logger.ErrorField(err), logger.StringField("ticker", req.Ticker))
		_, err = t.telegram.Edit(ctx, c, c.Message(), backtestErrorMessage(err), telebot.ModeHTML)
		return err
	}
	if resp.Summary == "" {
		resp.Summary = "AI summary is not available right now."
	}

	_, err = t.telegram.Edit(ctx, c, c.Message(), telegram.FormatBacktestReport(resp.Report, resp.Summary), telebot.ModeHTML)
	return err
}

func (t *TelegramBotHandler) handleStrategies(ctx context.Context, c telebot.Context) error {
	infos := t.service.BacktestService.ListStrategies(ctx)
	return t.telegram.SendWithoutMsg(ctx, c, formatStrategyList(infos), telebot.ModeHTML)
}

func (t *TelegramBotHandler) handleHistory(ctx context.Context, c telebot.Context) error {
	req := dto.BacktestHistoryRequest{Limit: historyLimit}
	if args := c.Args(); len(args) > 0 {
		req.Ticker = args[0]
	}

	runs, err := t.service.BacktestService.GetHistory(ctx, req)
	if err != nil {
		if errors.Is(err, service.ErrHistoryUnavailable) {
			return t.telegram.SendWithoutMsg(ctx, c, "History is not available on this deployment.")
		}
		t.log.ErrorContext(ctx, "Failed to get backtest history", logger.ErrorField(err))
		return t.telegram.SendWithoutMsg(ctx, c, commonErrorInternal)
	}
	return t.telegram.SendWithoutMsg(ctx, c, formatHistory(runs), telebot.ModeHTML)
}

// backtestErrorMessage turns a backtest failure into something a chat user
// can act on.
func backtestErrorMessage(err error) string {
	switch {
	case errors.Is(err, backtest.ErrNoData):
		return "📭 No price data found for that ticker and date range."
	case errors.Is(err, strategy.ErrUnknownStrategy):
		return "❓ Unknown strategy. Use /strategies to see the list."
	case errors.Is(err, strategy.ErrInvalidParams),
		errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, backtest.ErrInvalidConfig):
		return fmt.Sprintf("⚠️ %s", html.EscapeString(err.Error()))
	case errors.Is(err, context.DeadlineExceeded):
		return "⌛ The backtest took too long, try a shorter date range."
	default:
		return commonErrorInternal
	}
}

func formatStrategyList(infos []strategy.Info) string {
	var sb strings.Builder
	sb.WriteString("📚 <b>Strategies</b>\n")
	for _, info := range infos {
		sb.WriteString(fmt.Sprintf("\n<b>%s</b>\n%s\n", info.Name, html.EscapeString(info.Description)))
		for _, k := range sortedKeys(info.DefaultParams) {
			sb.WriteString(fmt.Sprintf(" • <code>%s=%g</code>\n", k, info.DefaultParams[k]))
		}
	}
	return sb.String()
}

func formatHistory(runs []dto.BacktestRunSummary) string {
	if len(runs) == 0 {
		return "No backtest runs yet. Try /backtest AAPL"
	}

	var sb strings.Builder
	sb.WriteString("🗂 <b>Recent backtests</b>\n\n")
	for _, run := range runs {
		sb.WriteString(fmt.Sprintf("#%d <b>%s</b> · %s\n", run.ID, html.EscapeString(run.Ticker), html.EscapeString(run.Strategy)))
		sb.WriteString(fmt.Sprintf("   %s → %s · %s · sharpe %.2f · %d trades\n",
			run.StartDate, run.EndDate, utils.FormatPercentage(run.TotalReturn), run.SharpeRatio, run.TotalTrades))
	}
	return sb.String()
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
