package telegram

import (
	"context"
	"strings"

	"golang-backtest/pkg/middleware"

	"gopkg.in/telebot.v3"
)

func (t *TelegramBotHandler) withContext(handler func(ctx context.Context, c telebot.Context) error) func(c telebot.Context) error {
	return middleware.WithContext(t.ctx, t.cfg.Telegram.TimeoutDuration, handler)
}

func (t *TelegramBotHandler) RegisterHandlers() {
	t.bot.Handle("/start", t.withContext(t.handleStart))
	t.bot.Handle("/help", t.withContext(t.handleHelp))
	t.bot.Handle("/strategies", t.withContext(t.handleStrategies))
	t.bot.Handle("/backtest", t.withContext(t.handleBacktest))
	t.bot.Handle("/history", t.withContext(t.handleHistory))
	t.bot.Handle("/scheduler", t.withContext(t.handleScheduler))
	t.bot.Handle(telebot.OnText, t.withContext(t.handleTextMessage))

	t.bot.Handle(&btnBacktestSummary, t.withContext(t.handleBtnBacktestSummary))
	t.bot.Handle(&btnDetailJob, t.withContext(t.handleBtnDetailJob))
	t.bot.Handle(&btnActionRunJob, t.withContext(t.handleBtnActionRunJob))
	t.bot.Handle(&btnActionBackToJobList, t.withContext(t.handleScheduler))
	t.bot.Handle(&btnDeleteMessage, t.withContext(t.handleBtnDeleteMessage))
}

func (t *TelegramBotHandler) handleStart(ctx context.Context, c telebot.Context) error {
	message := `👋 <b>Welcome to the backtest bot!</b>
Test trading strategies on historical prices before risking real money.

🧪 /backtest - Backtest a strategy on a ticker
📚 /strategies - List strategies and their default params
🗂 /history - Show recent backtest runs
🔄 /scheduler - Show scheduled jobs and run them manually
🆘 /help - Usage guide

🚀 Try <code>/backtest AAPL</code> to get started.`
	return t.telegram.SendWithoutMsg(ctx, c, message, telebot.ModeHTML)
}

func (t *TelegramBotHandler) handleHelp(ctx context.Context, c telebot.Context) error {
	message := `❓ <b>How to use /backtest</b>

<code>/backtest TICKER [STRATEGY] [START] [END] [key=value ...]</code>

• TICKER is a Yahoo Finance symbol, e.g. AAPL or BBCA.JK
• STRATEGY defaults to sma_crossover
• START and END use YYYY-MM-DD; without them the last 365 days are used
• key=value pairs override strategy params

Examples:
<code>/backtest AAPL</code>
<code>/backtest MSFT rsi_mean_reversion 2023-01-01 2023-12-31</code>
<code>/backtest NVDA momentum_breakout lookback=10 threshold=3</code>

📌 Past performance does not guarantee future results.`
	return t.telegram.SendWithoutMsg(ctx, c, message, telebot.ModeHTML)
}

func (t *TelegramBotHandler) handleTextMessage(ctx context.Context, c telebot.Context) error {
	if strings.HasPrefix(c.Text(), "/") {
		return t.telegram.SendWithoutMsg(ctx, c, "Unknown command. Use /help to see what I can do.")
	}
	return t.telegram.SendWithoutMsg(ctx, c, "I did not understand that. Use /help to see the available commands.")
}

func (t *TelegramBotHandler) handleBtnDeleteMessage(ctx context.Context, c telebot.Context) error {
	return c.Delete()
}
