package telegram

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"golang-backtest/config"
	"golang-backtest/pkg/logger"
	"golang-backtest/pkg/ratelimit"
	"golang-backtest/pkg/utils"

	"golang.org/x/time/rate"
	"gopkg.in/telebot.v3"
)

// TelegramRateLimiter wraps a bot with a global limiter plus one limiter per
// user, following Telegram's flood limits. It also serves as the alert sink
// for the logger and the notifier for batch jobs.
type TelegramRateLimiter struct {
	cfg           *config.TelegramConfig
	log           *logger.Logger
	globalLimiter *rate.Limiter
	userLimiters  *ratelimit.LimiterStore
	bot           *telebot.Bot
	editMu        sync.Mutex
	wg            sync.WaitGroup
}

func NewTelegramRateLimiter(cfg *config.TelegramConfig, log *logger.Logger, bot *telebot.Bot) *TelegramRateLimiter {
	globalPerSecond := cfg.MaxGlobalRequestPerSecond
	if globalPerSecond <= 0 {
		globalPerSecond = 30
	}
	userPerSecond := cfg.MaxUserRequestPerSecond
	if userPerSecond <= 0 {
		userPerSecond = 1
	}

	return &TelegramRateLimiter{
		cfg:           cfg,
		log:           log,
		bot:           bot,
		globalLimiter: rate.NewLimiter(rate.Limit(globalPerSecond), globalPerSecond),
		userLimiters:  ratelimit.NewLimiterStore(rate.Limit(userPerSecond), userPerSecond),
	}
}

func (t *TelegramRateLimiter) Send(ctx context.Context, c telebot.Context, what interface{}, opts ...interface{}) (*telebot.Message, error) {
	if err := t.checkRateLimit(ctx, c.Sender().ID); err != nil {
		return nil, err
	}
	return t.bot.Send(c.Chat(), what, opts...)
}

func (t *TelegramRateLimiter) SendWithoutMsg(ctx context.Context, c telebot.Context, what interface{}, opts ...interface{}) error {
	_, err := t.Send(ctx, c, what, opts...)
	if err != nil {
		t.log.ErrorContext(ctx, "Failed to send message", logger.ErrorField(err))
		return err
	}
	return nil
}

func (t *TelegramRateLimiter) SendMessageUser(ctx context.Context, message string, chatID int64, opts ...interface{}) error {
	if err := t.checkRateLimit(ctx, chatID); err != nil {
		return err
	}
	_, err := t.bot.Send(&telebot.Chat{ID: chatID}, message, opts...)
	return err
}

func (t *TelegramRateLimiter) Edit(ctx context.Context, c telebot.Context, msg *telebot.Message, what interface{}, opts ...interface{}) (*telebot.Message, error) {
	if err := t.checkRateLimit(ctx, c.Sender().ID); err != nil {
		return nil, err
	}

	t.editMu.Lock()
	defer t.editMu.Unlock()
	return t.bot.Edit(msg, what, opts...)
}

// Notify sends message as HTML to the configured operator chat.
func (t *TelegramRateLimiter) Notify(ctx context.Context, message string) error {
	if t.cfg.ChatID == 0 {
		return errors.New("telegram chat id is not configured")
	}
	return t.SendMessageUser(ctx, message, t.cfg.ChatID, telebot.ModeHTML)
}

// SendAlert is called by the logger alert core, outside of any request
// context.
func (t *TelegramRateLimiter) SendAlert(message string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return t.Notify(ctx, FormatErrorAlertMessage(utils.TimeNow(), message))
}

func (t *TelegramRateLimiter) checkRateLimit(ctx context.Context, senderID int64) error {
	if err := t.globalLimiter.Wait(ctx); err != nil {
		t.log.ErrorContext(ctx, "Failed to wait for global rate limit", logger.ErrorField(err))
		return err
	}
	userLimiter := t.userLimiters.GetLimiter(strconv.FormatInt(senderID, 10))
	if err := userLimiter.Wait(ctx); err != nil {
		t.log.ErrorContext(ctx, "Failed to wait for user rate limit", logger.ErrorField(err))
		return err
	}
	return nil
}

func (t *TelegramRateLimiter) StartCleanupExpired(ctx context.Context) {
	interval := t.cfg.RateLimitCleanupDuration
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	t.wg.Add(1)
	utils.GoSafe(t.log, func() {
		defer t.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				t.log.Info("Received signal to stop Telegram rate limiter cleanup expired")
				return
			case <-ticker.C:
				if removed := t.userLimiters.Cleanup(t.cfg.RatelimitExpireDuration); removed > 0 {
					t.log.Debug("Removed idle telegram user limiters", logger.IntField("removed", removed))
				}
			}
		}
	})
}

func (t *TelegramRateLimiter) StopCleanupExpired() {
	t.wg.Wait()
	t.log.Info("Telegram rate limiter stopped")
}
