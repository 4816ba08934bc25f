package middleware

import (
	"context"
	"time"

	"gopkg.in/telebot.v3"
)

const defaultTelegramTimeout = 5 * time.Minute

// WithContext gives every update its own deadline derived from rootCtx, so
// shutdown cancels in-flight handlers. A non-positive timeout uses five
// minutes.
func WithContext(rootCtx context.Context, timeout time.Duration, handler func(ctx context.Context, c telebot.Context) error) func(c telebot.Context) error {
	if timeout <= 0 {
		timeout = defaultTelegramTimeout
	}
	return func(c telebot.Context) error {
		ctx, cancel := context.WithTimeout(rootCtx, timeout)
		defer cancel()

		return handler(ctx, c)
	}
}
