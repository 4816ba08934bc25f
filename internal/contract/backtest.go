package contract

import (
	"context"

	"golang-backtest/internal/dto"
)

// BacktestRunner runs a single backtest request end to end.
type BacktestRunner interface {
	RunBacktest(ctx context.Context, req dto.BacktestRequest) (*dto.BacktestResponse, error)
}

// Notifier pushes a plain message to the operator channel.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}
