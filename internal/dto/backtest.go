package dto

import (
	"fmt"
	"time"

	"golang-backtest/internal/backtest"
	"golang-backtest/internal/model"
)

const DateLayout = "2006-01-02"

// BacktestRequest mendefinisikan parameter untuk menjalankan sebuah backtest.
// Field opsional yang kosong memakai nilai dari konfigurasi.
type BacktestRequest struct {
	Ticker              string             `json:"ticker" validate:"required,max=20"`
	Strategy            string             `json:"strategy" validate:"required"`
	StartDate           string             `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate             string             `json:"end_date" validate:"required,datetime=2006-01-02"`
	Params              map[string]float64 `json:"params"`
	Interval            string             `json:"interval" validate:"omitempty,oneof=1d 1wk 1mo"`
	InitialCapital      float64            `json:"initial_capital" validate:"omitempty,gt=0"`
	Commission          *float64           `json:"commission" validate:"omitempty,gte=0,lt=1"`
	Slippage            *float64           `json:"slippage" validate:"omitempty,gte=0,lt=1"`
	PositionSizePercent float64            `json:"position_size_percent" validate:"omitempty,gt=0,lte=100"`
	WithSummary         bool               `json:"with_summary"`

	Source model.BacktestRunSource `json:"-"`
}

// DateRange parses StartDate and EndDate. End must not be before start.
func (r BacktestRequest) DateRange() (time.Time, time.Time, error) {
	start, err := time.Parse(DateLayout, r.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date: %w", err)
	}
	end, err := time.Parse(DateLayout, r.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end_date: %w", err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end_date %s is before start_date %s", r.EndDate, r.StartDate)
	}
	return start, end, nil
}

// BacktestResponse merangkum hasil dari sebuah sesi backtest.
type BacktestResponse struct {
	RunID   uint            `json:"run_id,omitempty"`
	Report  backtest.Report `json:"report"`
	Summary string          `json:"summary,omitempty"`
	Cached  bool            `json:"cached"`
}

type BacktestHistoryRequest struct {
	Ticker   string `query:"ticker" validate:"omitempty,max=20"`
	Strategy string `query:"strategy" validate:"omitempty,max=50"`
	Limit    int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Offset   int    `query:"offset" validate:"omitempty,min=0"`
}

// BacktestRunSummary is one row of the run history listing.
type BacktestRunSummary struct {
	ID          uint      `json:"id"`
	Ticker      string    `json:"ticker"`
	Strategy    string    `json:"strategy"`
	StartDate   string    `json:"start_date"`
	EndDate     string    `json:"end_date"`
	TotalReturn float64   `json:"total_return"`
	SharpeRatio float64   `json:"sharpe_ratio"`
	MaxDrawdown float64   `json:"max_drawdown"`
	WinRate     float64   `json:"win_rate"`
	TotalTrades int       `json:"total_trades"`
	Source      string    `json:"source"`
	CreatedAt   time.Time `json:"created_at"`
}

func NewBacktestRunSummary(run model.BacktestRun) BacktestRunSummary {
	return BacktestRunSummary{
		ID:          run.ID,
		Ticker:      run.Ticker,
		Strategy:    run.Strategy,
		StartDate:   run.StartDate.Format(DateLayout),
		EndDate:     run.EndDate.Format(DateLayout),
		TotalReturn: run.TotalReturn,
		SharpeRatio: run.SharpeRatio,
		MaxDrawdown: run.MaxDrawdown,
		WinRate:     run.WinRate,
		TotalTrades: run.TotalTrades,
		Source:      string(run.Source),
		CreatedAt:   run.CreatedAt,
	}
}
