package dto

// BatchBacktestRequest is both the HTTP body of a batch run and the payload
// stored on a batch_backtest job. Either a date range or LookbackDays is used.
type BatchBacktestRequest struct {
	Tickers      []string                      `json:"tickers" validate:"required,min=1,max=50,dive,required,max=20"`
	Strategies   []string                      `json:"strategies" validate:"required,min=1,dive,required"`
	Params       map[string]map[string]float64 `json:"params"`
	StartDate    string                        `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate      string                        `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	LookbackDays int                           `json:"lookback_days" validate:"omitempty,min=1,max=7300"`
	Notify       bool                          `json:"notify"`
}

type BatchBacktestItem struct {
	Ticker      string  `json:"ticker"`
	Strategy    string  `json:"strategy"`
	RunID       uint    `json:"run_id,omitempty"`
	TotalReturn float64 `json:"total_return"`
	SharpeRatio float64 `json:"sharpe_ratio"`
	MaxDrawdown float64 `json:"max_drawdown"`
	TotalTrades int     `json:"total_trades"`
	Error       string  `json:"error,omitempty"`
}

type BatchBacktestResult struct {
	Items     []BatchBacktestItem `json:"items"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
}

// DataCleanUpPayload configures the history clean-up job.
type DataCleanUpPayload struct {
	BacktestRunRetentionDays int `json:"backtest_run_retention_days"`
	TaskHistoryRetentionDays int `json:"task_history_retention_days"`
}
