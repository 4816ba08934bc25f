package model

import (
	"time"

	"gorm.io/datatypes"
)

type BacktestRunSource string

const (
	SourceAPI      BacktestRunSource = "api"
	SourceTelegram BacktestRunSource = "telegram"
	SourceCLI      BacktestRunSource = "cli"
	SourceJob      BacktestRunSource = "job"
)

// BacktestRun is one persisted backtest. Report holds the serialized report
// with the downsampled equity curve and trade list.
type BacktestRun struct {
	ID             uint              `gorm:"primaryKey" json:"id"`
	Ticker         string            `gorm:"type:varchar(20);not null;index" json:"ticker"`
	Strategy       string            `gorm:"type:varchar(50);not null;index" json:"strategy"`
	Params         datatypes.JSON    `gorm:"type:jsonb" json:"params"`
	StartDate      time.Time         `gorm:"type:date;not null" json:"start_date"`
	EndDate        time.Time         `gorm:"type:date;not null" json:"end_date"`
	Interval       string            `gorm:"type:varchar(10);not null" json:"interval"`
	InitialCapital float64           `gorm:"not null" json:"initial_capital"`
	FinalCapital   float64           `gorm:"not null" json:"final_capital"`
	TotalReturn    float64           `json:"total_return"`
	SharpeRatio    float64           `json:"sharpe_ratio"`
	MaxDrawdown    float64           `json:"max_drawdown"`
	WinRate        float64           `json:"win_rate"`
	TotalTrades    int               `json:"total_trades"`
	Report         datatypes.JSON    `gorm:"type:jsonb;not null" json:"report"`
	Summary        string            `gorm:"type:text" json:"summary,omitempty"`
	Source         BacktestRunSource `gorm:"type:varchar(20);not null" json:"source"`
	CreatedAt      time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

func (BacktestRun) TableName() string {
	return "backtest_runs"
}

type GetBacktestRunParam struct {
	Ticker   string
	Strategy string
	Source   BacktestRunSource
	Limit    int
	Offset   int
}
