package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang-backtest/pkg/logger"
)

// Config is the engine-level configuration fixed at construction time.
type Config struct {
	InitialCapital     float64
	Commission         float64
	Slippage           float64
	Interval           string
	TradingDaysPerYear int
	RiskFreeRate       float64
}

func DefaultConfig() Config {
	return Config{
		InitialCapital:     10000,
		Commission:         0.001,
		Slippage:           0.0005,
		Interval:           "1d",
		TradingDaysPerYear: DefaultTradingDaysPerYear,
		RiskFreeRate:       DefaultRiskFreeRate,
	}
}

func (c Config) Validate() error {
	if c.InitialCapital <= 0 || math.IsInf(c.InitialCapital, 0) || math.IsNaN(c.InitialCapital) {
		return fmt.Errorf("%w: initial capital must be positive", ErrInvalidConfig)
	}
	if c.Commission < 0 || c.Commission >= 1 {
		return fmt.Errorf("%w: commission must be in [0, 1)", ErrInvalidConfig)
	}
	if c.Slippage < 0 || c.Slippage >= 1 {
		return fmt.Errorf("%w: slippage must be in [0, 1)", ErrInvalidConfig)
	}
	if c.TradingDaysPerYear < 0 {
		return fmt.Errorf("%w: trading days per year must not be negative", ErrInvalidConfig)
	}
	return nil
}

// BarLoader provides ascending, date-unique bars for a ticker and range. An
// empty result is not an error at this layer.
type BarLoader interface {
	LoadBars(ctx context.Context, ticker string, start, end time.Time, interval string) ([]Bar, error)
}

// SignalGenerator is what the engine needs from a strategy. Implementations
// must be deterministic and free of side effects.
type SignalGenerator interface {
	Name() string
	Params() map[string]float64
	GenerateSignals(bars []Bar) []Signal
}

// Result is the outcome of one Run. Callers must treat it as read-only.
type Result struct {
	Ticker         string
	Strategy       string
	Params         map[string]float64
	StartDate      time.Time
	EndDate        time.Time
	Interval       string
	InitialCapital float64
	FinalCapital   float64
	Metrics        Metrics
	Trades         []Trade
	EquityCurve    []EquityPoint
	BarCount       int
	SignalCount    int
}

type Engine struct {
	cfg    Config
	loader BarLoader
	log    *logger.Logger
}

func NewEngine(cfg Config, loader BarLoader, log *logger.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Interval == "" {
		cfg.Interval = "1d"
	}
	if cfg.TradingDaysPerYear == 0 {
		cfg.TradingDaysPerYear = DefaultTradingDaysPerYear
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Engine{cfg: cfg, loader: loader, log: log}, nil
}

func (e *Engine) Config() Config {
	return e.cfg
}

// Run loads bars for ticker over [start, end] and backtests strategy on them.
// A positionSizePercent of 0 means the whole account.
func (e *Engine) Run(ctx context.Context, ticker string, strategy SignalGenerator, start, end time.Time, positionSizePercent float64) (*Result, error) {
	if e.loader == nil {
		return nil, fmt.Errorf("%w: engine has no bar loader", ErrInvalidConfig)
	}

	bars, err := e.loader.LoadBars(ctx, ticker, start, end, e.cfg.Interval)
	if err != nil {
		e.log.ErrorContext(ctx, "Failed to load bars for backtest", logger.ErrorField(err), logger.StringField("ticker", ticker))
		return nil, fmt.Errorf("load bars for %s: %w", ticker, err)
	}
	if len(bars) == 0 {
		e.log.WarnContext(ctx, "No bars returned for backtest", logger.StringField("ticker", ticker))
		return nil, fmt.Errorf("%w: %s", ErrNoData, ticker)
	}

	result, err := e.RunBars(ctx, ticker, strategy, bars, positionSizePercent)
	if err != nil {
		return nil, err
	}
	result.StartDate = start
	result.EndDate = end
	return result, nil
}

// RunBars backtests strategy over an already loaded series. The bars are only
// read, so one series may be shared by concurrent runs.
func (e *Engine) RunBars(ctx context.Context, ticker string, strategy SignalGenerator, bars []Bar, positionSizePercent float64) (*Result, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, ticker)
	}
	if positionSizePercent == 0 {
		positionSizePercent = 100
	}

	signals := strategy.GenerateSignals(bars)

	sim, err := Simulate(ctx, bars, signals, SimulationConfig{
		Ticker:              ticker,
		InitialCapital:      e.cfg.InitialCapital,
		CommissionRate:      e.cfg.Commission,
		SlippageRate:        e.cfg.Slippage,
		PositionSizePercent: positionSizePercent,
	})
	if err != nil {
		return nil, err
	}

	metrics := CalculateMetrics(
		EquityValues(sim.EquityCurve),
		sim.Trades,
		e.cfg.InitialCapital,
		WithTradingDaysPerYear(e.cfg.TradingDaysPerYear),
		WithRiskFreeRate(e.cfg.RiskFreeRate),
	)

	e.log.InfoContext(ctx, "Backtest simulation completed",
		logger.StringField("ticker", ticker),
		logger.StringField("strategy", strategy.Name()),
		logger.IntField("bar_count", len(bars)),
		logger.IntField("signal_count", len(signals)),
		logger.IntField("total_trades", metrics.TotalTrades),
		logger.FloatField("final_capital", sim.FinalCapital),
	)

	params := make(map[string]float64)
	for k, v := range strategy.Params() {
		params[k] = v
	}

	return &Result{
		Ticker:         ticker,
		Strategy:       strategy.Name(),
		Params:         params,
		StartDate:      bars[0].Date,
		EndDate:        bars[len(bars)-1].Date,
		Interval:       e.cfg.Interval,
		InitialCapital: e.cfg.InitialCapital,
		FinalCapital:   sim.FinalCapital,
		Metrics:        metrics,
		Trades:         sim.Trades,
		EquityCurve:    sim.EquityCurve,
		BarCount:       len(bars),
		SignalCount:    len(signals),
	}, nil
}
