package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang-backtest/config"
	"golang-backtest/internal/dto"
	"golang-backtest/internal/helper"
	"golang-backtest/internal/model"
	"golang-backtest/internal/repository"
	"golang-backtest/internal/service"
	"golang-backtest/pkg/cache"
	"golang-backtest/pkg/logger"
	"golang-backtest/pkg/utils"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
)

type backtestFlags struct {
	ticker     string
	strategy   string
	start      string
	end        string
	interval   string
	params     []string
	capital    float64
	commission float64
	slippage   float64
	size       float64
	summary    bool
}

var cliBacktest backtestFlags

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run one backtest against Yahoo Finance data and print the report as JSON",
	Example: `  golang-backtest backtest --ticker AAPL --strategy sma_crossover --start 2023-01-01 --end 2023-12-31
  golang-backtest backtest --ticker MSFT --strategy rsi_mean_reversion --param period=10 --param oversold=25`,
	RunE: runBacktestCommand,
}

func init() {
	f := backtestCmd.Flags()
	f.StringVar(&cliBacktest.ticker, "ticker", "", "Yahoo Finance ticker, e.g. AAPL")
	f.StringVar(&cliBacktest.strategy, "strategy", "sma_crossover", "strategy name")
	f.StringVar(&cliBacktest.start, "start", "", "start date YYYY-MM-DD (default: one year before end)")
	f.StringVar(&cliBacktest.end, "end", "", "end date YYYY-MM-DD (default: today)")
	f.StringVar(&cliBacktest.interval, "interval", "", "bar interval: 1d, 1wk or 1mo")
	f.StringArrayVar(&cliBacktest.params, "param", nil, "strategy param as key=value, repeatable")
	f.Float64Var(&cliBacktest.capital, "capital", 0, "initial capital")
	f.Float64Var(&cliBacktest.commission, "commission", -1, "commission rate per fill, e.g. 0.001")
	f.Float64Var(&cliBacktest.slippage, "slippage", -1, "slippage rate per fill, e.g. 0.0005")
	f.Float64Var(&cliBacktest.size, "size", 0, "position size as percent of cash")
	f.BoolVar(&cliBacktest.summary, "summary", false, "ask Gemini for a short summary (needs gemini.api_key)")
	_ = backtestCmd.MarkFlagRequired("ticker")
}

// toRequest builds the request the same way the API would receive it.
func (f backtestFlags) toRequest() (dto.BacktestRequest, error) {
	params, err := helper.ParseParamArgs(f.params)
	if err != nil {
		return dto.BacktestRequest{}, err
	}

	end := f.end
	if end == "" {
		end = utils.TruncateToDay(utils.TimeNow()).Format(utils.DateLayout)
	}
	start := f.start
	if start == "" {
		endDate, err := utils.ParseDate(end)
		if err != nil {
			return dto.BacktestRequest{}, fmt.Errorf("invalid --end: %w", err)
		}
		start = endDate.AddDate(0, 0, -helper.DefaultLookbackDays).Format(utils.DateLayout)
	}

	req := dto.BacktestRequest{
		Ticker:              f.ticker,
		Strategy:            f.strategy,
		StartDate:           start,
		EndDate:             end,
		Params:              params,
		Interval:            f.interval,
		InitialCapital:      f.capital,
		PositionSizePercent: f.size,
		WithSummary:         f.summary,
		Source:              model.SourceCLI,
	}
	if f.commission >= 0 {
		req.Commission = utils.ToPointer(f.commission)
	}
	if f.slippage >= 0 {
		req.Slippage = utils.ToPointer(f.slippage)
	}
	return req, nil
}

func runBacktestCommand(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	req, err := cliBacktest.toRequest()
	if err != nil {
		return err
	}
	if err := goValidator.New().Struct(req); err != nil {
		return err
	}

	barRepo, err := repository.NewCachedBarRepository(repository.NewYahooFinanceRepository(cfg, log), cfg.BarCache.Capacity, log)
	if err != nil {
		return err
	}

	var aiRepo repository.AIRepository
	if req.WithSummary && cfg.Gemini.Enabled() {
		aiRepo, err = repository.NewGeminiAIRepository(cfg, log)
		if err != nil {
			return err
		}
	}

	// nothing is persisted from the CLI
	backtestService := service.NewBacktestService(cfg, log, barRepo, nil, nil, aiRepo,
		cache.NewCache(cfg.Cache.DefaultExpiration, cfg.Cache.CleanupInterval))

	resp, err := backtestService.RunBacktest(ctx, req)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(resp)
}
