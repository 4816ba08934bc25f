package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang-backtest/config"
	"golang-backtest/internal/backtest"
	"golang-backtest/internal/dto"
	"golang-backtest/internal/model"
	"golang-backtest/internal/repository"
	"golang-backtest/internal/strategy"
	"golang-backtest/pkg/cache"
	"golang-backtest/pkg/common"
	"golang-backtest/pkg/logger"
	"golang-backtest/pkg/utils"
)

var (
	ErrInvalidRequest     = errors.New("invalid backtest request")
	ErrRunNotFound        = errors.New("backtest run not found")
	ErrHistoryUnavailable = errors.New("backtest history is not available")
)

const defaultHistoryLimit = 20

// BacktestService runs backtests and serves the stored history.
type BacktestService interface {
	RunBacktest(ctx context.Context, req dto.BacktestRequest) (*dto.BacktestResponse, error)
	ListStrategies(ctx context.Context) []strategy.Info
	GetHistory(ctx context.Context, req dto.BacktestHistoryRequest) ([]dto.BacktestRunSummary, error)
	GetRun(ctx context.Context, id uint) (*dto.BacktestResponse, error)
}

type backtestService struct {
	cfg             *config.Config
	log             *logger.Logger
	barLoader       backtest.BarLoader
	backtestRunRepo repository.BacktestRunRepository
	systemParamRepo repository.SystemParamRepository
	aiRepo          repository.AIRepository
	inmemoryCache   cache.Cache
}

// NewBacktestService accepts nil repositories: without a run repository
// nothing is persisted, without a system param repository no stored strategy
// defaults are applied, and without an AI repository summaries are skipped.
func NewBacktestService(
	cfg *config.Config,
	log *logger.Logger,
	barLoader backtest.BarLoader,
	backtestRunRepo repository.BacktestRunRepository,
	systemParamRepo repository.SystemParamRepository,
	aiRepo repository.AIRepository,
	inmemoryCache cache.Cache,
) BacktestService {
	return &backtestService{
		cfg:             cfg,
		log:             log,
		barLoader:       barLoader,
		backtestRunRepo: backtestRunRepo,
		systemParamRepo: systemParamRepo,
		aiRepo:          aiRepo,
		inmemoryCache:   inmemoryCache,
	}
}

func (s *backtestService) RunBacktest(ctx context.Context, req dto.BacktestRequest) (*dto.BacktestResponse, error) {
	req.Ticker = utils.NormalizeTicker(req.Ticker)
	if req.Ticker == "" {
		return nil, fmt.Errorf("%w: ticker is required", ErrInvalidRequest)
	}
	start, end, err := req.DateRange()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if req.Source == "" {
		req.Source = model.SourceAPI
	}

	strat, err := strategy.New(req.Strategy, s.mergeParams(ctx, req.Strategy, req.Params))
	if err != nil {
		return nil, err
	}

	engineCfg, positionSize := s.engineConfig(req)
	cacheKey := fmt.Sprintf(common.KEY_BACKTEST_RESULT, requestFingerprint(req, strat, engineCfg, positionSize))
	if cached, found := cache.GetFromCache[*dto.BacktestResponse](s.inmemoryCache, cacheKey); found {
		s.log.DebugContext(ctx, "Backtest served from cache", logger.StringField("key", cacheKey))
		resp := *cached
		resp.Cached = true
		return &resp, nil
	}

	engine, err := backtest.NewEngine(engineCfg, s.barLoader, s.log)
	if err != nil {
		return nil, err
	}

	result, err := engine.Run(ctx, req.Ticker, strat, start, end, positionSize)
	if err != nil {
		return nil, err
	}

	resp := &dto.BacktestResponse{Report: result.Report(s.cfg.Backtest.MaxEquityPoints)}

	if req.WithSummary && s.aiRepo != nil {
		summary, err := s.aiRepo.SummarizeBacktest(ctx, resp.Report)
		if err != nil {
			s.log.WarnContext(ctx, "Failed to summarize backtest", logger.ErrorField(err), logger.StringField("ticker", req.Ticker))
		} else {
			resp.Summary = summary
		}
	}

	if s.backtestRunRepo != nil {
		run, err := newBacktestRun(resp, req.Source)
		if err == nil {
			err = s.backtestRunRepo.Create(ctx, run)
		}
		if err != nil {
			s.log.ErrorContextWithAlert(ctx, "Failed to save backtest run",
				logger.ErrorField(err),
				logger.StringField("ticker", req.Ticker),
				logger.StringField("strategy", strat.Name()),
			)
		} else {
			resp.RunID = run.ID
		}
	}

	s.log.InfoContext(ctx, "Backtest completed",
		logger.StringField("ticker", req.Ticker),
		logger.StringField("strategy", strat.Name()),
		logger.StringField("source", string(req.Source)),
		logger.FloatField("total_return", resp.Report.Metrics.TotalReturn),
		logger.IntField("total_trades", resp.Report.TotalTrades),
	)

	s.inmemoryCache.Set(cacheKey, resp, s.cfg.Cache.DefaultExpiration)
	return resp, nil
}

// mergeParams layers stored per-strategy defaults under the request params.
func (s *backtestService) mergeParams(ctx context.Context, name string, params map[string]float64) map[string]float64 {
	merged := make(map[string]float64)
	if s.systemParamRepo != nil {
		defaults, err := s.systemParamRepo.GetStrategyDefaults(ctx)
		if err != nil {
			s.log.WarnContext(ctx, "Failed to load strategy defaults", logger.ErrorField(err))
		}
		for k, v := range defaults[strings.ToLower(strings.TrimSpace(name))] {
			merged[k] = v
		}
	}
	for k, v := range params {
		merged[k] = v
	}
	return merged
}

func (s *backtestService) engineConfig(req dto.BacktestRequest) (backtest.Config, float64) {
	bt := s.cfg.Backtest
	cfg := backtest.Config{
		InitialCapital:     bt.InitialCapital,
		Commission:         bt.Commission,
		Slippage:           bt.Slippage,
		Interval:           bt.Interval,
		TradingDaysPerYear: bt.TradingDaysPerYear,
		RiskFreeRate:       bt.RiskFreeRate,
	}
	if req.InitialCapital > 0 {
		cfg.InitialCapital = req.InitialCapital
	}
	if req.Commission != nil {
		cfg.Commission = *req.Commission
	}
	if req.Slippage != nil {
		cfg.Slippage = *req.Slippage
	}
	if req.Interval != "" {
		cfg.Interval = req.Interval
	}

	positionSize := bt.PositionSizePercent
	if req.PositionSizePercent > 0 {
		positionSize = req.PositionSizePercent
	}
	return cfg, positionSize
}

func requestFingerprint(req dto.BacktestRequest, strat strategy.Strategy, cfg backtest.Config, positionSize float64) string {
	params := strat.Params()
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s|%s|%s|%s|%s", req.Ticker, strat.Name(), req.StartDate, req.EndDate, cfg.Interval)
	for _, k := range keys {
		fmt.Fprintf(&sb, "|%s=%g", k, params[k])
	}
	fmt.Fprintf(&sb, "|%g|%g|%g|%g|%t", cfg.InitialCapital, cfg.Commission, cfg.Slippage, positionSize, req.WithSummary)
	return sb.String()
}

func newBacktestRun(resp *dto.BacktestResponse, source model.BacktestRunSource) (*model.BacktestRun, error) {
	report := resp.Report
	params, err := json.Marshal(report.Params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}
	body, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	startDate, err := utils.ParseDate(report.StartDate)
	if err != nil {
		return nil, err
	}
	endDate, err := utils.ParseDate(report.EndDate)
	if err != nil {
		return nil, err
	}

	return &model.BacktestRun{
		Ticker:         report.Ticker,
		Strategy:       report.Strategy,
		Params:         params,
		StartDate:      startDate,
		EndDate:        endDate,
		Interval:       report.Interval,
		InitialCapital: report.InitialCapital,
		FinalCapital:   report.FinalCapital,
		TotalReturn:    report.Metrics.TotalReturn,
		SharpeRatio:    report.Metrics.SharpeRatio,
		MaxDrawdown:    report.Metrics.MaxDrawdown,
		WinRate:        report.Metrics.WinRate,
		TotalTrades:    report.TotalTrades,
		Report:         body,
		Summary:        resp.Summary,
		Source:         source,
	}, nil
}

func (s *backtestService) ListStrategies(ctx context.Context) []strategy.Info {
	infos := strategy.List()
	if s.systemParamRepo == nil {
		return infos
	}

	defaults, err := s.systemParamRepo.GetStrategyDefaults(ctx)
	if err != nil {
		s.log.WarnContext(ctx, "Failed to load strategy defaults", logger.ErrorField(err))
		return infos
	}
	for i := range infos {
		for k, v := range defaults[string(infos[i].Name)] {
			if _, known := infos[i].DefaultParams[k]; known {
				infos[i].DefaultParams[k] = v
			}
		}
	}
	return infos
}

func (s *backtestService) GetHistory(ctx context.Context, req dto.BacktestHistoryRequest) ([]dto.BacktestRunSummary, error) {
	if s.backtestRunRepo == nil {
		return nil, ErrHistoryUnavailable
	}
	if req.Limit <= 0 {
		req.Limit = defaultHistoryLimit
	}

	runs, err := s.backtestRunRepo.Get(ctx, model.GetBacktestRunParam{
		Ticker:   utils.NormalizeTicker(req.Ticker),
		Strategy: strings.ToLower(strings.TrimSpace(req.Strategy)),
		Limit:    req.Limit,
		Offset:   req.Offset,
	})
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to get backtest history", logger.ErrorField(err))
		return nil, err
	}

	summaries := make([]dto.BacktestRunSummary, 0, len(runs))
	for _, run := range runs {
		summaries = append(summaries, dto.NewBacktestRunSummary(run))
	}
	return summaries, nil
}

func (s *backtestService) GetRun(ctx context.Context, id uint) (*dto.BacktestResponse, error) {
	if s.backtestRunRepo == nil {
		return nil, ErrHistoryUnavailable
	}

	run, err := s.backtestRunRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
		}
		return nil, err
	}

	resp := &dto.BacktestResponse{RunID: run.ID, Summary: run.Summary}
	if err := json.Unmarshal(run.Report, &resp.Report); err != nil {
		return nil, fmt.Errorf("decode report of run %d: %w", run.ID, err)
	}
	return resp, nil
}
