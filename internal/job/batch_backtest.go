package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang-backtest/config"
	"golang-backtest/internal/contract"
	"golang-backtest/internal/dto"
	"golang-backtest/internal/model"
	"golang-backtest/pkg/logger"
	"golang-backtest/pkg/telegram"
	"golang-backtest/pkg/utils"

	"golang.org/x/sync/errgroup"
)

const defaultBatchLookbackDays = 365

var ErrInvalidBatchRequest = errors.New("invalid batch backtest request")

// BatchBacktestStrategy runs every ticker and strategy pair of a batch request
// with bounded concurrency. One failing pair never stops the others.
type BatchBacktestStrategy struct {
	cfg      *config.Config
	log      *logger.Logger
	runner   contract.BacktestRunner
	notifier contract.Notifier
	now      func() time.Time
}

// NewBatchBacktestStrategy accepts a nil notifier when no chat is configured.
func NewBatchBacktestStrategy(cfg *config.Config, log *logger.Logger, runner contract.BacktestRunner, notifier contract.Notifier) *BatchBacktestStrategy {
	return &BatchBacktestStrategy{
		cfg:      cfg,
		log:      log,
		runner:   runner,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *BatchBacktestStrategy) GetType() JobType {
	return JobTypeBatchBacktest
}

func (s *BatchBacktestStrategy) Execute(ctx context.Context, job *model.Job) (JobResult, error) {
	var payload dto.BatchBacktestRequest
	if err := job.DecodePayload(&payload); err != nil {
		s.log.ErrorContext(ctx, "Failed to unmarshal job payload", logger.ErrorField(err), logger.IntField("job_id", int(job.ID)))
		return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: err.Error()}, err
	}

	result, err := s.Run(ctx, payload, model.SourceJob)
	if err != nil {
		return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: err.Error()}, err
	}

	output, err := json.Marshal(result)
	if err != nil {
		return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: fmt.Sprintf("failed to marshal output: %v", err)}, fmt.Errorf("failed to marshal output: %w", err)
	}

	return JobResult{ExitCode: ExitCodeFor(result), Output: string(output)}, nil
}

// Run executes the batch and returns one item per pair in request order.
func (s *BatchBacktestStrategy) Run(ctx context.Context, req dto.BatchBacktestRequest, source model.BacktestRunSource) (*dto.BatchBacktestResult, error) {
	startDate, endDate, err := s.dateRange(req)
	if err != nil {
		return nil, err
	}

	type pair struct {
		ticker   string
		strategy string
	}
	var pairs []pair
	for _, ticker := range req.Tickers {
		for _, strategyName := range req.Strategies {
			pairs = append(pairs, pair{ticker: utils.NormalizeTicker(ticker), strategy: strategyName})
		}
	}

	s.log.InfoContext(ctx, "Starting batch backtest",
		logger.IntField("pair_count", len(pairs)),
		logger.StringField("start_date", startDate),
		logger.StringField("end_date", endDate),
	)

	items := make([]dto.BatchBacktestItem, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	limit := s.cfg.Scheduler.BatchConcurrency
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, p := range pairs {
		i, p := i, p
		g.Go(func() error {
			if !utils.ShouldContinue(gctx, s.log) {
				return gctx.Err()
			}

			item := dto.BatchBacktestItem{Ticker: p.ticker, Strategy: p.strategy}

			resp, err := s.runner.RunBacktest(gctx, dto.BacktestRequest{
				Ticker:    p.ticker,
				Strategy:  p.strategy,
				StartDate: startDate,
				EndDate:   endDate,
				Params:    req.Params[p.strategy],
				Source:    source,
			})
			if err != nil {
				s.log.WarnContext(gctx, "Batch backtest pair failed",
					logger.StringField("ticker", p.ticker),
					logger.StringField("strategy", p.strategy),
					logger.ErrorField(err),
				)
				item.Error = err.Error()
				items[i] = item
				return nil
			}

			item.RunID = resp.RunID
			item.TotalReturn = resp.Report.Metrics.TotalReturn
			item.SharpeRatio = resp.Report.Metrics.SharpeRatio
			item.MaxDrawdown = resp.Report.Metrics.MaxDrawdown
			item.TotalTrades = resp.Report.TotalTrades
			items[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.log.WarnContext(ctx, "Batch backtest interrupted", logger.ErrorField(err))
		return nil, fmt.Errorf("batch backtest interrupted: %w", err)
	}

	result := &dto.BatchBacktestResult{Items: items}
	for _, item := range items {
		if item.Error == "" {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}

	s.log.InfoContext(ctx, "Batch backtest completed",
		logger.IntField("succeeded", result.Succeeded),
		logger.IntField("failed", result.Failed),
	)

	if req.Notify && s.notifier != nil && len(items) > 0 {
		msg := telegram.FormatBatchResult(startDate, endDate, result)
		if err := s.notifier.Notify(ctx, msg); err != nil {
			s.log.WarnContext(ctx, "Failed to send batch backtest notification", logger.ErrorField(err))
		}
	}
	return result, nil
}

func (s *BatchBacktestStrategy) dateRange(req dto.BatchBacktestRequest) (string, string, error) {
	if req.StartDate != "" && req.EndDate != "" {
		return req.StartDate, req.EndDate, nil
	}
	if req.StartDate != "" || req.EndDate != "" {
		return "", "", fmt.Errorf("%w: start_date and end_date must be set together", ErrInvalidBatchRequest)
	}

	lookback := req.LookbackDays
	if lookback <= 0 {
		lookback = defaultBatchLookbackDays
	}
	end := utils.TruncateToDay(s.now())
	start := end.AddDate(0, 0, -lookback)
	return start.Format(utils.DateLayout), end.Format(utils.DateLayout), nil
}

// ExitCodeFor maps a batch outcome to the job exit code.
func ExitCodeFor(result *dto.BatchBacktestResult) int32 {
	switch {
	case len(result.Items) == 0:
		return JOB_EXIT_CODE_SKIPPED
	case result.Failed == 0:
		return JOB_EXIT_CODE_SUCCESS
	case result.Succeeded == 0:
		return JOB_EXIT_CODE_FAILED
	default:
		return JOB_EXIT_CODE_PARTIAL_SUCCESS
	}
}
