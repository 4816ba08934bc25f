package service

import (
	"golang-backtest/config"
	"golang-backtest/internal/contract"
	"golang-backtest/internal/job"
	"golang-backtest/internal/repository"
	"golang-backtest/pkg/cache"
	"golang-backtest/pkg/logger"
	"golang-backtest/pkg/telegram"
)

type Service struct {
	BacktestService  BacktestService
	SchedulerService SchedulerService
	TaskExecutor     TaskExecutor
	BatchBacktest    *job.BatchBacktestStrategy
}

// NewService wires the services on top of repo. telegram may be nil, in which
// case batch results are not pushed anywhere.
func NewService(
	cfg *config.Config,
	log *logger.Logger,
	repo *repository.Repository,
	inmemoryCache cache.Cache,
	telegram *telegram.TelegramRateLimiter,
) *Service {
	backtestService := NewBacktestService(cfg, log, repo.BarRepo, repo.BacktestRunRepo, repo.SystemParamRepo, repo.GeminiAIRepo, inmemoryCache)

	var notifier contract.Notifier
	if telegram != nil {
		notifier = telegram
	}

	batchBacktest := job.NewBatchBacktestStrategy(cfg, log, backtestService, notifier)
	taskExecutor := NewTaskExecutor(cfg, log, repo.JobRepo,
		batchBacktest,
		job.NewDataCleanUpStrategy(cfg, log, repo.BacktestRunRepo, repo.JobRepo, repo.UnitOfWork),
	)

	return &Service{
		BacktestService:  backtestService,
		SchedulerService: NewSchedulerService(cfg, log, repo.JobRepo, taskExecutor),
		TaskExecutor:     taskExecutor,
		BatchBacktest:    batchBacktest,
	}
}
