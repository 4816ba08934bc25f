package job

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang-backtest/config"
	"golang-backtest/internal/dto"
	"golang-backtest/internal/model"
	"golang-backtest/internal/repository"
	"golang-backtest/pkg/logger"
	"golang-backtest/pkg/utils"
)

type DataCleanUpResult struct {
	Table string `json:"table"`
	Total int64  `json:"total"`
}

// DataCleanUpStrategy prunes old backtest runs and task history in a single
// transaction.
type DataCleanUpStrategy struct {
	cfg             *config.Config
	log             *logger.Logger
	backtestRunRepo repository.BacktestRunRepository
	jobRepo         repository.JobRepository
	uow             repository.UnitOfWork
}

func NewDataCleanUpStrategy(cfg *config.Config, log *logger.Logger, backtestRunRepo repository.BacktestRunRepository, jobRepo repository.JobRepository, uow repository.UnitOfWork) *DataCleanUpStrategy {
	return &DataCleanUpStrategy{
		cfg:             cfg,
		log:             log,
		backtestRunRepo: backtestRunRepo,
		jobRepo:         jobRepo,
		uow:             uow,
	}
}

func (s *DataCleanUpStrategy) GetType() JobType {
	return JobTypeDataCleanUp
}

func (s *DataCleanUpStrategy) Execute(ctx context.Context, job *model.Job) (JobResult, error) {
	s.log.InfoContext(ctx, "Starting data clean up", logger.IntField("job_id", int(job.ID)))

	payload := dto.DataCleanUpPayload{}
	if len(job.Payload) > 0 {
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			s.log.ErrorContext(ctx, "Failed to unmarshal job payload", logger.ErrorField(err), logger.IntField("job_id", int(job.ID)))
			return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: fmt.Sprintf("failed to unmarshal job payload: %v", err)}, fmt.Errorf("failed to unmarshal job payload: %w", err)
		}
	}
	if payload.BacktestRunRetentionDays <= 0 {
		payload.BacktestRunRetentionDays = s.cfg.Backtest.HistoryRetention
	}
	if payload.TaskHistoryRetentionDays <= 0 {
		payload.TaskHistoryRetentionDays = s.cfg.Backtest.HistoryRetention
	}
	if payload.BacktestRunRetentionDays <= 0 || payload.TaskHistoryRetentionDays <= 0 {
		return JobResult{ExitCode: JOB_EXIT_CODE_SKIPPED, Output: "retention is not configured"}, nil
	}

	now := utils.TimeNow()
	runCutoff := now.AddDate(0, 0, -payload.BacktestRunRetentionDays)
	historyCutoff := now.AddDate(0, 0, -payload.TaskHistoryRetentionDays)

	var outputMsg []DataCleanUpResult
	err := s.uow.Run(ctx, func(opts ...utils.DBOption) error {
		outputMsg = outputMsg[:0]

		totalRuns, err := s.backtestRunRepo.DeleteOlderThan(ctx, runCutoff, opts...)
		if err != nil {
			return fmt.Errorf("failed to delete backtest runs older than %s: %w", runCutoff.Format(time.RFC3339), err)
		}
		outputMsg = append(outputMsg, DataCleanUpResult{Table: "backtest_runs", Total: totalRuns})

		totalHistory, err := s.jobRepo.DeleteTaskHistoryOlderThan(ctx, historyCutoff, opts...)
		if err != nil {
			return fmt.Errorf("failed to delete task history older than %s: %w", historyCutoff.Format(time.RFC3339), err)
		}
		outputMsg = append(outputMsg, DataCleanUpResult{Table: "task_execution_history", Total: totalHistory})
		return nil
	})
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to clean up data", logger.ErrorField(err), logger.IntField("job_id", int(job.ID)))
		return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: err.Error()}, err
	}

	res, err := json.Marshal(outputMsg)
	if err != nil {
		return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: fmt.Sprintf("failed to marshal output message: %v", err)}, fmt.Errorf("failed to marshal output message: %w", err)
	}
	return JobResult{ExitCode: JOB_EXIT_CODE_SUCCESS, Output: string(res)}, nil
}
