package service

import (
	"context"
	"database/sql"
	"fmt"

	"golang-backtest/config"
	"golang-backtest/internal/job"
	"golang-backtest/internal/model"
	"golang-backtest/internal/repository"
	"golang-backtest/pkg/logger"
	"golang-backtest/pkg/utils"
)

type TaskExecutor interface {
	Execute(ctx context.Context, taskHistory *model.TaskExecutionHistory) error
}

type taskExecutor struct {
	cfg                *config.Config
	log                *logger.Logger
	jobRepo            repository.JobRepository
	executorStrategies map[job.JobType]job.JobExecutionStrategy
}

func NewTaskExecutor(cfg *config.Config, log *logger.Logger, jobRepo repository.JobRepository, strategies ...job.JobExecutionStrategy) TaskExecutor {
	executorStrategies := make(map[job.JobType]job.JobExecutionStrategy, len(strategies))
	for _, s := range strategies {
		executorStrategies[s.GetType()] = s
	}
	return &taskExecutor{
		jobRepo:            jobRepo,
		cfg:                cfg,
		log:                log,
		executorStrategies: executorStrategies,
	}
}

// Execute runs the job behind taskHistory and records the outcome on it.
func (t *taskExecutor) Execute(ctx context.Context, taskHistory *model.TaskExecutionHistory) error {
	t.log.InfoContext(ctx, "Processing job", logger.IntField("job_id", int(taskHistory.JobID)), logger.IntField("history_id", int(taskHistory.ID)))

	jobData, err := t.jobRepo.FindByID(ctx, taskHistory.JobID)
	if err != nil {
		t.log.ErrorContext(ctx, "Failed to find job", logger.ErrorField(err), logger.IntField("job_id", int(taskHistory.JobID)))
		taskHistory.Status = model.StatusFailed
		taskHistory.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
		return t.finish(ctx, taskHistory, fmt.Errorf("failed to find job: %w", err))
	}

	executor := t.executorStrategies[job.JobType(jobData.Type)]
	if executor == nil {
		t.log.ErrorContext(ctx, "Job type not found", logger.IntField("job_id", int(taskHistory.JobID)), logger.StringField("job_type", jobData.Type))
		taskHistory.Status = model.StatusFailed
		taskHistory.ErrorMessage = sql.NullString{String: "job type not found", Valid: true}
		return t.finish(ctx, taskHistory, nil)
	}

	result, err := executor.Execute(ctx, jobData)
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		taskHistory.Status = model.StatusTimeout
		taskHistory.ErrorMessage = sql.NullString{String: ctx.Err().Error(), Valid: true}
	case err != nil:
		t.log.ErrorContext(ctx, "Failed to execute job", logger.ErrorField(err), logger.IntField("job_id", int(taskHistory.JobID)))
		taskHistory.Status = model.StatusFailed
		taskHistory.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
	default:
		taskHistory.Status = model.StatusCompleted
	}
	taskHistory.ExitCode = sql.NullInt32{Int32: result.ExitCode, Valid: true}
	taskHistory.Output = sql.NullString{String: result.Output, Valid: true}

	return t.finish(ctx, taskHistory, nil)
}

func (t *taskExecutor) finish(ctx context.Context, taskHistory *model.TaskExecutionHistory, cause error) error {
	taskHistory.CompletedAt = sql.NullTime{Time: utils.TimeNow(), Valid: true}
	// the job context may already be expired here
	if err := t.jobRepo.UpdateTaskExecutionHistory(context.WithoutCancel(ctx), taskHistory); err != nil {
		t.log.ErrorContext(ctx, "Failed to update task execution history", logger.ErrorField(err), logger.IntField("job_id", int(taskHistory.JobID)))
		return fmt.Errorf("failed to update task execution history: %w", err)
	}
	return cause
}
