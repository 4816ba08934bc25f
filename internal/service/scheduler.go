package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"golang-backtest/config"
	"golang-backtest/internal/model"
	"golang-backtest/internal/repository"
	"golang-backtest/pkg/logger"
	"golang-backtest/pkg/utils"

	"github.com/robfig/cron/v3"
)

var ErrJobNotFound = errors.New("job not found")

// SchedulerService dispatches due task schedules to the task executor. Start
// drives Execute from an in-process cron tick; Execute can also be triggered
// from the API.
type SchedulerService interface {
	Start(ctx context.Context) error
	Stop()
	Execute(ctx context.Context) error
	GetJobSchedule(ctx context.Context, param model.GetJobParam) ([]model.Job, error)
	RunJobTask(ctx context.Context, jobID uint) error
}

type schedulerService struct {
	cfg          *config.Config
	log          *logger.Logger
	cronParser   cron.Parser
	cron         *cron.Cron
	jobRepo      repository.JobRepository
	taskExecutor TaskExecutor
	semaphore    chan struct{}
	wg           sync.WaitGroup
}

func NewSchedulerService(
	cfg *config.Config,
	log *logger.Logger,
	jobRepo repository.JobRepository,
	taskExecutor TaskExecutor,
) *schedulerService {
	maxConcurrency := cfg.Scheduler.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &schedulerService{
		cfg:          cfg,
		log:          log,
		jobRepo:      jobRepo,
		cronParser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		taskExecutor: taskExecutor,
		semaphore:    make(chan struct{}, maxConcurrency),
	}
}

func (s *schedulerService) Start(ctx context.Context) error {
	s.cron = cron.New(cron.WithParser(s.cronParser), cron.WithLocation(utils.Location()))
	_, err := s.cron.AddFunc(s.cfg.Scheduler.TickCron, func() {
		if err := s.Execute(ctx); err != nil {
			s.log.ErrorContext(ctx, "Scheduler tick failed", logger.ErrorField(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid scheduler tick %q: %w", s.cfg.Scheduler.TickCron, err)
	}

	s.cron.Start()
	s.log.InfoContext(ctx, "Scheduler started", logger.StringField("tick_cron", s.cfg.Scheduler.TickCron))
	return nil
}

// Stop halts the tick and waits for running tasks.
func (s *schedulerService) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.wg.Wait()
	s.log.Info("Scheduler stopped")
}

func (s *schedulerService) Execute(ctx context.Context) error {
	schedules, err := s.jobRepo.FindJobsToSchedule(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to find jobs to schedule", logger.ErrorField(err))
		return fmt.Errorf("failed to find jobs to schedule: %w", err)
	}

	if len(schedules) == 0 {
		s.log.DebugContext(ctx, "No jobs to schedule")
		return nil
	}
	s.log.InfoContext(ctx, "Start running jobs",
		logger.IntField("job_count", len(schedules)),
		logger.IntField("max_concurrency", cap(s.semaphore)),
	)

	for i := range schedules {
		if ctx.Err() != nil {
			s.log.WarnContext(ctx, "Job execution cancelled", logger.ErrorField(ctx.Err()))
			return nil
		}

		task := schedules[i]
		if err := s.executeJob(ctx, &task.Job, &task); err != nil {
			s.log.ErrorContextWithAlert(ctx, "Failed to execute job",
				logger.ErrorField(err),
				logger.IntField("job_id", int(task.JobID)),
				logger.IntField("schedule_id", int(task.ID)),
				logger.StringField("job_name", task.Job.Name),
				logger.StringField("job_type", task.Job.Type),
			)
		}
	}

	return nil
}

// executeJob records a running history row, hands the job to a worker and,
// for scheduled runs, advances the schedule. schedule is nil for manual runs.
func (s *schedulerService) executeJob(ctx context.Context, jobData *model.Job, schedule *model.TaskSchedule) error {
	s.log.DebugContext(ctx, "Executing job",
		logger.IntField("job_id", int(jobData.ID)),
		logger.StringField("job_name", jobData.Name),
		logger.StringField("job_type", jobData.Type),
		logger.IntField("timeout", jobData.Timeout),
		logger.IntField("active_concurrency", len(s.semaphore)),
		logger.IntField("max_concurrency", cap(s.semaphore)),
	)

	now := utils.TimeNow()
	history := &model.TaskExecutionHistory{
		JobID:     jobData.ID,
		Status:    model.StatusRunning,
		StartedAt: now,
	}
	if schedule != nil {
		history.ScheduleID = utils.ToPointer(schedule.ID)
	}

	if err := s.jobRepo.CreateTaskExecutionHistory(ctx, history); err != nil {
		s.log.ErrorContext(ctx, "Failed to create task history", logger.ErrorField(err), logger.IntField("job_id", int(jobData.ID)))
		return fmt.Errorf("failed to create task history: %w", err)
	}

	timeout := jobData.TimeoutDuration(s.cfg.Scheduler.TimeoutDuration)
	s.semaphore <- struct{}{}
	s.wg.Add(1)
	utils.GoSafe(s.log, func() {
		defer s.wg.Done()
		defer func() {
			<-s.semaphore
		}()

		newCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := s.taskExecutor.Execute(newCtx, history); err != nil {
			s.log.ErrorContextWithAlert(newCtx, "Failed to execute task", logger.ErrorField(err), logger.IntField("job_id", int(jobData.ID)))
		}
	})

	if schedule == nil {
		return nil
	}

	cronSchedule, err := s.cronParser.Parse(schedule.CronExpression)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to parse cron expression", logger.ErrorField(err), logger.IntField("schedule_id", int(schedule.ID)))
		return fmt.Errorf("failed to parse cron expression: %w", err)
	}

	schedule.LastExecution = sql.NullTime{Time: now, Valid: true}
	schedule.NextExecution = sql.NullTime{Time: cronSchedule.Next(now), Valid: true}

	if err := s.jobRepo.UpdateTaskSchedule(ctx, schedule); err != nil {
		s.log.ErrorContext(ctx, "Failed to update task schedule", logger.ErrorField(err), logger.IntField("schedule_id", int(schedule.ID)))
		return fmt.Errorf("failed to update task schedule: %w", err)
	}
	return nil
}

func (s *schedulerService) GetJobSchedule(ctx context.Context, param model.GetJobParam) ([]model.Job, error) {
	return s.jobRepo.Get(ctx, &param)
}

// RunJobTask runs a job immediately without touching its schedule.
func (s *schedulerService) RunJobTask(ctx context.Context, jobID uint) error {
	s.log.InfoContext(ctx, "Running job task", logger.IntField("job_id", int(jobID)))
	jobData, err := s.jobRepo.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return fmt.Errorf("%w: %d", ErrJobNotFound, jobID)
		}
		s.log.ErrorContext(ctx, "Failed to find job", logger.ErrorField(err), logger.IntField("job_id", int(jobID)))
		return fmt.Errorf("failed to find job: %w", err)
	}

	return s.executeJob(ctx, jobData, nil)
}
