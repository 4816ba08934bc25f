package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"golang-backtest/internal/model"
	"golang-backtest/internal/service"
	"golang-backtest/pkg/logger"
	"golang-backtest/pkg/utils"

	"gopkg.in/telebot.v3"
)

const jobHistoryLimit = 5

func (t *TelegramBotHandler) handleScheduler(ctx context.Context, c telebot.Context) error {
	jobs, err := t.service.SchedulerService.GetJobSchedule(ctx, model.GetJobParam{
		IsActive: utils.ToPointer(true),
	})
	if err != nil {
		t.log.ErrorContext(ctx, "failed to get jobs", logger.ErrorField(err))
		return t.telegram.SendWithoutMsg(ctx, c, commonErrorInternal)
	}

	if len(jobs) == 0 {
		return t.telegram.SendWithoutMsg(ctx, c, "There are no active jobs.")
	}

	msg := "📋 <b>Active jobs</b>\n\n<i>👉 Tap a job to see its details or run it now</i>\n"

	menu := &telebot.ReplyMarkup{}
	rows := make([]telebot.Row, 0, len(jobs)+1)
	for _, job := range jobs {
		rows = append(rows, menu.Row(menu.Data(job.Name, btnDetailJob.Unique, strconv.FormatUint(uint64(job.ID), 10))))
	}
	rows = append(rows, menu.Row(menu.Data(btnDeleteMessage.Text, btnDeleteMessage.Unique)))
	menu.Inline(rows...)

	if existing := c.Message(); existing != nil && existing.Sender != nil && existing.Sender.ID == t.bot.Me.ID {
		_, err = t.telegram.Edit(ctx, c, existing, msg, menu, telebot.ModeHTML)
		return err
	}
	_, err = t.telegram.Send(ctx, c, msg, menu, telebot.ModeHTML)
	return err
}

func (t *TelegramBotHandler) handleBtnDetailJob(ctx context.Context, c telebot.Context) error {
	jobID, err := strconv.ParseUint(c.Data(), 10, 64)
	if err != nil {
		t.log.ErrorContext(ctx, "failed to parse job id", logger.ErrorField(err))
		return t.telegram.SendWithoutMsg(ctx, c, commonErrorInternal)
	}

	jobs, err := t.service.SchedulerService.GetJobSchedule(ctx, model.GetJobParam{
		IDs:             []uint{uint(jobID)},
		WithTaskHistory: &model.GetTaskExecutionHistoryParam{Limit: utils.ToPointer(jobHistoryLimit)},
	})
	if err != nil {
		t.log.ErrorContext(ctx, "failed to get job by id", logger.ErrorField(err))
		return t.telegram.SendWithoutMsg(ctx, c, commonErrorInternal)
	}
	if len(jobs) == 0 {
		return t.telegram.SendWithoutMsg(ctx, c, "Job not found.")
	}

	menu := &telebot.ReplyMarkup{}
	menu.Inline(menu.Row(
		menu.Data(btnActionRunJob.Text, btnActionRunJob.Unique, strconv.FormatUint(jobID, 10)),
		menu.Data(btnActionBackToJobList.Text, btnActionBackToJobList.Unique),
	))

	_, err = t.telegram.Edit(ctx, c, c.Message(), formatJobDetail(jobs[0]), menu, telebot.ModeHTML)
	return err
}

func (t *TelegramBotHandler) handleBtnActionRunJob(ctx context.Context, c telebot.Context) error {
	jobID, err := strconv.ParseUint(c.Data(), 10, 64)
	if err != nil {
		t.log.ErrorContext(ctx, "failed to parse job id", logger.ErrorField(err))
		return t.telegram.SendWithoutMsg(ctx, c, commonErrorInternal)
	}

	if err := t.service.SchedulerService.RunJobTask(ctx, uint(jobID)); err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return t.telegram.SendWithoutMsg(ctx, c, "Job not found.")
		}
		t.log.ErrorContext(ctx, "failed to run job task", logger.ErrorField(err))
		return t.telegram.SendWithoutMsg(ctx, c, commonErrorInternal)
	}
	if err := c.Respond(&telebot.CallbackResponse{Text: "Job started"}); err != nil {
		t.log.WarnContext(ctx, "Failed to answer callback", logger.ErrorField(err))
	}
	return t.handleScheduler(ctx, c)
}

func formatJobDetail(job model.Job) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<b>%s</b> <code>%s</code>\n", html.EscapeString(job.Name), html.EscapeString(job.Type)))
	if job.Description != "" {
		sb.WriteString(fmt.Sprintf("🔍 %s\n", html.EscapeString(job.Description)))
	}

	sb.WriteString("\n📅 Schedule:\n")
	if len(job.Schedules) == 0 {
		sb.WriteString(" • manual only\n")
	}
	for _, schedule := range job.Schedules {
		sb.WriteString(fmt.Sprintf(" • <code>%s</code>\n", html.EscapeString(schedule.CronExpression)))
		if schedule.LastExecution.Valid {
			sb.WriteString(fmt.Sprintf("   last: %s\n", utils.PrettyDate(schedule.LastExecution.Time.In(utils.Location()))))
		}
		if schedule.NextExecution.Valid {
			sb.WriteString(fmt.Sprintf("   next: %s\n", utils.PrettyDate(schedule.NextExecution.Time.In(utils.Location()))))
		}
	}

	if len(job.Histories) == 0 {
		return sb.String()
	}

	sb.WriteString("\n📜 Recent runs:\n")
	for idx, history := range job.Histories {
		started := history.StartedAt.In(utils.Location()).Format("01/02 15:04")
		status := strings.ToUpper(string(history.Status))
		if !history.CompletedAt.Valid {
			sb.WriteString(fmt.Sprintf("%d. %s %s - %s\n", idx+1, statusIcon(history.Status), started, status))
			continue
		}
		duration := history.CompletedAt.Time.Sub(history.StartedAt)
		sb.WriteString(fmt.Sprintf("%d. %s %s - %d | %s (%.1fs)\n",
			idx+1, statusIcon(history.Status), started, history.ExitCode.Int32, status, duration.Seconds()))
	}
	return sb.String()
}

func statusIcon(status model.TaskExecutionStatus) string {
	switch status {
	case model.StatusRunning:
		return "🟡"
	case model.StatusFailed:
		return "🔴"
	case model.StatusTimeout:
		return "🟠"
	default:
		return "🟢"
	}
}
