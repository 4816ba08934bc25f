package http

import (
	"net/http"
	"strconv"

	"golang-backtest/internal/dto"
	"golang-backtest/internal/job"
	"golang-backtest/internal/model"
	"golang-backtest/pkg/utils"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupJobs(base *echo.Group) {
	v1 := base.Group("/v1/jobs")
	{
		v1.GET("", h.listJobs)
		v1.POST("/run", h.RunJobs)
		v1.POST("/:id/run", h.runJob)
		v1.POST("/batch-backtest", h.batchBacktest)
	}
}

// RunJobs dispatches every schedule that is due now.
func (h *HttpAPIHandler) RunJobs(c echo.Context) error {
	response := dto.NewBaseResponse(http.StatusOK, "Start running jobs", nil)
	if err := h.service.SchedulerService.Execute(c.Request().Context()); err != nil {
		response.Code = http.StatusInternalServerError
		response.Message = err.Error()
	}
	return c.JSON(response.Code, response)
}

func (h *HttpAPIHandler) listJobs(c echo.Context) error {
	param := model.GetJobParam{
		WithTaskHistory: &model.GetTaskExecutionHistoryParam{Limit: utils.ToPointer(5)},
	}
	if active := c.QueryParam("active"); active != "" {
		isActive, err := strconv.ParseBool(active)
		if err != nil {
			return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid active flag"))
		}
		param.IsActive = &isActive
	}

	jobs, err := h.service.SchedulerService.GetJobSchedule(c.Request().Context(), param)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", jobs))
}

// runJob starts one job in the background; its outcome lands in the task
// execution history.
func (h *HttpAPIHandler) runJob(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid job id"))
	}

	if err := h.service.SchedulerService.RunJobTask(c.Request().Context(), uint(id)); err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusAccepted, dto.NewBaseResponse(http.StatusAccepted, "Job started", nil))
}

func (h *HttpAPIHandler) batchBacktest(c echo.Context) error {
	req := new(dto.BatchBacktestRequest)
	if err := h.bind(c, req); err != nil {
		return h.errorResponse(c, err)
	}

	result, err := h.service.BatchBacktest.Run(c.Request().Context(), *req, model.SourceAPI)
	if err != nil {
		return h.errorResponse(c, err)
	}

	code := http.StatusOK
	if job.ExitCodeFor(result) != job.JOB_EXIT_CODE_SUCCESS && result.Succeeded > 0 {
		code = http.StatusMultiStatus
	}
	return c.JSON(code, dto.NewBaseResponse(code, "Batch backtest finished", result))
}
