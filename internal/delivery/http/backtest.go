package http

import (
	"net/http"
	"strconv"

	"golang-backtest/internal/dto"
	"golang-backtest/internal/model"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupBacktest(base *echo.Group) {
	backtestGroup := base.Group("/v1/backtest")
	backtestGroup.POST("", h.runBacktest)
	backtestGroup.GET("/strategies", h.listStrategies)
	backtestGroup.GET("/history", h.getHistory)
	backtestGroup.GET("/history/:id", h.getRun)
}

func (h *HttpAPIHandler) runBacktest(c echo.Context) error {
	ctx := c.Request().Context()

	req := new(dto.BacktestRequest)
	if err := h.bind(c, req); err != nil {
		return h.errorResponse(c, err)
	}
	req.Source = model.SourceAPI

	result, err := h.service.BacktestService.RunBacktest(ctx, *req)
	if err != nil {
		return h.errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", result))
}

func (h *HttpAPIHandler) listStrategies(c echo.Context) error {
	strategies := h.service.BacktestService.ListStrategies(c.Request().Context())
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", strategies))
}

func (h *HttpAPIHandler) getHistory(c echo.Context) error {
	req := new(dto.BacktestHistoryRequest)
	if err := h.bind(c, req); err != nil {
		return h.errorResponse(c, err)
	}

	runs, err := h.service.BacktestService.GetHistory(c.Request().Context(), *req)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", runs))
}

func (h *HttpAPIHandler) getRun(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid run id"))
	}

	run, err := h.service.BacktestService.GetRun(c.Request().Context(), uint(id))
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", run))
}
