package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang-backtest/internal/backtest"
	"golang-backtest/internal/dto"
	"golang-backtest/internal/job"
	"golang-backtest/internal/service"
	"golang-backtest/internal/strategy"
	"golang-backtest/pkg/logger"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type HttpAPIHandler struct {
	ctx       context.Context
	echo      *echo.Echo
	log       *logger.Logger
	validator *goValidator.Validate
	service   *service.Service
}

func NewHttpAPIHandler(ctx context.Context, echo *echo.Echo, log *logger.Logger, validator *goValidator.Validate, service *service.Service) *HttpAPIHandler {
	return &HttpAPIHandler{
		ctx:       ctx,
		echo:      echo,
		log:       log,
		validator: validator,
		service:   service,
	}
}

func (h *HttpAPIHandler) SetupRoutes() {
	base := h.echo.Group("/api")
	h.SetupJobs(base)
	h.SetupBacktest(base)
}

// bind decodes the request into req and runs struct validation.
func (h *HttpAPIHandler) bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return fmt.Errorf("%w: invalid request body", service.ErrInvalidRequest)
	}
	return h.validator.Struct(req)
}

// errorResponse maps service and engine errors onto HTTP responses.
func (h *HttpAPIHandler) errorResponse(c echo.Context, err error) error {
	var validationErrs goValidator.ValidationErrors
	switch {
	case errors.As(err, &validationErrs),
		errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, job.ErrInvalidBatchRequest),
		errors.Is(err, strategy.ErrUnknownStrategy),
		errors.Is(err, strategy.ErrInvalidParams),
		errors.Is(err, backtest.ErrInvalidConfig):
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	case errors.Is(err, backtest.ErrNoData),
		errors.Is(err, service.ErrRunNotFound),
		errors.Is(err, service.ErrJobNotFound):
		return c.JSON(http.StatusNotFound, dto.NewNotFoundResponse(err.Error()))
	case errors.Is(err, service.ErrHistoryUnavailable):
		return c.JSON(http.StatusServiceUnavailable, dto.NewBaseResponse(http.StatusServiceUnavailable, err.Error(), nil))
	default:
		h.log.ErrorContext(c.Request().Context(), "Request failed",
			logger.ErrorField(err),
			logger.StringField("path", c.Path()),
		)
		return c.JSON(http.StatusInternalServerError, dto.NewInternalErrorResponse("internal server error"))
	}
}
