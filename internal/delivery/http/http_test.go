package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"golang-backtest/config"
	"golang-backtest/internal/backtest"
	"golang-backtest/internal/dto"
	"golang-backtest/internal/job"
	"golang-backtest/internal/model"
	"golang-backtest/internal/service"
	"golang-backtest/internal/strategy"
	"golang-backtest/pkg/logger"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBacktestService struct {
	mu         sync.Mutex
	runErr     error
	lastReq    dto.BacktestRequest
	history    []dto.BacktestRunSummary
	historyErr error
	historyReq dto.BacktestHistoryRequest
	run        *dto.BacktestResponse
	runByIDErr error
}

func (f *fakeBacktestService) RunBacktest(ctx context.Context, req dto.BacktestRequest) (*dto.BacktestResponse, error) {
	f.mu.Lock()
	f.lastReq = req
	f.mu.Unlock()
	if f.runErr != nil {
		return nil, f.runErr
	}
	if req.Ticker == "FAIL" {
		return nil, fmt.Errorf("%w: FAIL", backtest.ErrNoData)
	}
	return &dto.BacktestResponse{
		RunID:  7,
		Report: backtest.Report{Ticker: req.Ticker, Strategy: req.Strategy, TotalTrades: 3},
	}, nil
}

func (f *fakeBacktestService) ListStrategies(ctx context.Context) []strategy.Info {
	return strategy.List()
}

func (f *fakeBacktestService) GetHistory(ctx context.Context, req dto.BacktestHistoryRequest) ([]dto.BacktestRunSummary, error) {
	f.historyReq = req
	return f.history, f.historyErr
}

func (f *fakeBacktestService) GetRun(ctx context.Context, id uint) (*dto.BacktestResponse, error) {
	if f.runByIDErr != nil {
		return nil, f.runByIDErr
	}
	return f.run, nil
}

type fakeScheduler struct {
	service.SchedulerService
	executeErr error
	runJobErr  error
	ranJobID   uint
	jobs       []model.Job
	lastParam  model.GetJobParam
}

func (f *fakeScheduler) Execute(ctx context.Context) error {
	return f.executeErr
}

func (f *fakeScheduler) RunJobTask(ctx context.Context, jobID uint) error {
	f.ranJobID = jobID
	return f.runJobErr
}

func (f *fakeScheduler) GetJobSchedule(ctx context.Context, param model.GetJobParam) ([]model.Job, error) {
	f.lastParam = param
	return f.jobs, nil
}

func newTestHandler(backtestSvc *fakeBacktestService, scheduler *fakeScheduler) *echo.Echo {
	cfg := config.Default()
	log := logger.NewNop()
	e := echo.New()
	svc := &service.Service{
		BacktestService:  backtestSvc,
		SchedulerService: scheduler,
		BatchBacktest:    job.NewBatchBacktestStrategy(cfg, log, backtestSvc, nil),
	}
	NewHttpAPIHandler(context.Background(), e, log, goValidator.New(), svc).SetupRoutes()
	return e
}

func doRequest(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRunBacktest(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		runErr   error
		wantCode int
	}{
		{
			name:     "success",
			body:     `{"ticker":"aapl","strategy":"sma_crossover","start_date":"2023-01-01","end_date":"2023-12-31"}`,
			wantCode: http.StatusOK,
		},
		{
			name:     "missing ticker",
			body:     `{"strategy":"sma_crossover","start_date":"2023-01-01","end_date":"2023-12-31"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "bad date format",
			body:     `{"ticker":"AAPL","strategy":"sma_crossover","start_date":"01/01/2023","end_date":"2023-12-31"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "malformed json",
			body:     `{"ticker":`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "commission out of range",
			body:     `{"ticker":"AAPL","strategy":"sma_crossover","start_date":"2023-01-01","end_date":"2023-12-31","commission":1.5}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown strategy",
			body:     `{"ticker":"AAPL","strategy":"magic","start_date":"2023-01-01","end_date":"2023-12-31"}`,
			runErr:   fmt.Errorf("%w: \"magic\"", strategy.ErrUnknownStrategy),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "invalid params",
			body:     `{"ticker":"AAPL","strategy":"sma_crossover","start_date":"2023-01-01","end_date":"2023-12-31","params":{"short_period":50,"long_period":20}}`,
			runErr:   fmt.Errorf("%w: short_period must be below long_period", strategy.ErrInvalidParams),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "no data",
			body:     `{"ticker":"FAIL","strategy":"sma_crossover","start_date":"2023-01-01","end_date":"2023-12-31"}`,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "loader failure",
			body:     `{"ticker":"AAPL","strategy":"sma_crossover","start_date":"2023-01-01","end_date":"2023-12-31"}`,
			runErr:   errors.New("connection reset"),
			wantCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeBacktestService{runErr: tt.runErr}
			e := newTestHandler(svc, &fakeScheduler{})

			rec := doRequest(e, http.MethodPost, "/api/v1/backtest", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)

			var resp dto.BaseResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}
}

func TestRunBacktest_SetsSource(t *testing.T) {
	svc := &fakeBacktestService{}
	e := newTestHandler(svc, &fakeScheduler{})

	rec := doRequest(e, http.MethodPost, "/api/v1/backtest",
		`{"ticker":"AAPL","strategy":"rsi_mean_reversion","start_date":"2023-01-01","end_date":"2023-12-31","params":{"period":10}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, model.SourceAPI, svc.lastReq.Source)
	assert.Equal(t, map[string]float64{"period": 10}, svc.lastReq.Params)
}

func TestListStrategies(t *testing.T) {
	e := newTestHandler(&fakeBacktestService{}, &fakeScheduler{})

	rec := doRequest(e, http.MethodGet, "/api/v1/backtest/strategies", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []strategy.Info `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 3)
	assert.Equal(t, strategy.KindSMACrossover, resp.Data[0].Name)
}

func TestGetHistory(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		historyErr error
		wantCode   int
	}{
		{name: "filters", query: "?ticker=AAPL&limit=5", wantCode: http.StatusOK},
		{name: "limit too large", query: "?limit=500", wantCode: http.StatusBadRequest},
		{name: "unavailable", query: "", historyErr: service.ErrHistoryUnavailable, wantCode: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeBacktestService{
				history:    []dto.BacktestRunSummary{{ID: 1, Ticker: "AAPL"}},
				historyErr: tt.historyErr,
			}
			e := newTestHandler(svc, &fakeScheduler{})

			rec := doRequest(e, http.MethodGet, "/api/v1/backtest/history"+tt.query, "")
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, "AAPL", svc.historyReq.Ticker)
				assert.Equal(t, 5, svc.historyReq.Limit)
			}
		})
	}
}

func TestGetRun(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		err      error
		wantCode int
	}{
		{name: "found", path: "/api/v1/backtest/history/3", wantCode: http.StatusOK},
		{name: "not a number", path: "/api/v1/backtest/history/abc", wantCode: http.StatusBadRequest},
		{name: "missing", path: "/api/v1/backtest/history/9", err: fmt.Errorf("%w: 9", service.ErrRunNotFound), wantCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeBacktestService{
				run:        &dto.BacktestResponse{RunID: 3, Report: backtest.Report{Ticker: "AAPL"}},
				runByIDErr: tt.err,
			}
			e := newTestHandler(svc, &fakeScheduler{})

			rec := doRequest(e, http.MethodGet, tt.path, "")
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestJobs(t *testing.T) {
	t.Run("run due jobs", func(t *testing.T) {
		e := newTestHandler(&fakeBacktestService{}, &fakeScheduler{})
		rec := doRequest(e, http.MethodPost, "/api/v1/jobs/run", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("run due jobs failure", func(t *testing.T) {
		e := newTestHandler(&fakeBacktestService{}, &fakeScheduler{executeErr: errors.New("db down")})
		rec := doRequest(e, http.MethodPost, "/api/v1/jobs/run", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("run single job", func(t *testing.T) {
		scheduler := &fakeScheduler{}
		e := newTestHandler(&fakeBacktestService{}, scheduler)
		rec := doRequest(e, http.MethodPost, "/api/v1/jobs/4/run", "")
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, uint(4), scheduler.ranJobID)
	})

	t.Run("run missing job", func(t *testing.T) {
		scheduler := &fakeScheduler{runJobErr: fmt.Errorf("%w: 4", service.ErrJobNotFound)}
		e := newTestHandler(&fakeBacktestService{}, scheduler)
		rec := doRequest(e, http.MethodPost, "/api/v1/jobs/4/run", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("list active jobs", func(t *testing.T) {
		scheduler := &fakeScheduler{jobs: []model.Job{{ID: 1, Name: "nightly"}}}
		e := newTestHandler(&fakeBacktestService{}, scheduler)
		rec := doRequest(e, http.MethodGet, "/api/v1/jobs?active=true", "")
		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, scheduler.lastParam.IsActive)
		assert.True(t, *scheduler.lastParam.IsActive)
	})
}

func TestBatchBacktest(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		wantCode      int
		wantSucceeded int
		wantFailed    int
	}{
		{
			name:          "all succeed",
			body:          `{"tickers":["AAPL","MSFT"],"strategies":["sma_crossover"],"start_date":"2023-01-01","end_date":"2023-12-31"}`,
			wantCode:      http.StatusOK,
			wantSucceeded: 2,
		},
		{
			name:          "partial",
			body:          `{"tickers":["AAPL","FAIL"],"strategies":["sma_crossover"],"start_date":"2023-01-01","end_date":"2023-12-31"}`,
			wantCode:      http.StatusMultiStatus,
			wantSucceeded: 1,
			wantFailed:    1,
		},
		{
			name:     "empty tickers",
			body:     `{"tickers":[],"strategies":["sma_crossover"]}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "half a date range",
			body:     `{"tickers":["AAPL"],"strategies":["sma_crossover"],"start_date":"2023-01-01"}`,
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestHandler(&fakeBacktestService{}, &fakeScheduler{})

			rec := doRequest(e, http.MethodPost, "/api/v1/jobs/batch-backtest", tt.body)
			require.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode >= http.StatusBadRequest {
				return
			}

			var resp struct {
				Data dto.BatchBacktestResult `json:"data"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantSucceeded, resp.Data.Succeeded)
			assert.Equal(t, tt.wantFailed, resp.Data.Failed)
		})
	}
}
