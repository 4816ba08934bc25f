package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"golang-backtest/config"
	"golang-backtest/internal/backtest"
	"golang-backtest/internal/dto"
	"golang-backtest/pkg/httpclient"
	"golang-backtest/pkg/logger"
	"golang-backtest/pkg/utils"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

type YahooFinanceRepository interface {
	backtest.BarLoader
}

// yahooFinanceRepository loads daily bars from the Yahoo Finance chart API.
type yahooFinanceRepository struct {
	httpClient     httpclient.HTTPClient
	cfg            config.YahooFinance
	logger         *logger.Logger
	requestLimiter *rate.Limiter
	newBackOff     func() backoff.BackOff
}

func NewYahooFinanceRepository(cfg *config.Config, log *logger.Logger) YahooFinanceRepository {
	return newYahooFinanceRepository(
		httpclient.New(log, cfg.YahooFinance.BaseURL, cfg.YahooFinance.Timeout, ""),
		cfg.YahooFinance,
		log,
		func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	)
}

func newYahooFinanceRepository(client httpclient.HTTPClient, cfg config.YahooFinance, log *logger.Logger, newBackOff func() backoff.BackOff) *yahooFinanceRepository {
	perMinute := cfg.MaxRequestPerMinute
	if perMinute <= 0 {
		perMinute = 60
	}
	secondsPerRequest := time.Minute / time.Duration(perMinute)

	return &yahooFinanceRepository{
		httpClient:     client,
		cfg:            cfg,
		logger:         log,
		requestLimiter: rate.NewLimiter(rate.Every(secondsPerRequest), 1),
		newBackOff:     newBackOff,
	}
}

// LoadBars returns ascending, date-unique bars within [start, end]. Rows with a
// missing or non-positive price are dropped. An unknown ticker yields an empty
// slice, not an error.
func (r *yahooFinanceRepository) LoadBars(ctx context.Context, ticker string, start, end time.Time, interval string) ([]backtest.Bar, error) {
	ticker = utils.NormalizeTicker(ticker)
	if ticker == "" {
		return nil, errors.New("ticker is required")
	}
	if interval == "" {
		interval = "1d"
	}
	start = utils.TruncateToDay(start.UTC())
	end = utils.TruncateToDay(end.UTC())

	queryParams := map[string]string{
		"period1":        strconv.FormatInt(start.Unix(), 10),
		"period2":        strconv.FormatInt(end.AddDate(0, 0, 1).Unix(), 10),
		"interval":       interval,
		"includePrePost": "false",
		"events":         "div,split",
	}

	headers := map[string]string{
		"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0.0.0 Safari/537.36",
		"Accept":          "application/json, text/plain, */*",
		"Accept-Language": "en-US,en;q=0.9",
		"Referer":         "https://finance.yahoo.com/",
	}

	var (
		chart    dto.YahooChartResponse
		notFound bool
		attempt  int
	)

	operation := func() error {
		attempt++
		if err := r.requestLimiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		chart = dto.YahooChartResponse{}
		resp, err := r.httpClient.Get(ctx, "/"+url.PathEscape(ticker), queryParams, headers, &chart)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			r.logger.WarnContext(ctx, "Yahoo Finance request failed, retrying",
				logger.StringField("ticker", ticker),
				logger.IntField("attempt", attempt),
				logger.ErrorField(err),
			)
			return fmt.Errorf("failed to fetch data from yahoo finance: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			notFound = true
			return nil
		case resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests:
			r.logger.WarnContext(ctx, "Yahoo Finance API returned retryable status",
				logger.StringField("ticker", ticker),
				logger.IntField("status_code", resp.StatusCode),
				logger.IntField("attempt", attempt),
			)
			return fmt.Errorf("yahoo finance api returned status: %d", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			r.logger.ErrorContext(ctx, "Yahoo Finance API returned Non-OK status",
				logger.IntField("status_code", resp.StatusCode),
				logger.StringField("body", string(resp.Body)),
			)
			return backoff.Permanent(fmt.Errorf("yahoo finance api returned status: %d", resp.StatusCode))
		}
		return nil
	}

	maxRetries := r.cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(r.newBackOff(), uint64(maxRetries)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}

	if notFound {
		r.logger.WarnContext(ctx, "Ticker not found on Yahoo Finance", logger.StringField("ticker", ticker))
		return []backtest.Bar{}, nil
	}
	if chart.Chart.Error != nil {
		if chart.Chart.Error.Code == "Not Found" {
			return []backtest.Bar{}, nil
		}
		return nil, fmt.Errorf("yahoo finance api error: %s: %s", chart.Chart.Error.Code, chart.Chart.Error.Description)
	}

	bars := parseChartBars(&chart, start, end)
	r.logger.DebugContext(ctx, "Loaded bars from Yahoo Finance",
		logger.StringField("ticker", ticker),
		logger.StringField("interval", interval),
		logger.IntField("bar_count", len(bars)),
	)
	return bars, nil
}

// parseChartBars converts the chart payload into bars keyed by exchange-local
// calendar date. The last row of a duplicated date wins.
func parseChartBars(chart *dto.YahooChartResponse, start, end time.Time) []backtest.Bar {
	if len(chart.Chart.Result) == 0 {
		return []backtest.Bar{}
	}
	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return []backtest.Bar{}
	}
	quote := result.Indicators.Quote[0]
	offset := result.Meta.GMTOffset

	byDate := make(map[time.Time]backtest.Bar, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		open, ok1 := valueAt(quote.Open, i)
		high, ok2 := valueAt(quote.High, i)
		low, ok3 := valueAt(quote.Low, i)
		closePrice, ok4 := valueAt(quote.Close, i)
		if !ok1 || !ok2 || !ok3 || !ok4 || closePrice <= 0 {
			continue
		}

		var volume int64
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			volume = *quote.Volume[i]
		}

		date := utils.TruncateToDay(time.Unix(ts+offset, 0).UTC())
		if date.Before(start) || date.After(end) {
			continue
		}
		byDate[date] = backtest.Bar{
			Date:   date,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: volume,
		}
	}

	bars := make([]backtest.Bar, 0, len(byDate))
	for _, bar := range byDate {
		bars = append(bars, bar)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars
}

func valueAt(values []*float64, i int) (float64, bool) {
	if i >= len(values) || values[i] == nil {
		return 0, false
	}
	return *values[i], true
}
