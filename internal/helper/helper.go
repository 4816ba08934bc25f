package helper

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang-backtest/internal/dto"
	"golang-backtest/internal/strategy"
	"golang-backtest/pkg/utils"
)

const DefaultLookbackDays = 365

var ErrInvalidArgs = errors.New("invalid arguments")

// ParseParamArgs turns "key=value" pairs into a strategy param map. Keys are
// lower-cased; a repeated key keeps the last value.
func ParseParamArgs(args []string) (map[string]float64, error) {
	params := make(map[string]float64, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: %q is not key=value", ErrInvalidArgs, arg)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be a number", ErrInvalidArgs, key)
		}
		params[key] = v
	}
	return params, nil
}

// ParseBacktestArgs reads "TICKER [STRATEGY] [START] [END] [key=value...]".
// Arguments after the ticker may come in any order: dates fill start then
// end, key=value pairs become params and the remaining word names the
// strategy. Missing dates default to the DefaultLookbackDays window ending
// at now.
func ParseBacktestArgs(args []string, now time.Time) (dto.BacktestRequest, error) {
	var req dto.BacktestRequest
	if len(args) == 0 {
		return req, fmt.Errorf("%w: ticker is required", ErrInvalidArgs)
	}
	req.Ticker = utils.NormalizeTicker(args[0])

	var dates, paramArgs []string
	for _, arg := range args[1:] {
		switch {
		case strings.Contains(arg, "="):
			paramArgs = append(paramArgs, arg)
		case isDate(arg):
			dates = append(dates, arg)
		case req.Strategy == "":
			req.Strategy = strings.ToLower(arg)
		default:
			return req, fmt.Errorf("%w: unexpected %q", ErrInvalidArgs, arg)
		}
	}
	if req.Strategy == "" {
		req.Strategy = string(strategy.KindSMACrossover)
	}

	end := utils.TruncateToDay(now)
	switch len(dates) {
	case 0:
		req.StartDate = end.AddDate(0, 0, -DefaultLookbackDays).Format(utils.DateLayout)
		req.EndDate = end.Format(utils.DateLayout)
	case 1:
		req.StartDate = dates[0]
		req.EndDate = end.Format(utils.DateLayout)
	case 2:
		req.StartDate, req.EndDate = dates[0], dates[1]
	default:
		return req, fmt.Errorf("%w: at most two dates are allowed", ErrInvalidArgs)
	}

	if len(paramArgs) > 0 {
		params, err := ParseParamArgs(paramArgs)
		if err != nil {
			return req, err
		}
		req.Params = params
	}
	return req, nil
}

func isDate(s string) bool {
	_, err := time.Parse(utils.DateLayout, s)
	return err == nil
}
