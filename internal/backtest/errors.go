package backtest

import "errors"

var (
	// ErrNoData is returned when the bar provider has nothing for the requested ticker and range.
	ErrNoData = errors.New("no data for ticker")

	// ErrInvalidConfig is returned for engine or simulation parameters outside their allowed range.
	ErrInvalidConfig = errors.New("invalid backtest config")
)
