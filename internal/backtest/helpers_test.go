package backtest

import "time"

var testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func makeBars(closes ...float64) []Bar {
	bars := make([]Bar, len(closes))
	for i, c := range closes {
		bars[i] = Bar{
			Date:   testStart.AddDate(0, 0, i),
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: 1000,
		}
	}
	return bars
}

func signalAt(bars []Bar, i int, kind SignalKind) Signal {
	return Signal{Date: bars[i].Date, Kind: kind, Price: bars[i].Close}
}

func frictionless(capital float64) SimulationConfig {
	return SimulationConfig{Ticker: "TEST", InitialCapital: capital, PositionSizePercent: 100}
}
