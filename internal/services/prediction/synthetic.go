package prediction

import (
	"math"
	"time"

	"marketpulse/internal/domain/market"
)

// QuoteFromHistory rebuilds a quote snapshot from the two most recent
// usable history bars when the live feed has nothing
func QuoteFromHistory(symbol string, history []market.PricePoint) *market.Quote {
	cleaned := make([]market.PricePoint, 0, len(history))
	for _, p := range history {
		if p.Close > 0 {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) == 0 {
		return nil
	}

	latest := cleaned[len(cleaned)-1]
	previous := latest
	if len(cleaned) > 1 {
		previous = cleaned[len(cleaned)-2]
	}

	change := latest.Close - previous.Close
	changePercent := 0.0
	if previous.Close > 0 {
		changePercent = change / previous.Close * 100
	}

	dayHigh := latest.High
	if dayHigh == 0 {
		dayHigh = latest.Close
	}
	dayLow := latest.Low
	if dayLow == 0 {
		dayLow = latest.Close
	}

	return &market.Quote{
		Symbol:        symbol,
		CurrentPrice:  latest.Close,
		PreviousClose: previous.Close,
		Change:        round2(change),
		ChangePercent: round2(changePercent),
		Volume:        latest.Volume,
		DayHigh:       dayHigh,
		DayLow:        dayLow,
		LastUpdated:   latest.Timestamp,
	}
}

// SyntheticHistory fabricates an OHLCV series from a single quote so the
// indicator engine always has input during history outages. Deterministic
// drift from the known change percent plus bounded sinusoidal noise; no
// randomness, so repeated calls agree. Callers must treat the output as
// synthetic provenance, never as market data.
func SyntheticHistory(quote *market.Quote, days int) []market.PricePoint {
	basePrice := quote.CurrentPrice
	if basePrice <= 0 {
		basePrice = quote.PreviousClose
	}
	if basePrice <= 0 {
		return nil
	}
	if days <= 0 {
		days = 30
	}

	driftPercent := quote.ChangePercent / 100
	perDayDrift := driftPercent / math.Max(float64(days-1), 1)

	volatility := math.Abs(quote.ChangePercent) / 200
	if volatility < 0.005 {
		volatility = 0.005
	}

	divisor := 1 + driftPercent
	if divisor == 0 {
		divisor = 1
	}
	base := basePrice / divisor

	now := time.Now()
	series := make([]market.PricePoint, 0, days)
	for i := days - 1; i >= 0; i-- {
		step := float64(days - 1 - i)
		trendComponent := base * (1 + perDayDrift*step)
		noise := math.Sin(step/3) * volatility * basePrice
		close := math.Max(1, trendComponent+noise)
		high := close * (1 + volatility)
		low := close * (1 - volatility)

		series = append(series, market.PricePoint{
			Timestamp: now.AddDate(0, 0, -i),
			Open:      round2((high + low) / 2),
			High:      round2(high),
			Low:       round2(low),
			Close:     round2(close),
			Volume:    quote.Volume,
		})
	}

	return series
}
