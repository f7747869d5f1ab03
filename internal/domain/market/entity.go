package market

import (
	"context"
	"time"
)

// PricePoint is a single OHLCV bar, oldest-first when in a series
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// Quote is a live price snapshot for a symbol
type Quote struct {
	Symbol        string    `json:"symbol"`
	CurrentPrice  float64   `json:"currentPrice"`
	PreviousClose float64   `json:"previousClose"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	Volume        int64     `json:"volume"`
	DayHigh       float64   `json:"dayHigh"`
	DayLow        float64   `json:"dayLow"`
	Currency      string    `json:"currency"`
	MarketState   string    `json:"marketState"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

// Provider supplies live quotes and historical bars for a symbol
type Provider interface {
	FetchQuote(ctx context.Context, symbol string) (*Quote, error)
	FetchHistory(ctx context.Context, symbol string, days int) ([]PricePoint, error)
}

// ProviderHealth tracks success/failure counts per provider path
type ProviderHealth struct {
	Primary  HealthCounters `json:"primary"`
	Fallback HealthCounters `json:"fallback"`
}

// HealthCounters holds request outcome counts
type HealthCounters struct {
	Success int64 `json:"success"`
	Fail    int64 `json:"fail"`
}
