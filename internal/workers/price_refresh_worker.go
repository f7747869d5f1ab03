package workers

import (
	"context"
	"sync/atomic"
	"time"

	"marketpulse/internal/domain/market"
)

// QuoteSource serves live quotes, typically through a short-lived cache
type QuoteSource interface {
	Quote(ctx context.Context, symbol string) (*market.Quote, error)
}

// PriceRefreshWorker keeps the quote cache warm for tracked symbols and
// feeds price-based alert rules. An in-flight guard drops the iteration
// when the previous one is still running, so a slow upstream never
// stacks requests.
type PriceRefreshWorker struct {
	*BaseWorker
	prices    QuoteSource
	evaluate  func(ctx context.Context, symbol string, metricContext map[string]float64) error
	symbols   []string
	batchSize int
	inFlight  atomic.Bool
}

// NewPriceRefreshWorker creates the quote refresh worker. evaluate may be
// nil when no alert evaluation is wired.
func NewPriceRefreshWorker(
	prices QuoteSource,
	evaluate func(ctx context.Context, symbol string, metricContext map[string]float64) error,
	symbols []string,
	batchSize int,
	interval time.Duration,
	enabled bool,
) *PriceRefreshWorker {
	if batchSize <= 0 {
		batchSize = 5
	}
	return &PriceRefreshWorker{
		BaseWorker: NewBaseWorker("price_refresh", interval, enabled),
		prices:     prices,
		evaluate:   evaluate,
		symbols:    symbols,
		batchSize:  batchSize,
	}
}

// Run refreshes quotes for all tracked symbols in batches
func (w *PriceRefreshWorker) Run(ctx context.Context) error {
	if !w.inFlight.CompareAndSwap(false, true) {
		w.Log().Debug("Price refresh skipped, previous iteration still running")
		return nil
	}
	defer w.inFlight.Store(false)

	refreshed := 0
	for start := 0; start < len(w.symbols); start += w.batchSize {
		end := start + w.batchSize
		if end > len(w.symbols) {
			end = len(w.symbols)
		}

		for _, symbol := range w.symbols[start:end] {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			quote, err := w.prices.Quote(ctx, symbol)
			if err != nil {
				w.Log().Warnw("Quote refresh failed", "symbol", symbol, "error", err)
				continue
			}
			refreshed++

			if w.evaluate != nil {
				metricContext := map[string]float64{
					"price_change": quote.ChangePercent,
					"price":        quote.CurrentPrice,
					"volume":       float64(quote.Volume),
				}
				if err := w.evaluate(ctx, symbol, metricContext); err != nil {
					w.Log().Warnw("Price alert evaluation failed", "symbol", symbol, "error", err)
				}
			}
		}
	}

	w.Log().Debugw("Price refresh complete", "refreshed", refreshed, "symbols", len(w.symbols))
	return nil
}
