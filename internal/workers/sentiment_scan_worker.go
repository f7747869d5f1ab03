package workers

import (
	"context"
	"time"

	"marketpulse/internal/domain/mention"
)

// SentimentAnalyzer runs the full collect-score-aggregate pass for one symbol
type SentimentAnalyzer interface {
	AnalyzeSymbol(ctx context.Context, symbol, companyName string, windowHours int) (*mention.Aggregate, error)
}

// SentimentScanWorker walks the tracked symbols sequentially, collecting
// and scoring fresh mentions for each. Symbols are processed one at a
// time with a small delay so a scan never bursts the upstream sources.
type SentimentScanWorker struct {
	*BaseWorker
	analyzer    SentimentAnalyzer
	symbols     []string
	windowHours int
	symbolDelay time.Duration
}

// NewSentimentScanWorker creates the periodic sentiment scan worker
func NewSentimentScanWorker(
	analyzer SentimentAnalyzer,
	symbols []string,
	windowHours int,
	symbolDelay time.Duration,
	interval time.Duration,
	enabled bool,
) *SentimentScanWorker {
	return &SentimentScanWorker{
		BaseWorker:  NewBaseWorker("sentiment_scan", interval, enabled),
		analyzer:    analyzer,
		symbols:     symbols,
		windowHours: windowHours,
		symbolDelay: symbolDelay,
	}
}

// Run analyzes every tracked symbol once
func (w *SentimentScanWorker) Run(ctx context.Context) error {
	w.Log().Debugw("Sentiment scan: starting iteration", "symbols", len(w.symbols))

	analyzed := 0
	for i, symbol := range w.symbols {
		select {
		case <-ctx.Done():
			w.Log().Infow("Sentiment scan interrupted by shutdown",
				"analyzed", analyzed,
				"remaining", len(w.symbols)-analyzed,
			)
			return ctx.Err()
		default:
		}

		agg, err := w.analyzer.AnalyzeSymbol(ctx, symbol, "", w.windowHours)
		if err != nil {
			w.Log().Errorw("Symbol analysis failed", "symbol", symbol, "error", err)
		} else {
			analyzed++
			if agg != nil && agg.DataAvailable {
				w.Log().Debugw("Symbol analyzed",
					"symbol", symbol,
					"avg_sentiment", agg.AvgSentiment,
					"mentions", agg.TotalMentions,
				)
			}
		}

		if i < len(w.symbols)-1 && w.symbolDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.symbolDelay):
			}
		}
	}

	w.Log().Infow("Sentiment scan complete", "analyzed", analyzed, "symbols", len(w.symbols))
	return nil
}
