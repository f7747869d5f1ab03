package prediction

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"marketpulse/internal/domain/market"
	"marketpulse/internal/domain/mention"
	"marketpulse/internal/services/indicators"
	"marketpulse/pkg/errors"
	"marketpulse/pkg/logger"
)

// Signal is the discrete trading signal for one symbol
type Signal string

const (
	SignalStrongBuy  Signal = "STRONG BUY"
	SignalBuy        Signal = "BUY"
	SignalHold       Signal = "HOLD"
	SignalSell       Signal = "SELL"
	SignalStrongSell Signal = "STRONG SELL"
)

// Risk tiers a prediction by volatility and RSI extremes
type Risk string

const (
	RiskLow    Risk = "LOW"
	RiskMedium Risk = "MEDIUM"
	RiskHigh   Risk = "HIGH"
)

// PriceTargets brackets the expected move. Target2 is absent for HOLD.
type PriceTargets struct {
	Target1  float64  `json:"target1"`
	Target2  *float64 `json:"target2,omitempty"`
	StopLoss float64  `json:"stopLoss"`
}

// TechnicalSnapshot is the rounded indicator panel embedded in a result
type TechnicalSnapshot struct {
	RSI        float64          `json:"rsi"`
	MACD       indicators.MACD  `json:"macd"`
	MA20       float64          `json:"ma20"`
	MA50       float64          `json:"ma50"`
	MA200      float64          `json:"ma200"`
	Support    float64          `json:"support"`
	Resistance float64          `json:"resistance"`
	Trend      indicators.Trend `json:"trend"`
	Volatility float64          `json:"volatility"`
}

// SentimentSnapshot is the aggregate slice embedded in a result
type SentimentSnapshot struct {
	Score           float64 `json:"score"`
	TotalMentions   int     `json:"totalMentions"`
	PositivePercent int     `json:"positivePercent"`
	NegativePercent int     `json:"negativePercent"`
	Trend           string  `json:"trend"`
}

// Provenance flags degraded data sources used to keep the pipeline live
type Provenance struct {
	SyntheticHistory bool `json:"syntheticHistory"`
	QuoteFromHistory bool `json:"quoteFromHistory"`
}

// Result is one synthesized prediction. Immutable once produced.
type Result struct {
	Symbol         string            `json:"symbol"`
	Signal         Signal            `json:"signal"`
	Score          float64           `json:"score"`
	Confidence     int               `json:"confidence"`
	RiskLevel      Risk              `json:"riskLevel"`
	PriceTargets   PriceTargets      `json:"priceTargets"`
	Recommendation string            `json:"recommendation"`
	Rationale      []string          `json:"rationale"`
	Technical      TechnicalSnapshot `json:"technical"`
	Sentiment      SentimentSnapshot `json:"sentiment"`
	CurrentPrice   float64           `json:"currentPrice"`
	Provenance     Provenance        `json:"provenance"`
	Timestamp      time.Time         `json:"timestamp"`
}

// PriceSource supplies quotes and historical bars to the synthesizer
type PriceSource interface {
	Quote(ctx context.Context, symbol string) (*market.Quote, error)
	History(ctx context.Context, symbol string, days int) ([]market.PricePoint, error)
}

// SentimentSource supplies the rolling sentiment aggregate
type SentimentSource interface {
	Aggregate(ctx context.Context, symbol string, windowHours int) (*mention.Aggregate, error)
}

// Recorder captures every synthesized result for later reconciliation
type Recorder interface {
	Record(ctx context.Context, symbol string, result *Result, priceAtPrediction *float64, horizonHours int) error
}

// SynthesizerConfig bounds the synthesizer's data windows
type SynthesizerConfig struct {
	HistoryDays          int
	SentimentWindowHours int
	HorizonHours         int
}

// DefaultSynthesizerConfig returns the standard windows
func DefaultSynthesizerConfig() SynthesizerConfig {
	return SynthesizerConfig{HistoryDays: 30, SentimentWindowHours: 72, HorizonHours: 24}
}

// Synthesizer fuses technical indicators and the sentiment aggregate into
// a trading signal. It degrades through synthetic fallbacks before giving
// up: a missing quote is rebuilt from history, missing history is
// fabricated from the quote, and only when neither exists does Predict
// fail with an insufficient-data error.
type Synthesizer struct {
	prices    PriceSource
	sentiment SentimentSource
	recorder  Recorder
	cfg       SynthesizerConfig
	log       *logger.Logger
}

func NewSynthesizer(prices PriceSource, sentiment SentimentSource, recorder Recorder, cfg SynthesizerConfig) *Synthesizer {
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = 30
	}
	if cfg.SentimentWindowHours <= 0 {
		cfg.SentimentWindowHours = 72
	}
	if cfg.HorizonHours <= 0 {
		cfg.HorizonHours = 24
	}
	return &Synthesizer{
		prices:    prices,
		sentiment: sentiment,
		recorder:  recorder,
		cfg:       cfg,
		log:       logger.Get().With("component", "synthesizer"),
	}
}

// Predict synthesizes the trading signal for one symbol
func (s *Synthesizer) Predict(ctx context.Context, symbol string) (*Result, error) {
	quote, err := s.prices.Quote(ctx, symbol)
	if err != nil {
		s.log.Warnw("live quote unavailable", "symbol", symbol, "error", err)
		quote = nil
	}

	agg, err := s.sentiment.Aggregate(ctx, symbol, s.cfg.SentimentWindowHours)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInsufficientData, "sentiment aggregate unavailable")
	}

	history, err := s.prices.History(ctx, symbol, s.cfg.HistoryDays)
	if err != nil {
		s.log.Warnw("price history unavailable", "symbol", symbol, "error", err)
		history = nil
	}

	provenance := Provenance{}

	if (quote == nil || quote.CurrentPrice <= 0) && len(history) > 0 {
		quote = QuoteFromHistory(symbol, history)
		provenance.QuoteFromHistory = quote != nil
	}

	if len(history) == 0 && quote != nil && quote.CurrentPrice > 0 {
		history = SyntheticHistory(quote, s.cfg.HistoryDays)
		provenance.SyntheticHistory = len(history) > 0
	}

	if quote == nil || quote.CurrentPrice <= 0 || len(history) == 0 {
		return nil, errors.Wrapf(errors.ErrInsufficientData, "no usable price data for %s", symbol)
	}

	technical := indicators.Compute(history)
	score, scoreReasons := scoreSignal(technical, agg)
	signal := mapSignal(score)
	confidence, risk := confidenceAndRisk(technical, agg, score)
	targets := priceTargets(quote.CurrentPrice, technical, signal)

	result := &Result{
		Symbol:         symbol,
		Signal:         signal,
		Score:          score,
		Confidence:     confidence,
		RiskLevel:      risk,
		PriceTargets:   targets,
		Recommendation: recommendation(signal, agg, technical, quote, symbol),
		Rationale:      rationale(technical, quote, agg, scoreReasons),
		Technical: TechnicalSnapshot{
			RSI:        round2(technical.RSI),
			MACD:       indicators.MACD{Line: round2(technical.MACD.Line), Signal: round2(technical.MACD.Signal), Histogram: round2(technical.MACD.Histogram)},
			MA20:       round2(technical.MA20),
			MA50:       round2(technical.MA50),
			MA200:      round2(technical.MA200),
			Support:    round2(technical.Support),
			Resistance: round2(technical.Resistance),
			Trend:      technical.Trend,
			Volatility: round2(technical.Volatility),
		},
		Sentiment: SentimentSnapshot{
			Score:           agg.AvgSentiment,
			TotalMentions:   agg.TotalMentions,
			PositivePercent: agg.PositivePercentage,
			NegativePercent: agg.NegativePercentage,
			Trend:           strings.ToUpper(string(agg.Trend)),
		},
		CurrentPrice: round2(quote.CurrentPrice),
		Provenance:   provenance,
		Timestamp:    time.Now().UTC(),
	}

	if s.recorder != nil {
		price := quote.CurrentPrice
		if err := s.recorder.Record(ctx, symbol, result, &price, s.cfg.HorizonHours); err != nil {
			// audit bookkeeping never blocks the caller's signal
			s.log.Errorw("failed to record prediction audit", "symbol", symbol, "error", err)
		}
	}

	return result, nil
}

// scoreSignal accumulates the signed signal score from indicator and
// sentiment contributions
func scoreSignal(t indicators.Set, agg *mention.Aggregate) (float64, []string) {
	score := 0.0
	var reasons []string

	switch {
	case t.RSI < 30:
		score += 2
		reasons = append(reasons, "RSI oversold")
	case t.RSI > 70:
		score -= 2
		reasons = append(reasons, "RSI overbought")
	case t.RSI < 40:
		score += 1
	case t.RSI > 60:
		score -= 1
	}

	if t.MACD.Histogram > 0 && t.MACD.Line > t.MACD.Signal {
		score += 1.5
		reasons = append(reasons, "MACD bullish crossover")
	} else if t.MACD.Histogram < 0 && t.MACD.Line < t.MACD.Signal {
		score -= 1.5
		reasons = append(reasons, "MACD bearish crossover")
	}

	switch t.Trend {
	case indicators.TrendUp:
		score += 1
	case indicators.TrendDown:
		score -= 1
	}

	switch {
	case agg.AvgSentiment > 0.3:
		score += 1.5
		reasons = append(reasons, "Very bullish sentiment")
	case agg.AvgSentiment > 0.1:
		score += 0.5
		reasons = append(reasons, "Bullish sentiment")
	case agg.AvgSentiment < -0.3:
		score -= 1.5
		reasons = append(reasons, "Very bearish sentiment")
	case agg.AvgSentiment < -0.1:
		score -= 0.5
		reasons = append(reasons, "Bearish sentiment")
	}

	if t.Volatility > 5 {
		score -= 0.5
		reasons = append(reasons, "High volatility - risky")
	}

	return score, reasons
}

// mapSignal buckets a signed score into a discrete signal
func mapSignal(score float64) Signal {
	switch {
	case score >= 3:
		return SignalStrongBuy
	case score >= 0.5:
		return SignalBuy
	case score <= -3:
		return SignalStrongSell
	case score <= -0.5:
		return SignalSell
	default:
		return SignalHold
	}
}

// confidenceAndRisk derives the rounded confidence percentage and the
// risk tier
func confidenceAndRisk(t indicators.Set, agg *mention.Aggregate, score float64) (int, Risk) {
	confidence := 50 + math.Abs(score)*10
	confidence = math.Min(95, math.Max(55, confidence))

	sentimentStrength := math.Abs(agg.AvgSentiment) * 20
	confidence = math.Min(95, confidence+sentimentStrength*0.15)

	risk := RiskMedium
	if t.Volatility > 8 || t.RSI > 75 || t.RSI < 25 {
		risk = RiskHigh
	} else if t.Volatility < 2 && t.RSI >= 40 && t.RSI <= 60 {
		risk = RiskLow
	}

	return int(math.Round(confidence)), risk
}

// priceTargets brackets the expected move using the support/resistance
// range as a volatility proxy
func priceTargets(currentPrice float64, t indicators.Set, signal Signal) PriceTargets {
	spread := t.Resistance - t.Support

	switch {
	case strings.Contains(string(signal), "BUY"):
		t2 := floor0(round2(currentPrice + spread*1.2))
		return PriceTargets{
			Target1:  floor0(round2(currentPrice + spread*0.6)),
			Target2:  &t2,
			StopLoss: floor0(round2(currentPrice - spread*0.3)),
		}
	case strings.Contains(string(signal), "SELL"):
		t2 := floor0(round2(currentPrice - spread*1.2))
		return PriceTargets{
			Target1:  floor0(round2(currentPrice - spread*0.6)),
			Target2:  &t2,
			StopLoss: floor0(round2(currentPrice + spread*0.3)),
		}
	default:
		return PriceTargets{
			Target1:  floor0(round2(currentPrice + spread*0.3)),
			StopLoss: floor0(round2(currentPrice - spread*0.2)),
		}
	}
}

// recommendation builds the human-readable advisory text
func recommendation(signal Signal, agg *mention.Aggregate, t indicators.Set, quote *market.Quote, symbol string) string {
	var b strings.Builder

	switch {
	case strings.Contains(string(signal), "BUY"):
		fmt.Fprintf(&b, "Consider buying %s. ", symbol)
		if agg.AvgSentiment > 0.2 {
			b.WriteString("Market sentiment is positive with increasing mentions. ")
		}
		if t.Trend == indicators.TrendUp {
			fmt.Fprintf(&b, "Price is in an uptrend with support at %.2f. ", t.Support)
		}
		fmt.Fprintf(&b, "Target price: %.2f. ", quote.CurrentPrice*1.1)
		b.WriteString("Monitor for breaks above resistance levels.")
	case strings.Contains(string(signal), "SELL"):
		fmt.Fprintf(&b, "Consider selling or avoiding %s. ", symbol)
		if agg.AvgSentiment < -0.2 {
			b.WriteString("Negative sentiment detected in news. ")
		}
		if t.Trend == indicators.TrendDown {
			b.WriteString("Price is in a downtrend. ")
		}
		b.WriteString("Reduce exposure and set stop-loss. ")
		fmt.Fprintf(&b, "Watch for support at %.2f.", t.Support)
	default:
		fmt.Fprintf(&b, "Hold position in %s. ", symbol)
		b.WriteString("Sentiment is mixed. ")
		if t.Volatility > 5 {
			b.WriteString("Wait for volatility to decrease before making moves.")
		} else {
			b.WriteString("Monitor for clear break above or below key levels.")
		}
	}

	return b.String()
}

// rationale assembles the ordered reason trail: top technical reads, then
// the sentiment bias, then the scoring triggers
func rationale(t indicators.Set, quote *market.Quote, agg *mention.Aggregate, scoreReasons []string) []string {
	reasons := technicalReasons(t, quote.CurrentPrice)
	if len(reasons) > 3 {
		reasons = reasons[:3]
	}

	switch {
	case agg.AvgSentiment > 0.2:
		reasons = append(reasons, "Positive news sentiment supports bullish bias")
	case agg.AvgSentiment < -0.2:
		reasons = append(reasons, "Negative news sentiment supports bearish bias")
	default:
		reasons = append(reasons, "News sentiment is neutral")
	}

	return append(reasons, scoreReasons...)
}

func technicalReasons(t indicators.Set, currentPrice float64) []string {
	var reasons []string

	switch {
	case t.RSI < 30:
		reasons = append(reasons, "Stock is oversold (RSI < 30) - potential bounce")
	case t.RSI > 70:
		reasons = append(reasons, "Stock is overbought (RSI > 70) - potential pullback")
	case t.RSI < 50:
		reasons = append(reasons, "RSI below 50 - slight downward momentum")
	default:
		reasons = append(reasons, "RSI above 50 - slight upward momentum")
	}

	switch t.Trend {
	case indicators.TrendUp:
		reasons = append(reasons, "Price in established uptrend - bullish")
	case indicators.TrendDown:
		reasons = append(reasons, "Price in established downtrend - bearish")
	default:
		reasons = append(reasons, "No clear trend - consolidation phase")
	}

	if t.MACD.Histogram > 0 {
		reasons = append(reasons, "MACD histogram positive - bullish momentum")
	} else if t.MACD.Histogram < 0 {
		reasons = append(reasons, "MACD histogram negative - bearish momentum")
	}

	if t.Volatility > 8 {
		reasons = append(reasons, "High volatility detected - increased risk")
	} else if t.Volatility < 2 {
		reasons = append(reasons, "Low volatility - stable conditions")
	}

	if t.MA20 > 0 {
		dist := (currentPrice - t.MA20) / t.MA20 * 100
		if dist > 5 {
			reasons = append(reasons, fmt.Sprintf("Price %.1f%% above 20-day MA - potentially overextended", dist))
		} else if dist < -5 {
			reasons = append(reasons, fmt.Sprintf("Price %.1f%% below 20-day MA - potentially undervalued", -dist))
		}
	}

	return reasons
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func floor0(v float64) float64 {
	return math.Max(0, v)
}
