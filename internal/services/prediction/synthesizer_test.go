package prediction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpulse/internal/domain/market"
	"marketpulse/internal/domain/mention"
	"marketpulse/internal/services/indicators"
	"marketpulse/pkg/errors"
)

type stubPrices struct {
	quote    *market.Quote
	quoteErr error
	history  []market.PricePoint
	histErr  error
}

func (s *stubPrices) Quote(context.Context, string) (*market.Quote, error) {
	return s.quote, s.quoteErr
}

func (s *stubPrices) History(context.Context, string, int) ([]market.PricePoint, error) {
	return s.history, s.histErr
}

type stubSentiment struct {
	agg *mention.Aggregate
	err error
}

func (s *stubSentiment) Aggregate(context.Context, string, int) (*mention.Aggregate, error) {
	return s.agg, s.err
}

type captureRecorder struct {
	symbol  string
	result  *Result
	price   *float64
	horizon int
	calls   int
}

func (r *captureRecorder) Record(_ context.Context, symbol string, result *Result, price *float64, horizon int) error {
	r.calls++
	r.symbol = symbol
	r.result = result
	r.price = price
	r.horizon = horizon
	return nil
}

func flatAggregate(avg float64, mentions int) *mention.Aggregate {
	return &mention.Aggregate{
		AvgSentiment:  avg,
		TotalMentions: mentions,
		Trend:         mention.TrendNeutral,
		DataAvailable: mentions > 0,
	}
}

func risingHistory(n int) []market.PricePoint {
	points := make([]market.PricePoint, n)
	base := time.Now().AddDate(0, 0, -n)
	for i := range points {
		close := 100 + float64(i)*1.5
		points[i] = market.PricePoint{
			Timestamp: base.AddDate(0, 0, i),
			Open:      close - 0.5,
			High:      close + 1,
			Low:       close - 1,
			Close:     close,
			Volume:    1000,
		}
	}
	return points
}

func TestPredictInsufficientData(t *testing.T) {
	syn := NewSynthesizer(
		&stubPrices{quoteErr: errors.ErrUpstreamUnavailable, histErr: errors.ErrUpstreamUnavailable},
		&stubSentiment{agg: flatAggregate(0, 0)},
		nil,
		DefaultSynthesizerConfig(),
	)

	result, err := syn.Predict(context.Background(), "TEST.NS")
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, errors.ErrInsufficientData))
	assert.Contains(t, err.Error(), "insufficient data")
}

func TestPredictBullishSetup(t *testing.T) {
	recorder := &captureRecorder{}
	history := risingHistory(60)
	current := history[len(history)-1].Close

	syn := NewSynthesizer(
		&stubPrices{
			quote:   &market.Quote{Symbol: "TEST.NS", CurrentPrice: current, PreviousClose: current - 1.5},
			history: history,
		},
		&stubSentiment{agg: flatAggregate(0.45, 12)},
		recorder,
		DefaultSynthesizerConfig(),
	)

	result, err := syn.Predict(context.Background(), "TEST.NS")
	require.NoError(t, err)

	assert.Contains(t, string(result.Signal), "BUY")
	assert.GreaterOrEqual(t, result.Confidence, 55)
	assert.LessOrEqual(t, result.Confidence, 95)
	assert.False(t, result.Provenance.SyntheticHistory)
	assert.NotEmpty(t, result.Rationale)
	assert.NotEmpty(t, result.Recommendation)

	require.NotNil(t, result.PriceTargets.Target2)
	assert.Greater(t, result.PriceTargets.Target1, result.PriceTargets.StopLoss)
	assert.Greater(t, *result.PriceTargets.Target2, result.PriceTargets.Target1)

	require.Equal(t, 1, recorder.calls)
	assert.Equal(t, "TEST.NS", recorder.symbol)
	require.NotNil(t, recorder.price)
	assert.Equal(t, current, *recorder.price)
	assert.Equal(t, 24, recorder.horizon)
}

func TestPredictQuoteFromHistoryFallback(t *testing.T) {
	history := risingHistory(40)

	syn := NewSynthesizer(
		&stubPrices{quoteErr: errors.ErrUpstreamUnavailable, history: history},
		&stubSentiment{agg: flatAggregate(0, 5)},
		nil,
		DefaultSynthesizerConfig(),
	)

	result, err := syn.Predict(context.Background(), "TEST.NS")
	require.NoError(t, err)

	assert.True(t, result.Provenance.QuoteFromHistory)
	assert.False(t, result.Provenance.SyntheticHistory)
	assert.Equal(t, round2(history[len(history)-1].Close), result.CurrentPrice)
}

func TestPredictSyntheticHistoryFallback(t *testing.T) {
	syn := NewSynthesizer(
		&stubPrices{quote: &market.Quote{Symbol: "TEST.NS", CurrentPrice: 250, ChangePercent: 1.2}},
		&stubSentiment{agg: flatAggregate(0, 3)},
		nil,
		DefaultSynthesizerConfig(),
	)

	result, err := syn.Predict(context.Background(), "TEST.NS")
	require.NoError(t, err)
	assert.True(t, result.Provenance.SyntheticHistory)
}

func TestMapSignalBuckets(t *testing.T) {
	assert.Equal(t, SignalStrongBuy, mapSignal(3))
	assert.Equal(t, SignalBuy, mapSignal(1.5))
	assert.Equal(t, SignalBuy, mapSignal(0.5))
	assert.Equal(t, SignalHold, mapSignal(0.4))
	assert.Equal(t, SignalHold, mapSignal(-0.4))
	assert.Equal(t, SignalSell, mapSignal(-0.5))
	assert.Equal(t, SignalSell, mapSignal(-1.5))
	assert.Equal(t, SignalStrongSell, mapSignal(-3))
}

func TestScoreSignalSentimentContributions(t *testing.T) {
	neutral := indicators.Set{RSI: 50, Trend: indicators.TrendNeutral}

	score, _ := scoreSignal(neutral, flatAggregate(0.35, 10))
	assert.InDelta(t, 1.5, score, 1e-9)

	score, _ = scoreSignal(neutral, flatAggregate(0.2, 10))
	assert.InDelta(t, 0.5, score, 1e-9)

	score, _ = scoreSignal(neutral, flatAggregate(-0.35, 10))
	assert.InDelta(t, -1.5, score, 1e-9)

	score, reasons := scoreSignal(indicators.Set{RSI: 25, Trend: indicators.TrendNeutral}, flatAggregate(0, 10))
	assert.InDelta(t, 2, score, 1e-9)
	assert.Contains(t, reasons, "RSI oversold")
}

func TestConfidenceAndRiskTiers(t *testing.T) {
	calm := indicators.Set{RSI: 50, Volatility: 1}
	conf, risk := confidenceAndRisk(calm, flatAggregate(0, 0), 0)
	assert.Equal(t, 55, conf)
	assert.Equal(t, RiskLow, risk)

	wild := indicators.Set{RSI: 80, Volatility: 12}
	conf, risk = confidenceAndRisk(wild, flatAggregate(0.9, 0), 6)
	assert.Equal(t, RiskHigh, risk)
	assert.LessOrEqual(t, conf, 95)

	middling := indicators.Set{RSI: 65, Volatility: 4}
	_, risk = confidenceAndRisk(middling, flatAggregate(0, 0), 1)
	assert.Equal(t, RiskMedium, risk)
}

func TestPriceTargetsHoldHasNoSecondTarget(t *testing.T) {
	set := indicators.Set{Support: 90, Resistance: 110}
	targets := priceTargets(100, set, SignalHold)

	assert.Nil(t, targets.Target2)
	assert.InDelta(t, 106, targets.Target1, 1e-9)
	assert.InDelta(t, 96, targets.StopLoss, 1e-9)
}

func TestPriceTargetsFlooredAtZero(t *testing.T) {
	set := indicators.Set{Support: 1, Resistance: 50}
	targets := priceTargets(3, set, SignalSell)

	assert.Zero(t, targets.Target1)
	require.NotNil(t, targets.Target2)
	assert.Zero(t, *targets.Target2)
}

func TestSyntheticHistoryShape(t *testing.T) {
	quote := &market.Quote{Symbol: "TEST.NS", CurrentPrice: 500, ChangePercent: 2.5, Volume: 9000}

	series := SyntheticHistory(quote, 30)
	require.Len(t, series, 30)

	for i, p := range series {
		assert.GreaterOrEqual(t, p.Close, 1.0)
		assert.GreaterOrEqual(t, p.High, p.Low)
		assert.Equal(t, int64(9000), p.Volume)
		if i > 0 {
			assert.True(t, p.Timestamp.After(series[i-1].Timestamp))
		}
	}

	// deterministic: same quote yields the same closes
	again := SyntheticHistory(quote, 30)
	for i := range series {
		assert.Equal(t, series[i].Close, again[i].Close)
	}
}

func TestSyntheticHistoryNoPrice(t *testing.T) {
	assert.Nil(t, SyntheticHistory(&market.Quote{}, 30))
}

func TestQuoteFromHistory(t *testing.T) {
	history := []market.PricePoint{
		{Close: 0},
		{Close: 100, High: 101, Low: 99, Volume: 500, Timestamp: time.Now().Add(-24 * time.Hour)},
		{Close: 102, High: 103, Low: 101, Volume: 600, Timestamp: time.Now()},
	}

	quote := QuoteFromHistory("TEST.NS", history)
	require.NotNil(t, quote)
	assert.Equal(t, 102.0, quote.CurrentPrice)
	assert.Equal(t, 100.0, quote.PreviousClose)
	assert.InDelta(t, 2.0, quote.ChangePercent, 1e-9)

	assert.Nil(t, QuoteFromHistory("TEST.NS", nil))
}
