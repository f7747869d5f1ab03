package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"marketpulse/internal/domain/market"
	"marketpulse/internal/metrics"
	"marketpulse/pkg/errors"
	"marketpulse/pkg/logger"
)

const (
	defaultChartBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"
	defaultQuoteBaseURL = "https://query2.finance.yahoo.com/v7/finance/quote"

	// Yahoo rejects requests without a browser-looking agent
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// YahooProvider fetches live quotes and daily bars from Yahoo Finance.
// The chart endpoint is primary; the v7 quote endpoint is the fallback
// when the chart call fails. Calls are throttled by a shared rate limiter.
type YahooProvider struct {
	chartBaseURL string
	quoteBaseURL string
	httpClient   *http.Client
	limiter      *rate.Limiter
	log          *logger.Logger

	mu     sync.Mutex
	health market.ProviderHealth
}

var _ market.Provider = (*YahooProvider)(nil)

// ProviderOption configures the provider
type ProviderOption func(*YahooProvider)

// WithHTTPClient overrides the default client (used in tests)
func WithHTTPClient(client *http.Client) ProviderOption {
	return func(p *YahooProvider) { p.httpClient = client }
}

// WithBaseURLs overrides the upstream endpoints (used in tests)
func WithBaseURLs(chartBase, quoteBase string) ProviderOption {
	return func(p *YahooProvider) {
		p.chartBaseURL = chartBase
		p.quoteBaseURL = quoteBase
	}
}

// NewYahooProvider creates the provider with the given request timeout and
// rate limit (requests per second with the given burst)
func NewYahooProvider(timeout time.Duration, rps float64, burst int, opts ...ProviderOption) *YahooProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if rps <= 0 {
		rps = 3
	}
	if burst <= 0 {
		burst = int(rps)
	}

	p := &YahooProvider{
		chartBaseURL: defaultChartBaseURL,
		quoteBaseURL: defaultQuoteBaseURL,
		httpClient:   &http.Client{Timeout: timeout},
		limiter:      rate.NewLimiter(rate.Limit(rps), burst),
		log:          logger.Get().With("component", "yahoo"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Health returns a copy of the provider's request counters
func (p *YahooProvider) Health() market.ProviderHealth {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.health
}

// chart endpoint response shape (fields we read)
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string  `json:"currency"`
				MarketState        string  `json:"marketState"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
				PreviousClose      float64 `json:"previousClose"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
	} `json:"chart"`
}

type quoteResponse struct {
	QuoteResponse struct {
		Results []struct {
			Symbol                     string  `json:"symbol"`
			RegularMarketPrice         float64 `json:"regularMarketPrice"`
			RegularMarketChange        float64 `json:"regularMarketChange"`
			RegularMarketChangePct     float64 `json:"regularMarketChangePercent"`
			RegularMarketPreviousClose float64 `json:"regularMarketPreviousClose"`
			RegularMarketVolume        int64   `json:"regularMarketVolume"`
			RegularMarketDayHigh       float64 `json:"regularMarketDayHigh"`
			RegularMarketDayLow        float64 `json:"regularMarketDayLow"`
		} `json:"result"`
	} `json:"quoteResponse"`
}

// FetchQuote loads the live quote for a symbol, trying the chart endpoint
// first and the v7 quote endpoint as fallback
func (p *YahooProvider) FetchQuote(ctx context.Context, symbol string) (*market.Quote, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(errors.ErrRateLimitExceeded, err.Error())
	}

	quote, err := p.fetchQuoteFromChart(ctx, symbol)
	if err == nil {
		p.recordOutcome(true, true)
		return quote, nil
	}
	p.recordOutcome(true, false)
	p.log.Warnw("chart quote failed, trying fallback", "symbol", symbol, "error", err)

	quote, err = p.fetchQuoteFallback(ctx, symbol)
	if err != nil {
		p.recordOutcome(false, false)
		return nil, errors.Wrapf(errors.ErrUpstreamUnavailable, "quote %s: %v", symbol, err)
	}
	p.recordOutcome(false, true)
	return quote, nil
}

func (p *YahooProvider) fetchQuoteFromChart(ctx context.Context, symbol string) (*market.Quote, error) {
	endpoint := fmt.Sprintf("%s/%s?interval=1d&range=5d", p.chartBaseURL, url.PathEscape(symbol))

	var parsed chartResponse
	if err := p.getJSON(ctx, endpoint, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Chart.Result) == 0 {
		return nil, errors.Newf("no chart result for %s", symbol)
	}

	result := parsed.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, errors.Newf("no quote block for %s", symbol)
	}
	bars := result.Indicators.Quote[0]
	if len(bars.Close) == 0 {
		return nil, errors.Newf("empty close series for %s", symbol)
	}

	latest := len(bars.Close) - 1
	currentPrice := deref(bars.Close[latest])
	if currentPrice <= 0 {
		return nil, errors.Newf("no usable close for %s", symbol)
	}

	previousClose := result.Meta.ChartPreviousClose
	if previousClose == 0 {
		previousClose = result.Meta.PreviousClose
	}

	change := currentPrice - previousClose
	changePercent := 0.0
	if previousClose != 0 {
		changePercent = change / previousClose * 100
	}

	currency := result.Meta.Currency
	if currency == "" {
		currency = "INR"
	}
	marketState := result.Meta.MarketState
	if marketState == "" {
		marketState = "REGULAR"
	}

	return &market.Quote{
		Symbol:        symbol,
		CurrentPrice:  currentPrice,
		PreviousClose: previousClose,
		Change:        change,
		ChangePercent: changePercent,
		Volume:        derefIntAt(bars.Volume, latest),
		DayHigh:       derefAt(bars.High, latest),
		DayLow:        derefAt(bars.Low, latest),
		Currency:      currency,
		MarketState:   marketState,
		LastUpdated:   time.Now().UTC(),
	}, nil
}

func (p *YahooProvider) fetchQuoteFallback(ctx context.Context, symbol string) (*market.Quote, error) {
	endpoint := fmt.Sprintf("%s?symbols=%s", p.quoteBaseURL, url.QueryEscape(symbol))

	var parsed quoteResponse
	if err := p.getJSON(ctx, endpoint, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.QuoteResponse.Results) == 0 {
		return nil, errors.Newf("no quote result for %s", symbol)
	}

	q := parsed.QuoteResponse.Results[0]
	if q.RegularMarketPrice <= 0 {
		return nil, errors.Newf("no usable price for %s", symbol)
	}

	return &market.Quote{
		Symbol:        symbol,
		CurrentPrice:  q.RegularMarketPrice,
		PreviousClose: q.RegularMarketPreviousClose,
		Change:        q.RegularMarketChange,
		ChangePercent: q.RegularMarketChangePct,
		Volume:        q.RegularMarketVolume,
		DayHigh:       q.RegularMarketDayHigh,
		DayLow:        q.RegularMarketDayLow,
		Currency:      "INR",
		MarketState:   "REGULAR",
		LastUpdated:   time.Now().UTC(),
	}, nil
}

// FetchHistory loads daily (or hourly for short windows) bars for the
// trailing number of days. Bars without a positive close are dropped.
func (p *YahooProvider) FetchHistory(ctx context.Context, symbol string, days int) ([]market.PricePoint, error) {
	if days <= 0 {
		days = 30
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(errors.ErrRateLimitExceeded, err.Error())
	}

	interval := "1d"
	if days <= 7 {
		interval = "1h"
	}
	endpoint := fmt.Sprintf("%s/%s?interval=%s&range=%dd", p.chartBaseURL, url.PathEscape(symbol), interval, days)

	var parsed chartResponse
	if err := p.getJSON(ctx, endpoint, &parsed); err != nil {
		p.recordOutcome(true, false)
		return nil, errors.Wrapf(errors.ErrUpstreamUnavailable, "history %s: %v", symbol, err)
	}
	p.recordOutcome(true, true)

	if len(parsed.Chart.Result) == 0 {
		return nil, errors.Newf("no chart result for %s", symbol)
	}
	result := parsed.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, errors.Newf("no quote block for %s", symbol)
	}
	bars := result.Indicators.Quote[0]

	points := make([]market.PricePoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(bars.Close) {
			break
		}
		close := deref(bars.Close[i])
		if close <= 0 {
			continue
		}
		points = append(points, market.PricePoint{
			Timestamp: time.Unix(ts, 0).UTC(),
			Open:      derefAt(bars.Open, i),
			High:      derefAt(bars.High, i),
			Low:       derefAt(bars.Low, i),
			Close:     close,
			Volume:    derefIntAt(bars.Volume, i),
		})
	}

	return points, nil
}

func (p *YahooProvider) getJSON(ctx context.Context, endpoint string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Newf("unexpected status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(dest)
}

func (p *YahooProvider) recordOutcome(primary, success bool) {
	status := "error"
	if success {
		status = "success"
	}
	path := "fallback"
	if primary {
		path = "primary"
	}
	metrics.ProviderRequests.WithLabelValues("yahoo_"+path, status).Inc()

	p.mu.Lock()
	defer p.mu.Unlock()
	counters := &p.health.Primary
	if !primary {
		counters = &p.health.Fallback
	}
	if success {
		counters.Success++
	} else {
		counters.Fail++
	}
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func derefInt(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

func derefAt(series []*float64, i int) float64 {
	if i >= len(series) {
		return 0
	}
	return deref(series[i])
}

func derefIntAt(series []*int64, i int) int64 {
	if i >= len(series) {
		return 0
	}
	return derefInt(series[i])
}
