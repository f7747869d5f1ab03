package marketdata

import (
	"context"
	"fmt"
	"time"

	"marketpulse/internal/domain/market"
	"marketpulse/pkg/errors"
	"marketpulse/pkg/logger"
)

const (
	defaultQuoteTTL   = 10 * time.Second
	defaultHistoryTTL = 15 * time.Minute
)

// Cache is the slice of the redis adapter the service needs. A failed Get
// is treated as a miss; the upstream provider is the source of truth.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
}

// HealthReporter is implemented by providers that track request counters
type HealthReporter interface {
	Health() market.ProviderHealth
}

// Service serves quotes and price history through a short-lived cache so
// the price-refresh loop and the synthesizer share one upstream budget
type Service struct {
	provider   market.Provider
	cache      Cache
	quoteTTL   time.Duration
	historyTTL time.Duration
	log        *logger.Logger
}

// Option configures the service
type Option func(*Service)

// WithQuoteTTL overrides the quote cache TTL
func WithQuoteTTL(ttl time.Duration) Option {
	return func(s *Service) { s.quoteTTL = ttl }
}

// WithHistoryTTL overrides the history cache TTL
func WithHistoryTTL(ttl time.Duration) Option {
	return func(s *Service) { s.historyTTL = ttl }
}

// NewService creates the cached price service. cache may be nil, in which
// case every call goes upstream.
func NewService(provider market.Provider, cache Cache, opts ...Option) *Service {
	s := &Service{
		provider:   provider,
		cache:      cache,
		quoteTTL:   defaultQuoteTTL,
		historyTTL: defaultHistoryTTL,
		log:        logger.Get().With("component", "marketdata"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Quote returns the live quote for a symbol, served from cache within the
// quote TTL
func (s *Service) Quote(ctx context.Context, symbol string) (*market.Quote, error) {
	key := quoteKey(symbol)

	if s.cache != nil {
		var cached market.Quote
		if err := s.cache.Get(ctx, key, &cached); err == nil && cached.CurrentPrice > 0 {
			return &cached, nil
		}
	}

	quote, err := s.provider.FetchQuote(ctx, symbol)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch quote %s", symbol)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, quote, s.quoteTTL); err != nil {
			s.log.Debugw("quote cache write failed", "symbol", symbol, "error", err)
		}
	}
	return quote, nil
}

// History returns the trailing daily bars for a symbol, cached per
// (symbol, days)
func (s *Service) History(ctx context.Context, symbol string, days int) ([]market.PricePoint, error) {
	key := historyKey(symbol, days)

	if s.cache != nil {
		var cached []market.PricePoint
		if err := s.cache.Get(ctx, key, &cached); err == nil && len(cached) > 0 {
			return cached, nil
		}
	}

	points, err := s.provider.FetchHistory(ctx, symbol, days)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch history %s", symbol)
	}

	if s.cache != nil && len(points) > 0 {
		if err := s.cache.Set(ctx, key, points, s.historyTTL); err != nil {
			s.log.Debugw("history cache write failed", "symbol", symbol, "error", err)
		}
	}
	return points, nil
}

// ProviderHealth returns the upstream request counters when the provider
// tracks them
func (s *Service) ProviderHealth() market.ProviderHealth {
	if reporter, ok := s.provider.(HealthReporter); ok {
		return reporter.Health()
	}
	return market.ProviderHealth{}
}

func quoteKey(symbol string) string {
	return "marketpulse:quote:" + symbol
}

func historyKey(symbol string, days int) string {
	return fmt.Sprintf("marketpulse:history:%s:%d", symbol, days)
}
