package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"marketpulse/pkg/errors"
)

type Config struct {
	App           AppConfig
	Postgres      PostgresConfig
	Redis         RedisConfig
	SMTP          SMTPConfig
	MarketData    MarketDataConfig
	Scoring       ScoringConfig
	ErrorTracking ErrorTrackingConfig
	Alerts        AlertConfig
	Workers       WorkerConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"marketpulse"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	Database string `envconfig:"POSTGRES_DB" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" required:"true"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type SMTPConfig struct {
	Host     string `envconfig:"SMTP_HOST"`
	Port     int    `envconfig:"SMTP_PORT" default:"465"`
	User     string `envconfig:"SMTP_USER"`
	Password string `envconfig:"SMTP_PASS"`
	From     string `envconfig:"EMAIL_FROM"`
}

// FromAddress returns the sender address, falling back to the SMTP user
func (c SMTPConfig) FromAddress() string {
	if c.From != "" {
		return c.From
	}
	return c.User
}

type MarketDataConfig struct {
	// Symbols tracked by the periodic pipeline
	Symbols []string `envconfig:"TRACKED_SYMBOLS" default:"RELIANCE.NS,TCS.NS,HDFCBANK.NS,INFY.NS,ICICIBANK.NS"`

	QuoteCacheTTL  time.Duration `envconfig:"QUOTE_CACHE_TTL" default:"10s"`
	RequestTimeout time.Duration `envconfig:"MARKET_DATA_REQUEST_TIMEOUT" default:"10s"`

	// Provider rate limiting (requests per second and burst)
	RateLimit float64 `envconfig:"MARKET_DATA_RATE_LIMIT" default:"3"`
	RateBurst int     `envconfig:"MARKET_DATA_RATE_BURST" default:"3"`
}

type ScoringConfig struct {
	// FinBERT remote classifier (optional; ensemble degrades without it)
	FinBERTAPIKey  string        `envconfig:"HUGGINGFACE_API_KEY"`
	FinBERTURL     string        `envconfig:"FINBERT_URL" default:"https://api-inference.huggingface.co/models/ProsusAI/finbert"`
	FinBERTTimeout time.Duration `envconfig:"FINBERT_TIMEOUT" default:"7s"`

	PositiveThreshold float64 `envconfig:"SENTIMENT_POSITIVE_THRESHOLD" default:"0.15"`
	NegativeThreshold float64 `envconfig:"SENTIMENT_NEGATIVE_THRESHOLD" default:"-0.15"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	Provider    string `envconfig:"ERROR_TRACKING_PROVIDER" default:"sentry"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

type AlertConfig struct {
	// FallbackEmail receives email alerts whose rule owner has no
	// registered address (user management is external)
	FallbackEmail string `envconfig:"ALERT_FALLBACK_EMAIL"`

	WebhookTimeout time.Duration `envconfig:"ALERT_WEBHOOK_TIMEOUT" default:"5s"`
}

// WorkerConfig contains intervals for all background workers
// Defaults balance responsiveness against upstream provider rate limits
type WorkerConfig struct {
	// Sentiment scan (coarse interval, sequential per symbol)
	SentimentScanInterval time.Duration `envconfig:"WORKER_SENTIMENT_SCAN_INTERVAL" default:"15m"`
	SentimentWindowHours  int           `envconfig:"SENTIMENT_WINDOW_HOURS" default:"72"`
	InterSymbolDelay      time.Duration `envconfig:"WORKER_INTER_SYMBOL_DELAY" default:"1s"`

	// Price refresh (short interval, feeds cache and price-based alerts)
	PriceRefreshInterval time.Duration `envconfig:"WORKER_PRICE_REFRESH_INTERVAL" default:"7s"`
	PriceRefreshBatch    int           `envconfig:"WORKER_PRICE_REFRESH_BATCH" default:"5"`

	// Prediction audit reconciliation
	AuditReconcileInterval time.Duration `envconfig:"WORKER_AUDIT_RECONCILE_INTERVAL" default:"1h"`

	// Retention cleanup of old scored mentions
	RetentionInterval time.Duration `envconfig:"WORKER_RETENTION_INTERVAL" default:"168h"`
	RetentionDays     int           `envconfig:"SENTIMENT_RETENTION_DAYS" default:"30"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}
