package bootstrap

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"marketpulse/internal/adapters/config"
	errnoop "marketpulse/internal/adapters/errors/noop"
	"marketpulse/internal/adapters/errors/sentry"
	"marketpulse/internal/adapters/mail"
	mdadapter "marketpulse/internal/adapters/marketdata"
	pgclient "marketpulse/internal/adapters/postgres"
	redisclient "marketpulse/internal/adapters/redis"
	"marketpulse/internal/domain/alert"
	"marketpulse/internal/domain/mention"
	"marketpulse/internal/domain/prediction"
	"marketpulse/internal/metrics"
	pgrepo "marketpulse/internal/repository/postgres"
	"marketpulse/internal/services/alerts"
	mdservice "marketpulse/internal/services/marketdata"
	predictionsvc "marketpulse/internal/services/prediction"
	"marketpulse/internal/services/scoring"
	sentimentsvc "marketpulse/internal/services/sentiment"
	"marketpulse/internal/workers"
	"marketpulse/pkg/errors"
	"marketpulse/pkg/logger"
)

// Container holds all application dependencies in initialization order
type Container struct {
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Infrastructure
	PG    *pgclient.Client
	Redis *redisclient.Client

	// Repositories
	Repos *Repositories

	// Services
	Services *Services

	// Background processing
	Scheduler *workers.Scheduler

	Context context.Context
	Cancel  context.CancelFunc
}

// Repositories groups all domain repositories
type Repositories struct {
	Mention    mention.Repository
	Alert      alert.Repository
	Prediction prediction.Repository
}

// Services groups the pipeline services
type Services struct {
	Ensemble    *scoring.Ensemble
	Provider    *mdadapter.YahooProvider
	Collector   *mdadapter.MentionCollector
	Prices      *mdservice.Service
	Alerts      *alerts.Evaluator
	Sentiment   *sentimentsvc.Service
	Auditor     *predictionsvc.Auditor
	Synthesizer *predictionsvc.Synthesizer
}

// NewContainer creates an empty dependency container
func NewContainer() *Container {
	ctx, cancel := context.WithCancel(context.Background())
	return &Container{
		Repos:    &Repositories{},
		Services: &Services{},
		Context:  ctx,
		Cancel:   cancel,
	}
}

// MustInit initializes all components in dependency order. Panics on any
// initialization error (fail-fast at startup).
func (c *Container) MustInit() {
	c.MustInitConfig()
	c.MustInitInfrastructure()
	c.MustInitRepositories()
	c.MustInitServices()
	c.MustInitWorkers()
	metrics.Register(prometheus.DefaultRegisterer)
}

// MustInitConfig loads configuration and initializes logger and tracking
func (c *Container) MustInitConfig() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	c.Config = cfg

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}

	c.Log = logger.Get()
	c.Log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	c.ErrorTracker = provideErrorTracker(cfg, c.Log)
	logger.SetErrorTracker(c.ErrorTracker)
}

// MustInitInfrastructure connects Postgres and Redis
func (c *Container) MustInitInfrastructure() {
	var err error

	c.PG, err = pgclient.NewClient(c.Config.Postgres)
	if err != nil {
		c.Log.Fatalf("failed to connect postgres: %v", err)
	}
	c.Log.Info("✓ PostgreSQL connected")

	c.Redis, err = redisclient.NewClient(c.Config.Redis)
	if err != nil {
		c.Log.Fatalf("failed to connect redis: %v", err)
	}
	c.Log.Info("✓ Redis connected")
}

// MustInitRepositories initializes all domain repositories
func (c *Container) MustInitRepositories() {
	c.Repos.Mention = pgrepo.NewMentionRepository(c.PG.DB())
	c.Repos.Alert = pgrepo.NewAlertRepository(c.PG.DB())
	c.Repos.Prediction = pgrepo.NewPredictionRepository(c.PG.DB())

	c.Log.Info("✓ Repositories initialized")
}

// MustInitServices wires the scoring, market data, sentiment, alert and
// prediction services
func (c *Container) MustInitServices() {
	cfg := c.Config

	// Scoring ensemble, with the remote classifier when a key is set
	ensembleOpts := []scoring.Option{
		scoring.WithThresholds(scoring.Thresholds{
			Positive: cfg.Scoring.PositiveThreshold,
			Negative: cfg.Scoring.NegativeThreshold,
		}),
	}
	if remote := scoring.NewFinBERTModel(cfg.Scoring.FinBERTURL, cfg.Scoring.FinBERTAPIKey, cfg.Scoring.FinBERTTimeout); remote != nil {
		ensembleOpts = append(ensembleOpts, scoring.WithRemoteModel(remote))
		c.Log.Info("Remote sentiment classifier enabled")
	}
	c.Services.Ensemble = scoring.NewEnsemble(ensembleOpts...)

	// Market data
	c.Services.Provider = mdadapter.NewYahooProvider(
		cfg.MarketData.RequestTimeout,
		cfg.MarketData.RateLimit,
		cfg.MarketData.RateBurst,
	)
	c.Services.Prices = mdservice.NewService(
		c.Services.Provider,
		c.Redis,
		mdservice.WithQuoteTTL(cfg.MarketData.QuoteCacheTTL),
	)
	c.Services.Collector = mdadapter.NewMentionCollector(cfg.MarketData.RequestTimeout)

	// Alerts
	c.Services.Alerts = alerts.NewEvaluator(c.Repos.Alert, provideDispatchers(cfg, c.Log))

	// Sentiment pipeline
	c.Services.Sentiment = sentimentsvc.NewService(
		c.Repos.Mention,
		c.Services.Collector,
		c.Services.Ensemble,
		sentimentsvc.WithAlertEvaluator(c.Services.Alerts),
		sentimentsvc.WithChangeNotifier(&logChangeNotifier{log: c.Log}),
	)

	// Predictions
	c.Services.Auditor = predictionsvc.NewAuditor(c.Repos.Prediction, c.Services.Prices)
	c.Services.Synthesizer = predictionsvc.NewSynthesizer(
		c.Services.Prices,
		c.Services.Sentiment,
		c.Services.Auditor,
		predictionsvc.DefaultSynthesizerConfig(),
	)

	c.Log.Info("✓ Services initialized")
}

// MustInitWorkers registers all background workers with the scheduler
func (c *Container) MustInitWorkers() {
	cfg := c.Config.Workers
	symbols := c.Config.MarketData.Symbols

	c.Scheduler = workers.NewScheduler()

	c.Scheduler.RegisterWorker(workers.NewSentimentScanWorker(
		c.Services.Sentiment,
		symbols,
		cfg.SentimentWindowHours,
		cfg.InterSymbolDelay,
		cfg.SentimentScanInterval,
		true,
	))

	c.Scheduler.RegisterWorker(workers.NewPriceRefreshWorker(
		c.Services.Prices,
		func(ctx context.Context, symbol string, metricContext map[string]float64) error {
			return c.Services.Alerts.EvaluateSymbol(ctx, symbol, nil, metricContext)
		},
		symbols,
		cfg.PriceRefreshBatch,
		cfg.PriceRefreshInterval,
		true,
	))

	c.Scheduler.RegisterWorker(workers.NewAuditReconcileWorker(
		c.Services.Auditor,
		cfg.AuditReconcileInterval,
		true,
	))

	c.Scheduler.RegisterWorker(workers.NewRetentionWorker(
		c.Services.Sentiment,
		time.Duration(cfg.RetentionDays)*24*time.Hour,
		cfg.RetentionInterval,
		true,
	))

	c.Log.Infow("✓ Workers registered", "count", len(c.Scheduler.GetWorkers()))
}

// Start launches background processing
func (c *Container) Start() error {
	if err := c.Scheduler.Start(c.Context); err != nil {
		return errors.Wrap(err, "failed to start workers")
	}
	c.Log.Info("✓ All systems operational")
	return nil
}

// Shutdown performs graceful teardown in reverse initialization order
func (c *Container) Shutdown() {
	c.Log.Info("Initiating graceful shutdown...")

	c.Cancel()

	if err := c.Scheduler.Stop(); err != nil {
		c.Log.Warnw("Worker shutdown incomplete", "error", err)
	}

	if err := c.Redis.Close(); err != nil {
		c.Log.Warnw("Redis close failed", "error", err)
	}
	if err := c.PG.Close(); err != nil {
		c.Log.Warnw("Postgres close failed", "error", err)
	}

	if c.ErrorTracker != nil {
		if err := c.ErrorTracker.Flush(context.Background()); err != nil {
			c.Log.Warnw("Error tracker flush failed", "error", err)
		}
	}

	c.Log.Info("Shutdown complete")
}

func provideErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return errnoop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return errnoop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// provideDispatchers builds the per-channel delivery map. Email is only
// wired when SMTP is configured; the evaluator always has in-app.
func provideDispatchers(cfg *config.Config, log *logger.Logger) map[alert.ChannelType]alerts.Dispatcher {
	dispatchers := map[alert.ChannelType]alerts.Dispatcher{
		alert.ChannelWebhook: alerts.NewWebhookDispatcher(&http.Client{Timeout: cfg.Alerts.WebhookTimeout}),
	}

	sender, err := mail.NewSender(cfg.SMTP)
	if err != nil {
		log.Infow("Email alerts disabled", "reason", err)
		return dispatchers
	}
	dispatchers[alert.ChannelEmail] = alerts.NewEmailDispatcher(
		sender,
		alerts.NewStaticResolver(cfg.Alerts.FallbackEmail),
	)
	return dispatchers
}

// logChangeNotifier surfaces sudden sentiment swings in the logs. A
// richer transport (chat, push) can replace it behind the same interface.
type logChangeNotifier struct {
	log *logger.Logger
}

func (n *logChangeNotifier) NotifySuddenChange(_ context.Context, change sentimentsvc.SuddenChange) {
	n.log.Warnw("Sudden sentiment change",
		"symbol", change.Symbol,
		"current", change.CurrentAvg,
		"previous", change.PreviousAvg,
		"delta", change.Delta,
		"trend", change.Trend,
	)
}
