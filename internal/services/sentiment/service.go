package sentiment

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"marketpulse/internal/domain/mention"
	"marketpulse/internal/metrics"
	"marketpulse/internal/services/scoring"
	"marketpulse/pkg/errors"
	"marketpulse/pkg/logger"
)

const (
	maxContentLength  = 4000
	maxLatestSignals  = 8
	titleDedupWindow  = 24 * time.Hour
	defaultFreshness  = 60
	suddenDeltaLimit  = 0.4
	suddenAbsoluteBar = 0.5
)

// AlertEvaluator is the alert-evaluation capability injected into the
// service. Wired through the constructor so the alert package never
// imports this one.
type AlertEvaluator interface {
	EvaluateSymbol(ctx context.Context, symbol string, agg *mention.Aggregate, metricContext map[string]float64) error
}

// SuddenChange describes an abrupt shift in a symbol's aggregate sentiment
type SuddenChange struct {
	Symbol      string        `json:"symbol"`
	Delta       float64       `json:"delta"`
	PreviousAvg float64       `json:"prevAvg"`
	CurrentAvg  float64       `json:"currentAvg"`
	Trend       mention.Trend `json:"trend"`
	Timestamp   time.Time     `json:"timestamp"`
}

// ChangeNotifier receives sudden-change pushes. Implementations must not
// block the scan loop.
type ChangeNotifier interface {
	NotifySuddenChange(ctx context.Context, change SuddenChange)
}

// HistoryPoint is one hourly bucket of the aggregate history series
type HistoryPoint struct {
	Timestamp     time.Time            `json:"timestamp"`
	Sentiment     float64              `json:"sentiment"`
	Mentions      int                  `json:"mentions"`
	AvgConfidence float64              `json:"avgConfidence"`
	Positive      int                  `json:"positive"`
	Negative      int                  `json:"negative"`
	Neutral       int                  `json:"neutral"`
	Breakdown     mention.SourceCounts `json:"sourceBreakdown"`
	Trend         mention.Trend        `json:"trend"`
}

// Service ingests raw mentions, scores them through the ensemble and
// serves rolling-window aggregates
type Service struct {
	repo      mention.Repository
	collector mention.Collector
	ensemble  *scoring.Ensemble
	evaluator AlertEvaluator
	notifier  ChangeNotifier
	log       *logger.Logger
}

// ServiceOption configures optional collaborators
type ServiceOption func(*Service)

// WithAlertEvaluator attaches the injected alert evaluator
func WithAlertEvaluator(e AlertEvaluator) ServiceOption {
	return func(s *Service) { s.evaluator = e }
}

// WithChangeNotifier attaches the sudden-change push hook
func WithChangeNotifier(n ChangeNotifier) ServiceOption {
	return func(s *Service) { s.notifier = n }
}

func NewService(repo mention.Repository, collector mention.Collector, ensemble *scoring.Ensemble, opts ...ServiceOption) *Service {
	s := &Service{
		repo:      repo,
		collector: collector,
		ensemble:  ensemble,
		log:       logger.Get().With("component", "sentiment"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessMentions scores and persists a batch of raw mentions for one
// symbol. Duplicates, both within the batch and against the store, are
// skipped silently: ingestion is idempotent, not transactional.
func (s *Service) ProcessMentions(ctx context.Context, symbol string, entries []mention.RawMention) ([]mention.ScoredMention, error) {
	saved := make([]mention.ScoredMention, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return saved, err
		}

		if entry.ExternalID != "" {
			if _, dup := seen[entry.ExternalID]; dup {
				metrics.MentionsDeduplicated.WithLabelValues(symbol).Inc()
				continue
			}
			seen[entry.ExternalID] = struct{}{}
		}

		text := entry.Text
		if strings.TrimSpace(text) == "" {
			text = entry.Title
		}

		result, err := s.ensemble.Analyze(ctx, text)
		if err != nil {
			s.log.Warnw("ensemble analysis failed", "symbol", symbol, "error", err)
			continue
		}
		if result == nil {
			continue
		}

		duplicate, err := s.alreadyStored(ctx, symbol, entry)
		if err != nil {
			s.log.Errorw("dedup lookup failed", "symbol", symbol, "error", err)
			continue
		}
		if duplicate {
			metrics.MentionsDeduplicated.WithLabelValues(symbol).Inc()
			continue
		}

		record := buildRecord(symbol, entry, text, result)
		if err := s.repo.Insert(ctx, record); err != nil {
			if errors.Is(err, errors.ErrAlreadyExists) {
				metrics.MentionsDeduplicated.WithLabelValues(symbol).Inc()
				continue
			}
			s.log.Errorw("failed to persist scored mention", "symbol", symbol, "error", err)
			continue
		}

		metrics.MentionsScored.WithLabelValues(symbol, string(record.SourceType)).Inc()
		saved = append(saved, *record)
	}

	s.log.Debugw("processed mention batch", "symbol", symbol, "received", len(entries), "saved", len(saved))
	return saved, nil
}

func (s *Service) alreadyStored(ctx context.Context, symbol string, entry mention.RawMention) (bool, error) {
	if entry.ExternalID != "" {
		existing, err := s.repo.FindByExternalID(ctx, symbol, entry.ExternalID)
		if err != nil {
			return false, err
		}
		return existing != nil, nil
	}

	existing, err := s.repo.FindByTitleSince(ctx, symbol, entry.Title, time.Now().Add(-titleDedupWindow))
	if err != nil {
		return false, err
	}
	return existing != nil, nil
}

func buildRecord(symbol string, entry mention.RawMention, text string, result *scoring.Result) *mention.ScoredMention {
	if len(text) > maxContentLength {
		text = text[:maxContentLength]
	}

	sourceType := entry.SourceType
	if sourceType == "" {
		sourceType = mention.SourceNews
	}
	provider := entry.Provider
	if provider == "" {
		provider = "news"
	}

	freshness := defaultFreshness
	if !entry.PublishedAt.IsZero() {
		freshness = int(math.Round(time.Since(entry.PublishedAt).Minutes()))
	}

	return &mention.ScoredMention{
		ID:               uuid.New(),
		Symbol:           symbol,
		ExternalID:       entry.ExternalID,
		Title:            entry.Title,
		Content:          text,
		URL:              entry.URL,
		SourceLabel:      entry.SourceLabel,
		SourceType:       sourceType,
		Provider:         provider,
		PublishedAt:      entry.PublishedAt,
		SentimentScore:   result.Score,
		SentimentLabel:   result.Label,
		Confidence:       result.Confidence,
		ModelBreakdown:   result.Models,
		Signals:          result.Signals,
		QualityScore:     qualityScore(entry, result.Confidence),
		FreshnessMinutes: freshness,
		Metadata:         entry.Metadata,
		CreatedAt:        time.Now().UTC(),
	}
}

// qualityScore grades a mention by source type, engagement metadata and
// ensemble confidence
func qualityScore(entry mention.RawMention, confidence float64) float64 {
	score := 0.5

	switch entry.SourceType {
	case mention.SourceNews:
		score += 0.1
	case mention.SourceTranscript:
		score += 0.15
	}

	if likes, ok := engagementMetric(entry.Metadata, "like_count"); ok {
		score += math.Min(0.1, likes/1000)
	}
	if upvotes, ok := numericMeta(entry.Metadata, "score"); ok {
		score += math.Min(0.1, upvotes/100)
	}

	score += confidence * 0.2

	return math.Max(0, math.Min(1, score))
}

func engagementMetric(meta mention.Metadata, key string) (float64, bool) {
	raw, ok := meta["metrics"]
	if !ok {
		return 0, false
	}
	nested, ok := raw.(map[string]interface{})
	if !ok {
		return 0, false
	}
	return asFloat(nested[key])
}

func numericMeta(meta mention.Metadata, key string) (float64, bool) {
	return asFloat(meta[key])
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Aggregate summarizes the trailing window for a symbol and upserts the
// hourly snapshot bucket. No records in the window is a valid empty
// result, not an error.
func (s *Service) Aggregate(ctx context.Context, symbol string, windowHours int) (*mention.Aggregate, error) {
	since := time.Now().Add(-time.Duration(windowHours) * time.Hour)

	records, err := s.repo.RecordsSince(ctx, symbol, since)
	if err != nil {
		return nil, errors.Wrap(err, "load window records")
	}

	agg := summarize(symbol, since, windowHours, records)
	if !agg.DataAvailable {
		return agg, nil
	}

	if err := s.repo.UpsertSnapshot(ctx, snapshotFrom(agg)); err != nil {
		// history bucket write failing must not discard the aggregate
		s.log.Errorw("failed to upsert aggregate snapshot", "symbol", symbol, "error", err)
	}

	return agg, nil
}

// summarize computes the aggregate from records ordered newest first
func summarize(symbol string, since time.Time, windowHours int, records []mention.ScoredMention) *mention.Aggregate {
	agg := &mention.Aggregate{
		Symbol:          symbol,
		WindowStart:     since,
		WindowHours:     windowHours,
		Trend:           mention.TrendNeutral,
		SourceBreakdown: mention.SourceCounts{},
		LatestSignals:   []mention.Signal{},
	}

	if len(records) == 0 {
		return agg
	}

	var sentimentSum, confidenceSum, freshnessSum float64
	for _, r := range records {
		sentimentSum += r.SentimentScore
		confidenceSum += r.Confidence
		freshnessSum += float64(r.FreshnessMinutes)

		switch r.SentimentLabel {
		case mention.LabelPositive:
			agg.PositiveCount++
		case mention.LabelNegative:
			agg.NegativeCount++
		default:
			agg.NeutralCount++
		}

		sourceKey := string(r.SourceType)
		if sourceKey == "" {
			sourceKey = string(mention.SourceNews)
		}
		agg.SourceBreakdown[sourceKey]++

		if len(agg.LatestSignals) < maxLatestSignals {
			for _, sig := range r.Signals {
				agg.LatestSignals = append(agg.LatestSignals, sig)
				if len(agg.LatestSignals) == maxLatestSignals {
					break
				}
			}
		}
	}

	total := float64(len(records))
	avgSentiment := sentimentSum / total

	agg.TotalMentions = len(records)
	agg.AvgSentiment = roundTo(avgSentiment, 4)
	agg.AvgConfidence = roundTo(confidenceSum/total, 3)
	agg.PositivePercentage = int(math.Round(float64(agg.PositiveCount) / total * 100))
	agg.NegativePercentage = int(math.Round(float64(agg.NegativeCount) / total * 100))
	agg.NeutralPercentage = int(math.Round(float64(agg.NeutralCount) / total * 100))
	agg.FreshnessMinutes = int(math.Round(freshnessSum / total))
	agg.Trend = DetermineTrend(avgSentiment)
	agg.DataAvailable = true

	return agg
}

// DetermineTrend buckets an average sentiment. Boundary values resolve to
// the weaker bucket.
func DetermineTrend(avgSentiment float64) mention.Trend {
	switch {
	case avgSentiment > 0.3:
		return mention.TrendVeryBullish
	case avgSentiment > 0.1:
		return mention.TrendBullish
	case avgSentiment < -0.3:
		return mention.TrendVeryBearish
	case avgSentiment < -0.1:
		return mention.TrendBearish
	default:
		return mention.TrendNeutral
	}
}

func snapshotFrom(agg *mention.Aggregate) *mention.Snapshot {
	now := time.Now().UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return &mention.Snapshot{
		Symbol:          agg.Symbol,
		Date:            day,
		Hour:            now.Hour(),
		AvgSentiment:    agg.AvgSentiment,
		AvgConfidence:   agg.AvgConfidence,
		TotalMentions:   agg.TotalMentions,
		Positive:        agg.PositiveCount,
		Negative:        agg.NegativeCount,
		Neutral:         agg.NeutralCount,
		SourceBreakdown: agg.SourceBreakdown,
		Trend:           agg.Trend,
		Timestamp:       now,
	}
}

// AnalyzeSymbol runs the full scan cycle for one symbol: collect, score,
// aggregate, evaluate alert rules and fire the sudden-change hook.
func (s *Service) AnalyzeSymbol(ctx context.Context, symbol, companyName string, windowHours int) (*mention.Aggregate, error) {
	entries, err := s.collector.FetchMentions(ctx, symbol, companyName)
	if err != nil {
		// partial collection failure degrades the cycle, it does not stop it
		s.log.Warnw("mention collection degraded", "symbol", symbol, "error", err)
	}

	if len(entries) > 0 {
		if _, err := s.ProcessMentions(ctx, symbol, entries); err != nil {
			return nil, err
		}
	}

	previous, err := s.repo.LatestSnapshot(ctx, symbol)
	if err != nil {
		s.log.Errorw("failed to load previous snapshot", "symbol", symbol, "error", err)
	}

	agg, err := s.Aggregate(ctx, symbol, windowHours)
	if err != nil {
		return nil, err
	}

	if s.evaluator != nil && agg.DataAvailable {
		if err := s.evaluator.EvaluateSymbol(ctx, symbol, agg, nil); err != nil {
			s.log.Errorw("alert evaluation failed", "symbol", symbol, "error", err)
		}
	}

	s.detectSuddenChange(ctx, symbol, previous, agg)

	return agg, nil
}

func (s *Service) detectSuddenChange(ctx context.Context, symbol string, previous *mention.Snapshot, agg *mention.Aggregate) {
	if s.notifier == nil || !agg.DataAvailable {
		return
	}

	prevAvg := 0.0
	if previous != nil {
		prevAvg = previous.AvgSentiment
	}

	delta := math.Abs(agg.AvgSentiment - prevAvg)
	if delta < suddenDeltaLimit && math.Abs(agg.AvgSentiment) < suddenAbsoluteBar {
		return
	}

	s.notifier.NotifySuddenChange(ctx, SuddenChange{
		Symbol:      symbol,
		Delta:       roundTo(delta, 4),
		PreviousAvg: roundTo(prevAvg, 4),
		CurrentAvg:  agg.AvgSentiment,
		Trend:       agg.Trend,
		Timestamp:   time.Now().UTC(),
	})
}

// History returns the hourly aggregate buckets for the trailing number of days
func (s *Service) History(ctx context.Context, symbol string, days int) ([]HistoryPoint, error) {
	since := time.Now().AddDate(0, 0, -days)

	snapshots, err := s.repo.SnapshotsSince(ctx, symbol, since)
	if err != nil {
		return nil, errors.Wrap(err, "load snapshot history")
	}

	points := make([]HistoryPoint, 0, len(snapshots))
	for _, snap := range snapshots {
		points = append(points, HistoryPoint{
			Timestamp:     snap.Date.Add(time.Duration(snap.Hour) * time.Hour),
			Sentiment:     snap.AvgSentiment,
			Mentions:      snap.TotalMentions,
			AvgConfidence: snap.AvgConfidence,
			Positive:      snap.Positive,
			Negative:      snap.Negative,
			Neutral:       snap.Neutral,
			Breakdown:     snap.SourceBreakdown,
			Trend:         snap.Trend,
		})
	}
	return points, nil
}

// Prune deletes scored mentions older than the retention horizon
func (s *Service) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	deleted, err := s.repo.DeleteOlderThan(ctx, time.Now().Add(-retention))
	if err != nil {
		return 0, errors.Wrap(err, "prune scored mentions")
	}
	if deleted > 0 {
		s.log.Infow("pruned aged mentions", "deleted", deleted)
	}
	return deleted, nil
}

func roundTo(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
