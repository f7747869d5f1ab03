package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"marketpulse/internal/domain/mention"
)

// Compile-time check
var _ mention.Repository = (*MentionRepository)(nil)

// MentionRepository implements mention.Repository using sqlx
type MentionRepository struct {
	db *sqlx.DB
}

// NewMentionRepository creates a new mention repository
func NewMentionRepository(db *sqlx.DB) *MentionRepository {
	return &MentionRepository{db: db}
}

// Insert stores a scored mention
func (r *MentionRepository) Insert(ctx context.Context, m *mention.ScoredMention) error {
	query := `
		INSERT INTO scored_mentions (
			id, symbol, external_id, title, content, url,
			source_label, source_type, provider, published_at,
			sentiment_score, sentiment_label, confidence,
			model_breakdown, signals, quality_score, freshness_minutes,
			metadata, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19
		)`

	_, err := r.db.ExecContext(ctx, query,
		m.ID, m.Symbol, m.ExternalID, m.Title, m.Content, m.URL,
		m.SourceLabel, m.SourceType, m.Provider, m.PublishedAt,
		m.SentimentScore, m.SentimentLabel, m.Confidence,
		m.ModelBreakdown, m.Signals, m.QualityScore, m.FreshnessMinutes,
		m.Metadata, m.CreatedAt,
	)

	return err
}

// FindByExternalID looks up a mention by its (symbol, external id) dedup key
func (r *MentionRepository) FindByExternalID(ctx context.Context, symbol, externalID string) (*mention.ScoredMention, error) {
	var m mention.ScoredMention

	query := `SELECT * FROM scored_mentions WHERE symbol = $1 AND external_id = $2 LIMIT 1`

	err := r.db.GetContext(ctx, &m, query, symbol, externalID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &m, nil
}

// FindByTitleSince looks up a mention by its (symbol, title, window) dedup key
func (r *MentionRepository) FindByTitleSince(ctx context.Context, symbol, title string, since time.Time) (*mention.ScoredMention, error) {
	var m mention.ScoredMention

	query := `
		SELECT * FROM scored_mentions
		WHERE symbol = $1 AND title = $2 AND created_at >= $3
		LIMIT 1`

	err := r.db.GetContext(ctx, &m, query, symbol, title, since)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &m, nil
}

// RecordsSince returns mentions inside the trailing window, newest first
func (r *MentionRepository) RecordsSince(ctx context.Context, symbol string, since time.Time) ([]mention.ScoredMention, error) {
	var records []mention.ScoredMention

	query := `
		SELECT * FROM scored_mentions
		WHERE symbol = $1 AND created_at >= $2
		ORDER BY created_at DESC`

	err := r.db.SelectContext(ctx, &records, query, symbol, since)
	if err != nil {
		return nil, err
	}

	return records, nil
}

// DeleteOlderThan removes mentions created before cutoff and returns the count
func (r *MentionRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM scored_mentions WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpsertSnapshot writes the hourly aggregate bucket for (symbol, day, hour).
// Repeated aggregation within the same hour overwrites the bucket.
func (r *MentionRepository) UpsertSnapshot(ctx context.Context, s *mention.Snapshot) error {
	query := `
		INSERT INTO sentiment_snapshots (
			symbol, date, hour, avg_sentiment, avg_confidence,
			total_mentions, positive, negative, neutral,
			source_breakdown, trend, timestamp
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
		ON CONFLICT (symbol, date, hour) DO UPDATE SET
			avg_sentiment = EXCLUDED.avg_sentiment,
			avg_confidence = EXCLUDED.avg_confidence,
			total_mentions = EXCLUDED.total_mentions,
			positive = EXCLUDED.positive,
			negative = EXCLUDED.negative,
			neutral = EXCLUDED.neutral,
			source_breakdown = EXCLUDED.source_breakdown,
			trend = EXCLUDED.trend,
			timestamp = EXCLUDED.timestamp`

	_, err := r.db.ExecContext(ctx, query,
		s.Symbol, s.Date, s.Hour, s.AvgSentiment, s.AvgConfidence,
		s.TotalMentions, s.Positive, s.Negative, s.Neutral,
		s.SourceBreakdown, s.Trend, s.Timestamp,
	)

	return err
}

// LatestSnapshot returns the most recent hourly bucket for a symbol
func (r *MentionRepository) LatestSnapshot(ctx context.Context, symbol string) (*mention.Snapshot, error) {
	var s mention.Snapshot

	query := `
		SELECT * FROM sentiment_snapshots
		WHERE symbol = $1
		ORDER BY date DESC, hour DESC
		LIMIT 1`

	err := r.db.GetContext(ctx, &s, query, symbol)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &s, nil
}

// SnapshotsSince returns hourly buckets from since onward, oldest first
func (r *MentionRepository) SnapshotsSince(ctx context.Context, symbol string, since time.Time) ([]mention.Snapshot, error) {
	var snapshots []mention.Snapshot

	query := `
		SELECT * FROM sentiment_snapshots
		WHERE symbol = $1 AND date >= $2
		ORDER BY date ASC, hour ASC`

	err := r.db.SelectContext(ctx, &snapshots, query, symbol, since)
	if err != nil {
		return nil, err
	}

	return snapshots, nil
}
