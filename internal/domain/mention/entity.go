package mention

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"marketpulse/pkg/errors"
)

// SourceType classifies where a mention came from
type SourceType string

const (
	SourceNews       SourceType = "news"
	SourceSocial     SourceType = "social"
	SourceTranscript SourceType = "transcript"
	SourceAnalyst    SourceType = "analyst"
	SourceOther      SourceType = "other"
)

// Trend buckets an average sentiment into a coarse direction
type Trend string

const (
	TrendVeryBullish Trend = "very bullish"
	TrendBullish     Trend = "bullish"
	TrendNeutral     Trend = "neutral"
	TrendBearish     Trend = "bearish"
	TrendVeryBearish Trend = "very bearish"
)

// SentimentLabel is the discrete label for one scored text
type SentimentLabel string

const (
	LabelPositive SentimentLabel = "positive"
	LabelNegative SentimentLabel = "negative"
	LabelNeutral  SentimentLabel = "neutral"
)

// RawMention is one unscored textual mention from the collection layer.
// Ephemeral: produced by a collector, consumed once by the aggregator.
type RawMention struct {
	ExternalID  string
	Title       string
	Text        string
	URL         string
	SourceLabel string
	SourceType  SourceType
	Provider    string
	PublishedAt time.Time
	Metadata    Metadata
}

// ModelScore is one ensemble member's output
type ModelScore struct {
	ModelName  string  `json:"modelName"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Weight     float64 `json:"weight"`
}

// Signal is a rule-derived event trigger extracted from a mention text
type Signal struct {
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Strength    float64 `json:"strength"`
}

// ScoredMention is a persisted mention with its ensemble sentiment result.
// Immutable after creation; identity is the dedup key, not the row id.
type ScoredMention struct {
	ID               uuid.UUID      `db:"id"`
	Symbol           string         `db:"symbol"`
	ExternalID       string         `db:"external_id"`
	Title            string         `db:"title"`
	Content          string         `db:"content"`
	URL              string         `db:"url"`
	SourceLabel      string         `db:"source_label"`
	SourceType       SourceType     `db:"source_type"`
	Provider         string         `db:"provider"`
	PublishedAt      time.Time      `db:"published_at"`
	SentimentScore   float64        `db:"sentiment_score"`
	SentimentLabel   SentimentLabel `db:"sentiment_label"`
	Confidence       float64        `db:"confidence"`
	ModelBreakdown   ModelBreakdown `db:"model_breakdown"`
	Signals          SignalList     `db:"signals"`
	QualityScore     float64        `db:"quality_score"`
	FreshnessMinutes int            `db:"freshness_minutes"`
	Metadata         Metadata       `db:"metadata"`
	CreatedAt        time.Time      `db:"created_at"`
}

// Aggregate is the rolling-window sentiment summary for a symbol.
// Recomputed from scratch on each request; never mutated in place.
type Aggregate struct {
	Symbol             string         `json:"symbol"`
	WindowStart        time.Time      `json:"windowStart"`
	WindowHours        int            `json:"windowHours"`
	AvgSentiment       float64        `json:"avgSentiment"`
	AvgConfidence      float64        `json:"avgConfidence"`
	TotalMentions      int            `json:"totalMentions"`
	PositiveCount      int            `json:"positiveCount"`
	NegativeCount      int            `json:"negativeCount"`
	NeutralCount       int            `json:"neutralCount"`
	PositivePercentage int            `json:"positivePercentage"`
	NegativePercentage int            `json:"negativePercentage"`
	NeutralPercentage  int            `json:"neutralPercentage"`
	SourceBreakdown    SourceCounts   `json:"sourceBreakdown"`
	Trend              Trend          `json:"trend"`
	FreshnessMinutes   int            `json:"freshnessMinutes"`
	LatestSignals      []Signal       `json:"latestSignals"`
	DataAvailable      bool           `json:"dataAvailable"`
}

// Snapshot is a persisted hourly aggregate bucket, keyed (symbol, day, hour).
// Upserted, not inserted: repeated aggregation within the hour overwrites it.
type Snapshot struct {
	Symbol          string       `db:"symbol"`
	Date            time.Time    `db:"date"` // calendar day, midnight
	Hour            int          `db:"hour"`
	AvgSentiment    float64      `db:"avg_sentiment"`
	AvgConfidence   float64      `db:"avg_confidence"`
	TotalMentions   int          `db:"total_mentions"`
	Positive        int          `db:"positive"`
	Negative        int          `db:"negative"`
	Neutral         int          `db:"neutral"`
	SourceBreakdown SourceCounts `db:"source_breakdown"`
	Trend           Trend        `db:"trend"`
	Timestamp       time.Time    `db:"timestamp"`
}

// JSONB column wrappers

// Metadata is an open key/value map carried through from the collector
type Metadata map[string]interface{}

// ModelBreakdown is the ordered list of ensemble member outputs
type ModelBreakdown []ModelScore

// SignalList is the list of extracted signals
type SignalList []Signal

// SourceCounts maps source type to mention count
type SourceCounts map[string]int

func (m Metadata) Value() (driver.Value, error)       { return jsonbValue(m) }
func (m *Metadata) Scan(src interface{}) error        { return jsonbScan(src, m) }
func (b ModelBreakdown) Value() (driver.Value, error) { return jsonbValue(b) }
func (b *ModelBreakdown) Scan(src interface{}) error  { return jsonbScan(src, b) }
func (s SignalList) Value() (driver.Value, error)     { return jsonbValue(s) }
func (s *SignalList) Scan(src interface{}) error      { return jsonbScan(src, s) }
func (c SourceCounts) Value() (driver.Value, error)   { return jsonbValue(c) }
func (c *SourceCounts) Scan(src interface{}) error    { return jsonbScan(src, c) }

func jsonbValue(v interface{}) (driver.Value, error) {
	return json.Marshal(v)
}

func jsonbScan(src interface{}, dest interface{}) error {
	switch data := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(data, dest)
	case string:
		return json.Unmarshal([]byte(data), dest)
	default:
		return errors.Newf("unsupported jsonb source type %T", src)
	}
}
