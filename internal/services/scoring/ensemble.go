package scoring

import (
	"context"
	"math"
	"strings"

	"marketpulse/internal/domain/mention"
	"marketpulse/pkg/logger"
)

// Thresholds are the label cutoffs for a consensus score
type Thresholds struct {
	Positive float64
	Negative float64
}

// DefaultThresholds returns the standard label cutoffs
func DefaultThresholds() Thresholds {
	return Thresholds{Positive: 0.15, Negative: -0.15}
}

// Result is the ensemble consensus for one text
type Result struct {
	Score      float64
	Label      mention.SentimentLabel
	Confidence float64
	Models     []mention.ModelScore
	Signals    []mention.Signal
}

// localModel scores a text without any remote call
type localModel interface {
	Name() string
	Score(text string) mention.ModelScore
}

// Ensemble combines several independently weighted sentiment models into
// one consensus score. The remote financial classifier is optional: when
// it is not configured or its call fails, the remaining models still
// produce a result.
type Ensemble struct {
	thresholds Thresholds
	local      []localModel
	remote     *FinBERTModel
	log        *logger.Logger
}

// Option configures an Ensemble
type Option func(*Ensemble)

// WithThresholds overrides the default label cutoffs
func WithThresholds(t Thresholds) Option {
	return func(e *Ensemble) { e.thresholds = t }
}

// WithRemoteModel attaches the optional remote financial classifier
func WithRemoteModel(m *FinBERTModel) Option {
	return func(e *Ensemble) { e.remote = m }
}

// NewEnsemble creates the ensemble with the three local models
func NewEnsemble(opts ...Option) *Ensemble {
	e := &Ensemble{
		thresholds: DefaultThresholds(),
		local: []localModel{
			&lexiconModel{},
			&polarityModel{},
			&keywordModel{},
		},
		log: logger.Get().With("component", "scoring"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Analyze scores one text blob. Empty or whitespace-only text yields a nil
// result and no error: the caller must skip it, not fail.
func (e *Ensemble) Analyze(ctx context.Context, text string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	models := make([]mention.ModelScore, 0, len(e.local)+1)
	for _, m := range e.local {
		models = append(models, m.Score(text))
	}

	if e.remote != nil {
		remote, err := e.remote.Score(ctx, text)
		if err != nil {
			// Remote model failures degrade the ensemble, never fail it
			e.log.Warnw("remote sentiment model excluded from ensemble", "error", err)
		} else if remote != nil {
			models = append(models, *remote)
		}
	}

	score := consensusScore(models)
	confidence := consensusConfidence(models)

	return &Result{
		Score:      round(clamp(score, -1, 1), 4),
		Label:      DetermineLabel(score, e.thresholds),
		Confidence: round(confidence, 3),
		Models:     models,
		Signals:    ExtractSignals(text),
	}, nil
}

// DetermineLabel maps a consensus score to a discrete label.
// Scores exactly at a threshold take the stronger label.
func DetermineLabel(score float64, t Thresholds) mention.SentimentLabel {
	if score >= t.Positive {
		return mention.LabelPositive
	}
	if score <= t.Negative {
		return mention.LabelNegative
	}
	return mention.LabelNeutral
}

// consensusScore is the weighted mean of model scores.
// A missing weight defaults to 0.25.
func consensusScore(models []mention.ModelScore) float64 {
	totalWeight := 0.0
	weighted := 0.0
	for _, m := range models {
		w := m.Weight
		if w == 0 {
			w = 0.25
		}
		totalWeight += w
		weighted += m.Score * w
	}
	if totalWeight == 0 {
		return 0
	}
	return weighted / totalWeight
}

// consensusConfidence averages variance-derived agreement with the mean
// per-model confidence. Higher score variance lowers confidence.
func consensusConfidence(models []mention.ModelScore) float64 {
	if len(models) == 0 {
		return 0
	}

	mean := 0.0
	for _, m := range models {
		mean += m.Score
	}
	mean /= float64(len(models))

	variance := 0.0
	confSum := 0.0
	for _, m := range models {
		variance += (m.Score - mean) * (m.Score - mean)
		c := m.Confidence
		if c == 0 {
			c = 0.5
		}
		confSum += c
	}
	variance /= float64(len(models))

	normalizedVariance := 1 - math.Min(1, variance*2)
	avgModelConfidence := confSum / float64(len(models))

	return clamp((normalizedVariance+avgModelConfidence)/2, 0, 1)
}

func clamp(v, min, max float64) float64 {
	return math.Max(min, math.Min(max, v))
}

func round(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
