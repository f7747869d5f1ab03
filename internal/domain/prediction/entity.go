package prediction

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Direction is the coarse predicted/observed move direction
type Direction string

const (
	DirectionBullish Direction = "bullish"
	DirectionBearish Direction = "bearish"
	DirectionNeutral Direction = "neutral"
)

// AuditStatus is the reconciliation state of one recorded prediction
type AuditStatus string

const (
	AuditPending AuditStatus = "pending"
	AuditMatched AuditStatus = "matched"
	AuditMissed  AuditStatus = "missed"
)

// Audit records one synthesized signal together with the price snapshot it
// was issued at, for later reconciliation against observed price movement.
// Created pending; mutated exactly once when the horizon elapses.
type Audit struct {
	ID                     uuid.UUID   `db:"id"`
	Symbol                 string      `db:"symbol"`
	PredictionTimestamp    time.Time   `db:"prediction_timestamp"`
	HorizonHours           int         `db:"horizon_hours"`
	PredictedDirection     Direction   `db:"predicted_direction"`
	PredictedChangePercent *float64    `db:"predicted_change_percent"`
	Confidence             float64     `db:"confidence"`
	PriceAtPrediction      *float64    `db:"price_at_prediction"`
	Status                 AuditStatus `db:"status"`
	ActualDirection        Direction   `db:"actual_direction"`
	ActualChangePercent    *float64    `db:"actual_change_percent"`
	EvaluatedAt            *time.Time  `db:"evaluated_at"`
	CreatedAt              time.Time   `db:"created_at"`
}

// Eligible reports whether the audit's horizon has elapsed
func (a *Audit) Eligible(now time.Time) bool {
	horizon := a.HorizonHours
	if horizon <= 0 {
		horizon = 24
	}
	return now.Sub(a.PredictionTimestamp) >= time.Duration(horizon)*time.Hour
}

// NormalizeSignalDirection maps a trading signal string (STRONG BUY, SELL,
// bullish, ...) to a Direction
func NormalizeSignalDirection(signal string) Direction {
	normalized := strings.ToUpper(strings.TrimSpace(signal))
	switch {
	case normalized == "":
		return DirectionNeutral
	case strings.Contains(normalized, "BUY"), strings.Contains(normalized, "BULL"):
		return DirectionBullish
	case strings.Contains(normalized, "SELL"), strings.Contains(normalized, "BEAR"):
		return DirectionBearish
	default:
		return DirectionNeutral
	}
}

// ResolveDirection buckets an observed percentage move into a Direction.
// Moves within ±0.2% count as neutral.
func ResolveDirection(changePercent float64) Direction {
	if changePercent > 0.2 {
		return DirectionBullish
	}
	if changePercent < -0.2 {
		return DirectionBearish
	}
	return DirectionNeutral
}
