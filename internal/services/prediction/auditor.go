package prediction

import (
	"context"
	"time"

	"github.com/google/uuid"

	domain "marketpulse/internal/domain/prediction"
	"marketpulse/internal/metrics"
	"marketpulse/pkg/errors"
	"marketpulse/pkg/logger"
)

// reconcileBatchSize bounds one reconciliation pass; leftovers are picked
// up next pass (at-least-once, not transactional)
const reconcileBatchSize = 50

// Auditor records synthesized signals with their price snapshot and later
// reconciles them against observed price movement
type Auditor struct {
	repo   domain.Repository
	prices PriceSource
	log    *logger.Logger
}

var _ Recorder = (*Auditor)(nil)

func NewAuditor(repo domain.Repository, prices PriceSource) *Auditor {
	return &Auditor{
		repo:   repo,
		prices: prices,
		log:    logger.Get().With("component", "auditor"),
	}
}

// Record persists a pending audit for a freshly synthesized result
func (a *Auditor) Record(ctx context.Context, symbol string, result *Result, priceAtPrediction *float64, horizonHours int) error {
	if horizonHours <= 0 {
		horizonHours = 24
	}

	audit := &domain.Audit{
		ID:                  uuid.New(),
		Symbol:              symbol,
		PredictionTimestamp: result.Timestamp,
		HorizonHours:        horizonHours,
		PredictedDirection:  domain.NormalizeSignalDirection(string(result.Signal)),
		Confidence:          float64(result.Confidence),
		PriceAtPrediction:   priceAtPrediction,
		Status:              domain.AuditPending,
		CreatedAt:           time.Now().UTC(),
	}

	if err := a.repo.Insert(ctx, audit); err != nil {
		return errors.Wrap(err, "insert prediction audit")
	}

	metrics.PredictionsRecorded.Inc()
	return nil
}

// Reconcile evaluates pending audits whose horizon has elapsed. Audits
// without a baseline price are missed immediately; audits whose live
// price fetch fails stay pending for the next pass.
func (a *Auditor) Reconcile(ctx context.Context) (evaluated int, err error) {
	pending, err := a.repo.PendingOldest(ctx, reconcileBatchSize)
	if err != nil {
		return 0, errors.Wrap(err, "load pending audits")
	}

	now := time.Now().UTC()
	for i := range pending {
		audit := pending[i]

		if err := ctx.Err(); err != nil {
			return evaluated, err
		}
		if !audit.Eligible(now) {
			continue
		}

		if audit.PriceAtPrediction == nil || *audit.PriceAtPrediction <= 0 {
			a.finalize(ctx, &audit, domain.AuditMissed, domain.DirectionNeutral, nil, now)
			evaluated++
			continue
		}

		quote, err := a.prices.Quote(ctx, audit.Symbol)
		if err != nil || quote == nil || quote.CurrentPrice <= 0 {
			// retried next pass
			a.log.Warnw("live price unavailable, audit stays pending",
				"symbol", audit.Symbol, "audit_id", audit.ID, "error", err)
			continue
		}

		changePercent := (quote.CurrentPrice - *audit.PriceAtPrediction) / *audit.PriceAtPrediction * 100
		actual := domain.ResolveDirection(changePercent)

		status := domain.AuditMissed
		if actual == audit.PredictedDirection {
			status = domain.AuditMatched
		}

		a.finalize(ctx, &audit, status, actual, &changePercent, now)
		evaluated++
	}

	return evaluated, nil
}

func (a *Auditor) finalize(ctx context.Context, audit *domain.Audit, status domain.AuditStatus, actual domain.Direction, changePercent *float64, now time.Time) {
	audit.Status = status
	audit.ActualDirection = actual
	audit.ActualChangePercent = changePercent
	evaluatedAt := now
	audit.EvaluatedAt = &evaluatedAt

	if err := a.repo.RecordOutcome(ctx, audit); err != nil {
		a.log.Errorw("failed to record audit outcome",
			"symbol", audit.Symbol, "audit_id", audit.ID, "error", err)
		return
	}

	metrics.PredictionsEvaluated.WithLabelValues(string(status)).Inc()
}

// Accuracy reports matched/missed counts for a symbol over a trailing window
func (a *Auditor) Accuracy(ctx context.Context, symbol string, window time.Duration) (matched, missed int, err error) {
	return a.repo.AccuracySince(ctx, symbol, time.Now().Add(-window))
}
