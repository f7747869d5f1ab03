package prediction

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpulse/internal/domain/market"
	domain "marketpulse/internal/domain/prediction"
	"marketpulse/pkg/errors"
)

type memoryAuditRepo struct {
	audits map[uuid.UUID]*domain.Audit
	order  []uuid.UUID
}

var _ domain.Repository = (*memoryAuditRepo)(nil)

func newMemoryAuditRepo() *memoryAuditRepo {
	return &memoryAuditRepo{audits: map[uuid.UUID]*domain.Audit{}}
}

func (r *memoryAuditRepo) Insert(_ context.Context, a *domain.Audit) error {
	copied := *a
	r.audits[a.ID] = &copied
	r.order = append(r.order, a.ID)
	return nil
}

func (r *memoryAuditRepo) PendingOldest(_ context.Context, limit int) ([]domain.Audit, error) {
	var out []domain.Audit
	for _, id := range r.order {
		if len(out) == limit {
			break
		}
		if a := r.audits[id]; a.Status == domain.AuditPending {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *memoryAuditRepo) RecordOutcome(_ context.Context, a *domain.Audit) error {
	stored, ok := r.audits[a.ID]
	if !ok || stored.Status != domain.AuditPending {
		return nil
	}
	stored.Status = a.Status
	stored.ActualDirection = a.ActualDirection
	stored.ActualChangePercent = a.ActualChangePercent
	stored.EvaluatedAt = a.EvaluatedAt
	return nil
}

func (r *memoryAuditRepo) AccuracySince(_ context.Context, symbol string, since time.Time) (int, int, error) {
	matched, missed := 0, 0
	for _, a := range r.audits {
		if a.Symbol != symbol || a.PredictionTimestamp.Before(since) {
			continue
		}
		switch a.Status {
		case domain.AuditMatched:
			matched++
		case domain.AuditMissed:
			missed++
		}
	}
	return matched, missed, nil
}

func priceRef(v float64) *float64 { return &v }

func pendingAudit(symbol string, direction domain.Direction, price *float64, age time.Duration) *domain.Audit {
	return &domain.Audit{
		ID:                  uuid.New(),
		Symbol:              symbol,
		PredictionTimestamp: time.Now().Add(-age),
		HorizonHours:        24,
		PredictedDirection:  direction,
		PriceAtPrediction:   price,
		Status:              domain.AuditPending,
		CreatedAt:           time.Now().Add(-age),
	}
}

func TestRecordNormalizesSignal(t *testing.T) {
	repo := newMemoryAuditRepo()
	auditor := NewAuditor(repo, &stubPrices{})

	result := &Result{Signal: SignalStrongBuy, Confidence: 80, Timestamp: time.Now()}
	require.NoError(t, auditor.Record(context.Background(), "TEST.NS", result, priceRef(100), 24))

	audits, err := repo.PendingOldest(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, audits, 1)

	assert.Equal(t, domain.DirectionBullish, audits[0].PredictedDirection)
	assert.Equal(t, domain.AuditPending, audits[0].Status)
	require.NotNil(t, audits[0].PriceAtPrediction)
	assert.Equal(t, 100.0, *audits[0].PriceAtPrediction)
}

func TestReconcileMatchesBullishMove(t *testing.T) {
	repo := newMemoryAuditRepo()
	audit := pendingAudit("TEST.NS", domain.DirectionBullish, priceRef(100), 30*time.Hour)
	require.NoError(t, repo.Insert(context.Background(), audit))

	// +1.5% over baseline
	auditor := NewAuditor(repo, &stubPrices{quote: &market.Quote{CurrentPrice: 101.5}})

	evaluated, err := auditor.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, evaluated)

	stored := repo.audits[audit.ID]
	assert.Equal(t, domain.AuditMatched, stored.Status)
	assert.Equal(t, domain.DirectionBullish, stored.ActualDirection)
	require.NotNil(t, stored.ActualChangePercent)
	assert.InDelta(t, 1.5, *stored.ActualChangePercent, 1e-9)
	assert.NotNil(t, stored.EvaluatedAt)
}

func TestReconcileMissesWrongDirection(t *testing.T) {
	repo := newMemoryAuditRepo()
	audit := pendingAudit("TEST.NS", domain.DirectionBullish, priceRef(100), 30*time.Hour)
	require.NoError(t, repo.Insert(context.Background(), audit))

	auditor := NewAuditor(repo, &stubPrices{quote: &market.Quote{CurrentPrice: 97}})

	_, err := auditor.Reconcile(context.Background())
	require.NoError(t, err)

	stored := repo.audits[audit.ID]
	assert.Equal(t, domain.AuditMissed, stored.Status)
	assert.Equal(t, domain.DirectionBearish, stored.ActualDirection)
}

func TestReconcileSmallMoveIsNeutral(t *testing.T) {
	repo := newMemoryAuditRepo()
	audit := pendingAudit("TEST.NS", domain.DirectionNeutral, priceRef(100), 30*time.Hour)
	require.NoError(t, repo.Insert(context.Background(), audit))

	// +0.1% stays inside the neutral band
	auditor := NewAuditor(repo, &stubPrices{quote: &market.Quote{CurrentPrice: 100.1}})

	_, err := auditor.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.AuditMatched, repo.audits[audit.ID].Status)
}

func TestReconcileSkipsYoungAudits(t *testing.T) {
	repo := newMemoryAuditRepo()
	audit := pendingAudit("TEST.NS", domain.DirectionBullish, priceRef(100), 2*time.Hour)
	require.NoError(t, repo.Insert(context.Background(), audit))

	auditor := NewAuditor(repo, &stubPrices{quote: &market.Quote{CurrentPrice: 200}})

	evaluated, err := auditor.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Zero(t, evaluated)
	assert.Equal(t, domain.AuditPending, repo.audits[audit.ID].Status)
}

func TestReconcileNoBaselineIsMissedImmediately(t *testing.T) {
	repo := newMemoryAuditRepo()
	audit := pendingAudit("TEST.NS", domain.DirectionBullish, nil, 30*time.Hour)
	require.NoError(t, repo.Insert(context.Background(), audit))

	auditor := NewAuditor(repo, &stubPrices{quote: &market.Quote{CurrentPrice: 100}})

	evaluated, err := auditor.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, evaluated)

	stored := repo.audits[audit.ID]
	assert.Equal(t, domain.AuditMissed, stored.Status)
	assert.Nil(t, stored.ActualChangePercent)
}

func TestReconcileFetchFailureStaysPending(t *testing.T) {
	repo := newMemoryAuditRepo()
	audit := pendingAudit("TEST.NS", domain.DirectionBullish, priceRef(100), 30*time.Hour)
	require.NoError(t, repo.Insert(context.Background(), audit))

	auditor := NewAuditor(repo, &stubPrices{quoteErr: errors.ErrUpstreamUnavailable})

	evaluated, err := auditor.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Zero(t, evaluated)
	assert.Equal(t, domain.AuditPending, repo.audits[audit.ID].Status)
}

func TestAccuracyCounts(t *testing.T) {
	repo := newMemoryAuditRepo()
	auditor := NewAuditor(repo, &stubPrices{})

	matchedAudit := pendingAudit("TEST.NS", domain.DirectionBullish, priceRef(100), time.Hour)
	matchedAudit.Status = domain.AuditMatched
	missedAudit := pendingAudit("TEST.NS", domain.DirectionBearish, priceRef(100), time.Hour)
	missedAudit.Status = domain.AuditMissed
	require.NoError(t, repo.Insert(context.Background(), matchedAudit))
	require.NoError(t, repo.Insert(context.Background(), missedAudit))

	matched, missed, err := auditor.Accuracy(context.Background(), "TEST.NS", 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, matched)
	assert.Equal(t, 1, missed)
}
