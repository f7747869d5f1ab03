package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"marketpulse/internal/domain/prediction"
)

// Compile-time check
var _ prediction.Repository = (*PredictionRepository)(nil)

// PredictionRepository implements prediction.Repository using sqlx
type PredictionRepository struct {
	db *sqlx.DB
}

// NewPredictionRepository creates a new prediction audit repository
func NewPredictionRepository(db *sqlx.DB) *PredictionRepository {
	return &PredictionRepository{db: db}
}

// Insert stores a new prediction audit (status pending)
func (r *PredictionRepository) Insert(ctx context.Context, a *prediction.Audit) error {
	query := `
		INSERT INTO prediction_audits (
			id, symbol, prediction_timestamp, horizon_hours,
			predicted_direction, predicted_change_percent, confidence,
			price_at_prediction, status, actual_direction,
			actual_change_percent, evaluated_at, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)`

	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.Symbol, a.PredictionTimestamp, a.HorizonHours,
		a.PredictedDirection, a.PredictedChangePercent, a.Confidence,
		a.PriceAtPrediction, a.Status, a.ActualDirection,
		a.ActualChangePercent, a.EvaluatedAt, a.CreatedAt,
	)

	return err
}

// PendingOldest returns up to limit pending audits, oldest first
func (r *PredictionRepository) PendingOldest(ctx context.Context, limit int) ([]prediction.Audit, error) {
	var audits []prediction.Audit

	query := `
		SELECT * FROM prediction_audits
		WHERE status = $1
		ORDER BY prediction_timestamp ASC
		LIMIT $2`

	err := r.db.SelectContext(ctx, &audits, query, prediction.AuditPending, limit)
	if err != nil {
		return nil, err
	}

	return audits, nil
}

// RecordOutcome transitions a pending audit to its final status
func (r *PredictionRepository) RecordOutcome(ctx context.Context, a *prediction.Audit) error {
	query := `
		UPDATE prediction_audits SET
			status = $1,
			actual_direction = $2,
			actual_change_percent = $3,
			evaluated_at = $4
		WHERE id = $5 AND status = $6`

	_, err := r.db.ExecContext(ctx, query,
		a.Status, a.ActualDirection, a.ActualChangePercent, a.EvaluatedAt,
		a.ID, prediction.AuditPending,
	)

	return err
}

// AccuracySince returns matched/missed counts for a symbol since a time
func (r *PredictionRepository) AccuracySince(ctx context.Context, symbol string, since time.Time) (int, int, error) {
	var row struct {
		Matched int `db:"matched"`
		Missed  int `db:"missed"`
	}

	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'matched') AS matched,
			COUNT(*) FILTER (WHERE status = 'missed') AS missed
		FROM prediction_audits
		WHERE symbol = $1 AND prediction_timestamp >= $2`

	err := r.db.GetContext(ctx, &row, query, symbol, since)
	if err != nil {
		return 0, 0, err
	}

	return row.Matched, row.Missed, nil
}
