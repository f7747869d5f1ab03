package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"marketpulse/internal/domain/alert"
)

// Compile-time check
var _ alert.Repository = (*AlertRepository)(nil)

// AlertRepository implements alert.Repository using sqlx
type AlertRepository struct {
	db *sqlx.DB
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *sqlx.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// ActiveRules returns all active rules for a symbol
func (r *AlertRepository) ActiveRules(ctx context.Context, symbol string) ([]alert.Rule, error) {
	var rules []alert.Rule

	query := `
		SELECT * FROM alert_rules
		WHERE symbol = $1 AND is_active = true
		ORDER BY created_at ASC`

	err := r.db.SelectContext(ctx, &rules, query, symbol)
	if err != nil {
		return nil, err
	}

	return rules, nil
}

// UpdateLastTriggered records the last successful trigger time for a rule
func (r *AlertRepository) UpdateLastTriggered(ctx context.Context, ruleID uuid.UUID, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE alert_rules SET last_triggered_at = $1 WHERE id = $2`,
		at, ruleID,
	)
	return err
}

// InsertEvent stores a new dispatch event (status queued)
func (r *AlertRepository) InsertEvent(ctx context.Context, e *alert.Event) error {
	query := `
		INSERT INTO alert_events (
			id, rule_id, owner, symbol, channel, status,
			summary, payload, created_at, sent_at, error
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)`

	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.RuleID, e.Owner, e.Symbol, e.Channel, e.Status,
		e.Summary, e.Payload, e.CreatedAt, e.SentAt, e.Error,
	)

	return err
}

// MarkEventSent transitions an event to sent
func (r *AlertRepository) MarkEventSent(ctx context.Context, eventID uuid.UUID, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE alert_events SET status = $1, sent_at = $2 WHERE id = $3`,
		alert.EventSent, at, eventID,
	)
	return err
}

// MarkEventFailed transitions an event to failed with an error message
func (r *AlertRepository) MarkEventFailed(ctx context.Context, eventID uuid.UUID, errMsg string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE alert_events SET status = $1, error = $2 WHERE id = $3`,
		alert.EventFailed, errMsg, eventID,
	)
	return err
}

// EventsForSymbol returns recent dispatch events for a symbol, newest first
func (r *AlertRepository) EventsForSymbol(ctx context.Context, symbol string, limit int) ([]alert.Event, error) {
	var events []alert.Event

	query := `
		SELECT * FROM alert_events
		WHERE symbol = $1
		ORDER BY created_at DESC
		LIMIT $2`

	err := r.db.SelectContext(ctx, &events, query, symbol, limit)
	if err != nil {
		return nil, err
	}

	return events, nil
}
