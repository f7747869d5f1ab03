package alert

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the store for alert rules and dispatch events
type Repository interface {
	// Rule operations (read + trigger bookkeeping only; CRUD is external)
	ActiveRules(ctx context.Context, symbol string) ([]Rule, error)
	UpdateLastTriggered(ctx context.Context, ruleID uuid.UUID, at time.Time) error

	// Event lifecycle
	InsertEvent(ctx context.Context, e *Event) error
	MarkEventSent(ctx context.Context, eventID uuid.UUID, at time.Time) error
	MarkEventFailed(ctx context.Context, eventID uuid.UUID, errMsg string) error
	EventsForSymbol(ctx context.Context, symbol string, limit int) ([]Event, error)
}

// RecipientResolver maps a rule owner to a registered email address.
// User management is external; the evaluator only needs this lookup.
type RecipientResolver interface {
	EmailFor(ctx context.Context, owner string) (string, error)
}

// MailSender is the outbound email transport collaborator
type MailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}
