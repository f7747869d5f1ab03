package prediction

import (
	"context"
	"time"
)

// Repository defines the store for prediction audits
type Repository interface {
	Insert(ctx context.Context, a *Audit) error

	// PendingOldest returns up to limit pending audits, oldest first.
	// Horizon eligibility is checked by the caller.
	PendingOldest(ctx context.Context, limit int) ([]Audit, error)

	// RecordOutcome transitions a pending audit to matched or missed
	RecordOutcome(ctx context.Context, a *Audit) error

	// AccuracySince returns matched/missed counts for reporting
	AccuracySince(ctx context.Context, symbol string, since time.Time) (matched, missed int, err error)
}
