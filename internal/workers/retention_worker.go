package workers

import (
	"context"
	"time"
)

// MentionPruner deletes scored mentions older than the retention window
type MentionPruner interface {
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

// RetentionWorker trims old scored mentions so the mention store does not
// grow without bound
type RetentionWorker struct {
	*BaseWorker
	pruner    MentionPruner
	retention time.Duration
}

// NewRetentionWorker creates the retention cleanup worker
func NewRetentionWorker(pruner MentionPruner, retention, interval time.Duration, enabled bool) *RetentionWorker {
	return &RetentionWorker{
		BaseWorker: NewBaseWorker("retention", interval, enabled),
		pruner:     pruner,
		retention:  retention,
	}
}

// Run deletes mentions past the retention window
func (w *RetentionWorker) Run(ctx context.Context) error {
	deleted, err := w.pruner.Prune(ctx, w.retention)
	if err != nil {
		return err
	}

	if deleted > 0 {
		w.Log().Infow("Retention cleanup complete", "deleted", deleted, "retention", w.retention)
	}
	return nil
}
