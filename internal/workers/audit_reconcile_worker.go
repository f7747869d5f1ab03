package workers

import (
	"context"
	"time"
)

// PredictionReconciler settles pending prediction audits against live prices
type PredictionReconciler interface {
	Reconcile(ctx context.Context) (int, error)
}

// AuditReconcileWorker periodically settles prediction audits whose
// horizon has elapsed
type AuditReconcileWorker struct {
	*BaseWorker
	reconciler PredictionReconciler
}

// NewAuditReconcileWorker creates the prediction audit worker
func NewAuditReconcileWorker(reconciler PredictionReconciler, interval time.Duration, enabled bool) *AuditReconcileWorker {
	return &AuditReconcileWorker{
		BaseWorker: NewBaseWorker("audit_reconcile", interval, enabled),
		reconciler: reconciler,
	}
}

// Run settles one batch of eligible audits
func (w *AuditReconcileWorker) Run(ctx context.Context) error {
	evaluated, err := w.reconciler.Reconcile(ctx)
	if err != nil {
		return err
	}

	if evaluated > 0 {
		w.Log().Infow("Prediction audits reconciled", "evaluated", evaluated)
	}
	return nil
}
