package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/valterpcjria-cloud/doi-smart/internal/domain"
	"github.com/valterpcjria-cloud/doi-smart/internal/logging"
)

// PersistenceError lists the records whose outcome is known but could not be stored.
// The remote side may already consider those records transmitted.
type PersistenceError struct {
	IDs []string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist status for %d record(s) [%s]: %v", len(e.IDs), strings.Join(e.IDs, ", "), e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{domain.ErrPersistence, e.Err}
}

// StatusReconciler writes batch outcomes back onto the record store.
type StatusReconciler struct {
	store RecordStore
	log   *zap.Logger
}

func NewStatusReconciler(store RecordStore, log *zap.Logger) (*StatusReconciler, error) {
	if store == nil {
		return nil, errors.New("record store is required")
	}
	return &StatusReconciler{store: store, log: logging.OrNop(log)}, nil
}

// ApplyResults persists every outcome, one call per record, and only then reports
// the records that failed as a *PersistenceError.
func (r *StatusReconciler) ApplyResults(ctx context.Context, batch domain.BatchResult) error {
	var (
		failed []string
		errs   error
	)
	for _, id := range batch.Order {
		res := batch.Results[id]
		status, receipt, errMsg := targetStatus(res)

		if err := r.store.UpdateStatus(ctx, id, status, receipt, errMsg); err != nil {
			reconcileFailures.Inc()
			r.log.Error("status update failed",
				zap.String("record_id", id),
				zap.String("status", string(status)),
				zap.Error(err),
			)
			failed = append(failed, id)
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", id, err))
		}
	}
	if len(failed) > 0 {
		return &PersistenceError{IDs: failed, Err: errs}
	}
	return nil
}

func targetStatus(res domain.TransmissionResult) (domain.Status, string, string) {
	if res.Success {
		return domain.StatusTransmitted, res.Receipt, ""
	}
	return domain.StatusError, "", res.Error
}
