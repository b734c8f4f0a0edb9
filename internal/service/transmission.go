package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/valterpcjria-cloud/doi-smart/internal/domain"
	"github.com/valterpcjria-cloud/doi-smart/internal/logging"
)

// Skip reasons reported for requested IDs that were not transmitted.
const (
	SkipNotFound    = "not found"
	SkipTransmitted = "already transmitted"
)

// TransmissionReport is everything a caller learns from one transmission run.
type TransmissionReport struct {
	Batch   domain.BatchResult
	Summary domain.BatchSummary
	Skipped map[string]string
	// Records is the store's record list after reconciliation.
	Records []domain.Record
	// PersistenceErr is set when outcomes are known but some could not be stored.
	PersistenceErr *PersistenceError
}

// TransmissionService selects records, runs the batch and reconciles the store.
type TransmissionService struct {
	records     RecordStore
	coordinator *BatchCoordinator
	reconciler  *StatusReconciler
	log         *zap.Logger
}

func NewTransmissionService(records RecordStore, c *BatchCoordinator, r *StatusReconciler, log *zap.Logger) (*TransmissionService, error) {
	if records == nil {
		return nil, errors.New("record store is required")
	}
	if c == nil || r == nil {
		return nil, errors.New("coordinator and reconciler are required")
	}
	return &TransmissionService{records: records, coordinator: c, reconciler: r, log: logging.OrNop(log)}, nil
}

// Transmit runs ids in the given order. TRANSMITTED records are never selected again.
// Only store read failures are returned as errors; per-record outcomes live in the report.
// Once selection is done the batch and its reconciliation ignore cancellation of ctx.
func (s *TransmissionService) Transmit(ctx context.Context, ids []string, onProgress ProgressFunc) (*TransmissionReport, error) {
	batch := make([]domain.Record, 0, len(ids))
	skipped := make(map[string]string)

	for _, id := range ids {
		rec, err := s.records.Get(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrRecordNotFound) {
				skipped[id] = SkipNotFound
				continue
			}
			return nil, fmt.Errorf("load record %s: %w", id, err)
		}
		if rec.Status == domain.StatusTransmitted {
			skipped[id] = SkipTransmitted
			continue
		}
		batch = append(batch, *rec)
	}

	ctx = context.WithoutCancel(ctx)
	result := s.coordinator.TransmitBatch(ctx, batch, onProgress)
	report := &TransmissionReport{
		Batch:   result,
		Summary: result.Summary(),
		Skipped: skipped,
	}

	if err := s.reconciler.ApplyResults(ctx, result); err != nil {
		var perr *PersistenceError
		if !errors.As(err, &perr) {
			perr = &PersistenceError{IDs: result.Order, Err: err}
		}
		report.PersistenceErr = perr
	}

	records, err := s.records.List(ctx)
	if err != nil {
		s.log.Error("refresh after transmission failed", zap.Error(err))
		return report, fmt.Errorf("refresh records: %w", err)
	}
	report.Records = records
	return report, nil
}
