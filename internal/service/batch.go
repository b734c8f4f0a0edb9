package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/valterpcjria-cloud/doi-smart/internal/domain"
	"github.com/valterpcjria-cloud/doi-smart/internal/logging"
)

// ProgressFunc is called synchronously after each record with the number of
// records completed so far, the batch size, and that record's log lines.
type ProgressFunc func(current, total int, logs []string)

// BatchCoordinator drives the transmitter over a batch, one record at a time.
type BatchCoordinator struct {
	transmitter *Transmitter
	log         *zap.Logger
}

func NewBatchCoordinator(t *Transmitter, log *zap.Logger) *BatchCoordinator {
	return &BatchCoordinator{transmitter: t, log: logging.OrNop(log)}
}

// TransmitBatch processes every record in input order and returns an outcome for each.
// A record failure never stops the batch. Repeated IDs are transmitted once.
func (c *BatchCoordinator) TransmitBatch(ctx context.Context, records []domain.Record, onProgress ProgressFunc) domain.BatchResult {
	unique := dedupe(records)
	total := len(unique)
	result := domain.NewBatchResult(total)
	batchID := uuid.NewString()

	c.log.Info("batch transmission started", zap.String("batch_id", batchID), zap.Int("total", total))

	for i, rec := range unique {
		res := c.transmitter.Transmit(ctx, rec)
		result.Add(rec.ID, res)

		fields := []zap.Field{
			zap.String("batch_id", batchID),
			zap.String("record_id", rec.ID),
			zap.Bool("success", res.Success),
		}
		if res.Success {
			c.log.Info("record transmitted", append(fields, zap.String("receipt", res.Receipt))...)
		} else {
			c.log.Warn("record transmission failed", append(fields, zap.String("kind", string(res.Kind)), zap.String("error", res.Error))...)
		}

		if onProgress != nil {
			onProgress(i+1, total, res.Logs)
		}
	}

	s := result.Summary()
	c.log.Info("batch transmission finished",
		zap.String("batch_id", batchID),
		zap.Int("succeeded", s.Succeeded),
		zap.Int("failed", s.Failed),
	)
	return result
}

func dedupe(records []domain.Record) []domain.Record {
	seen := make(map[string]struct{}, len(records))
	out := make([]domain.Record, 0, len(records))
	for _, r := range records {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}
