package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	eventqueue "github.com/okian/readiness/internal/adapters/mq/queue"
	"github.com/okian/readiness/internal/domain/model"
	"github.com/okian/readiness/pkg/logger"
	"github.com/okian/readiness/pkg/metrics"
)

// IngestResult reports what happened to a submitted batch.
type IngestResult struct {
	BatchID   string `json:"batch_id"`
	Records   int    `json:"records"`
	Duplicate bool   `json:"duplicate"`
}

// SubmitMetrics validates and enqueues metric records. An empty batchID is
// replaced by a random one, which disables deduplication for the batch.
func (s *Service) SubmitMetrics(ctx context.Context, batchID string, records []model.MetricRecord) (IngestResult, error) {
	return s.submit(ctx, model.IngestBatch{BatchID: batchID, Kind: model.BatchMetrics, Metrics: records})
}

// SubmitSessions validates and enqueues training sessions.
func (s *Service) SubmitSessions(ctx context.Context, batchID string, sessions []model.SessionRecord) (IngestResult, error) {
	return s.submit(ctx, model.IngestBatch{BatchID: batchID, Kind: model.BatchSessions, Sessions: sessions})
}

func (s *Service) submit(ctx context.Context, b model.IngestBatch) (IngestResult, error) { //nolint:gocritic // batches travel by value
	s.mu.RLock()
	started, q, dd := s.started, s.queue, s.deduper
	s.mu.RUnlock()
	if !started {
		return IngestResult{}, ErrNotStarted
	}

	if err := b.Validate(); err != nil {
		metrics.RecordBatchRejected()
		return IngestResult{}, err
	}
	for i := range b.Metrics {
		b.Metrics[i].Date = model.Day(b.Metrics[i].Date)
	}
	for i := range b.Sessions {
		b.Sessions[i].Date = model.Day(b.Sessions[i].Date)
	}
	if b.BatchID == "" {
		b.BatchID = uuid.NewString()
	}
	res := IngestResult{BatchID: b.BatchID, Records: b.Len()}

	if dd.SeenAndRecord(ctx, b.BatchID) {
		metrics.RecordBatchDuplicate()
		s.log().Debug(ctx, "duplicate batch skipped", logger.String("batchID", b.BatchID))
		res.Duplicate = true
		return res, nil
	}

	if err := q.Enqueue(ctx, b); err != nil {
		dd.Unrecord(ctx, b.BatchID)
		metrics.RecordBatchRejected()
		switch {
		case errors.Is(err, eventqueue.ErrFull):
			return res, fmt.Errorf("%w: %d batches pending", ErrBackpressure, q.Len())
		case errors.Is(err, eventqueue.ErrClosed):
			return res, ErrNotStarted
		default:
			return res, err
		}
	}

	s.log().Debug(ctx, "batch enqueued",
		logger.String("batchID", b.BatchID),
		logger.String("kind", string(b.Kind)),
		logger.Int("records", b.Len()),
	)
	return res, nil
}
