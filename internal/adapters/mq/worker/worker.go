// Package worker applies queued ingestion batches to the metric store and
// invalidates cached results of every player a batch touches.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/readiness/internal/domain/model"
	"github.com/okian/readiness/pkg/logger"
	"github.com/okian/readiness/pkg/metrics"
)

const (
	poolShutdownTimeout = 30 * time.Second
)

// Writer persists raw records.
type Writer interface {
	UpsertMetrics(ctx context.Context, records []model.MetricRecord) error
	UpsertSessions(ctx context.Context, sessions []model.SessionRecord) error
}

// Invalidator drops derived results for a player.
type Invalidator interface {
	InvalidatePlayer(ctx context.Context, playerID string) error
}

// Queue defines how workers receive batches.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.IngestBatch
}

// Worker applies batches until its context is cancelled or the queue closes.
type Worker interface {
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue       Queue
	writer      Writer
	invalidator Invalidator
	name        string
	counters    *counters
	onFailure   func(ctx context.Context, b model.IngestBatch, err error)

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

type counters struct {
	applied atomic.Int64
	failed  atomic.Int64
	records atomic.Int64
	active  atomic.Int64
}

// NewInMemoryWorker creates a worker.
func NewInMemoryWorker(q Queue, w Writer, inv Invalidator, opts ...Option) *InMemoryWorker {
	wk := &InMemoryWorker{
		queue:       q,
		writer:      w,
		invalidator: inv,
		name:        "worker",
		counters:    &counters{},
		shutdown:    make(chan struct{}),
		done:        make(chan struct{}),
		logger:      logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(wk)
	}
	if wk.name != "worker" {
		wk.logger = wk.logger.With(logger.String("worker", wk.name))
	}
	return wk
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	batches := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case b, ok := <-batches:
			if !ok {
				return
			}
			if err := w.processBatch(ctx, b); err != nil {
				w.logger.Error(ctx, "error applying batch", logger.String("batch_id", b.BatchID), logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker and waits for the current batch.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) processBatch(ctx context.Context, b model.IngestBatch) error { //nolint:gocritic // batches travel by value
	start := time.Now()
	metrics.UpdateWorkerActiveCount(int(w.counters.active.Add(1)))
	defer func() {
		metrics.UpdateWorkerActiveCount(int(w.counters.active.Add(-1)))
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := w.apply(ctx, b); err != nil {
		w.counters.failed.Add(1)
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "store_error")
		if w.onFailure != nil {
			w.onFailure(ctx, b, err)
		}
		return err
	}
	metrics.RecordRecordsIngested(string(b.Kind), b.Len())
	w.counters.records.Add(int64(b.Len()))

	// Invalidate after the write so a concurrent reader cannot re-cache stale data.
	for _, id := range b.PlayerIDs() {
		if err := w.invalidator.InvalidatePlayer(ctx, id); err != nil {
			metrics.RecordErrorByComponent("worker", "invalidate_error")
			w.logger.Warn(ctx, "cache invalidation failed", logger.String("player_id", id), logger.Error(err))
		}
	}
	w.counters.applied.Add(1)
	w.logger.Debug(ctx, "batch applied",
		logger.String("batch_id", b.BatchID),
		logger.String("kind", string(b.Kind)),
		logger.Int("records", b.Len()),
	)
	return nil
}

func (w *InMemoryWorker) apply(ctx context.Context, b model.IngestBatch) error { //nolint:gocritic // batches travel by value
	if len(b.Metrics) > 0 {
		if err := w.writer.UpsertMetrics(ctx, b.Metrics); err != nil {
			return fmt.Errorf("upsert metrics: %w", err)
		}
	}
	if len(b.Sessions) > 0 {
		if err := w.writer.UpsertSessions(ctx, b.Sessions); err != nil {
			return fmt.Errorf("upsert sessions: %w", err)
		}
	}
	return nil
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Workers        int   `json:"workers"`
	BatchesApplied int64 `json:"batches_applied"`
	BatchesFailed  int64 `json:"batches_failed"`
	RecordsWritten int64 `json:"records_written"`
	Active         int64 `json:"active"`
}

// Pool runs several workers on one queue.
type Pool struct {
	workers  []*InMemoryWorker
	queue    Queue
	counters *counters
	logger   logger.Logger
}

// NewPool creates a worker pool. A non-positive count uses one worker per CPU.
// opts apply to every worker.
func NewPool(workerCount int, q Queue, w Writer, inv Invalidator, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	c := &counters{}
	pool := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    q,
		counters: c,
		logger:   logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i)), withCounters(c)}, opts...)
		pool.workers[i] = NewInMemoryWorker(q, w, inv, wopts...)
	}
	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	return pool
}

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Stats returns the pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:        len(p.workers),
		BatchesApplied: p.counters.applied.Load(),
		BatchesFailed:  p.counters.failed.Load(),
		RecordsWritten: p.counters.records.Load(),
		Active:         p.counters.active.Load(),
	}
}

// Shutdown closes the queue, lets workers drain it and waits for them.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
