// Package service implements the query contract and the ingestion path the
// HTTP API depends on.
package service

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/okian/readiness/internal/adapters/cache"
	eventqueue "github.com/okian/readiness/internal/adapters/mq/queue"
	workerpool "github.com/okian/readiness/internal/adapters/mq/worker"
	"github.com/okian/readiness/internal/adapters/repository"
	"github.com/okian/readiness/internal/domain/alerting"
	"github.com/okian/readiness/internal/domain/dedupe"
	"github.com/okian/readiness/internal/domain/model"
	"github.com/okian/readiness/internal/domain/readiness"
	"github.com/okian/readiness/internal/domain/registry"
	"github.com/okian/readiness/internal/domain/risk"
	"github.com/okian/readiness/internal/domain/series"
	"github.com/okian/readiness/internal/domain/workload"
	"github.com/okian/readiness/pkg/logger"
	"github.com/okian/readiness/pkg/metrics"
)

const defaultMaxRangeDays = 366

// Service wires the analytics core to the store, the cache and the
// ingestion queue.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	cache     cache.Cache
	registry  *registry.Registry
	builder   *series.Builder
	scorer    *readiness.Scorer
	engine    *alerting.Engine
	predictor *risk.Predictor
	deduper   dedupe.Deduper
	queue     *eventqueue.InMemoryQueue
	pool      *workerpool.Pool

	// Configuration
	workload     workload.Options
	observe      alerting.ObserveOptions
	maxRangeDays int
	workerCount  int
	queueSize    int
	dedupeSize   int
	clock        func() time.Time

	// State
	started    bool
	statsHooks map[string]func() any
	genMu      sync.Mutex
	gens       map[string]uint64

	logger logger.Logger
}

// New constructs a Service. Components not supplied through options get
// their defaults; a missing store is replaced by an in-memory database on Start.
func New(opts ...Option) *Service {
	s := &Service{
		workload:     workload.DefaultOptions(),
		observe:      alerting.DefaultObserveOptions(),
		maxRangeDays: defaultMaxRangeDays,
		workerCount:  runtime.NumCPU(),
		queueSize:    1024,
		dedupeSize:   50000,
		clock:        time.Now,
		statsHooks:   make(map[string]func() any),
		gens:         make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.registry == nil {
		s.registry = registry.Default()
	}
	if s.cache == nil {
		s.cache = cache.NewMemory()
	}
	if s.scorer == nil {
		// defaults always validate
		s.scorer, _ = readiness.NewScorer(readiness.DefaultConfig(), s.registry)
	}
	if s.engine == nil {
		s.engine, _ = alerting.NewEngine(alerting.DefaultRules(alerting.DefaultDataGapDays))
	}
	if s.predictor == nil {
		s.predictor = risk.NewPredictor(risk.Baseline())
	}
	s.builder = series.NewBuilder(s.registry)
	return s
}

// Start opens missing components and starts the ingestion workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting readiness service...")

	if s.store == nil {
		st, err := repository.Open(repository.MemoryPath)
		if err != nil {
			return err
		}
		s.store = st
		s.logger.Warn(ctx, "no metric store configured, using in-memory database")
	}

	dd := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.deduper = dd
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	// a batch that failed to write must stay retryable
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.store, s,
		workerpool.WithFailureHandler(func(ctx context.Context, b model.IngestBatch, err error) {
			dd.Unrecord(ctx, b.BatchID)
			s.logger.Warn(ctx, "batch not stored, id released for retry",
				logger.String("batchID", b.BatchID),
				logger.Error(err),
			)
		}))
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "readiness service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("registryEntries", s.registry.Len()),
		logger.Int("alertRules", len(s.engine.Rules())),
	)
	return nil
}

// Stop drains the ingestion queue and closes the store and cache.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping readiness service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Error(ctx, "worker pool shutdown failed", logger.Error(err))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error(ctx, "closing metric store failed", logger.Error(err))
	}
	if err := s.cache.Close(); err != nil {
		s.logger.Error(ctx, "closing cache failed", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "readiness service stopped")
}

// RegisterStats adds a named section to GetStats.
func (s *Service) RegisterStats(name string, fn func() any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statsHooks[name] = fn
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":      s.started,
		"workerCount":  s.workerCount,
		"queueSize":    s.queueSize,
		"dedupeSize":   s.dedupeSize,
		"maxRangeDays": s.maxRangeDays,
		"modelVersion": risk.ModelVersion,
	}

	if s.started {
		queueLen := s.queue.Len()
		entries := s.cache.Len(ctx)
		pool := s.pool.Stats()

		stats["queueLength"] = queueLen
		stats["queueCapacity"] = s.queue.Capacity()
		stats["dedupeEntries"] = s.deduper.Size()
		stats["cacheEntries"] = entries
		stats["workers"] = pool

		metrics.UpdateCacheEntries(entries)
		metrics.UpdateWorkerCount(pool.Workers)
	}

	names := make([]string, 0, len(s.statsHooks))
	for name := range s.statsHooks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		stats[name] = s.statsHooks[name]()
	}
	return stats
}

// ListPlayers returns every player known to the store.
func (s *Service) ListPlayers(ctx context.Context) ([]string, error) {
	st, err := s.reader()
	if err != nil {
		return nil, err
	}
	return st.ListPlayers(ctx)
}

// InvalidatePlayer drops cached results for a player. Ingestion workers
// call it after every write.
func (s *Service) InvalidatePlayer(ctx context.Context, playerID string) error {
	s.genMu.Lock()
	s.gens[playerID]++
	s.genMu.Unlock()
	return s.cache.InvalidatePlayer(ctx, playerID)
}

// storeIfCurrent caches b unless an ingestion for the player landed after
// gen was read. The check and the write share genMu with the generation
// bump, so an invalidation either rejects the write or runs after it.
func (s *Service) storeIfCurrent(ctx context.Context, k cache.Key, gen uint64, b []byte) bool {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.gens[k.PlayerID] != gen {
		return false
	}
	s.cache.Set(ctx, k, b)
	return true
}

func (s *Service) generation(playerID string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.gens[playerID]
}

func (s *Service) log() logger.Logger {
	return s.logger
}

func (s *Service) reader() (repository.Reader, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.store == nil {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

func (s *Service) today() time.Time {
	return s.clock().UTC()
}
