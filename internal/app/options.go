package service

import (
	"time"

	"github.com/okian/readiness/internal/adapters/cache"
	"github.com/okian/readiness/internal/adapters/repository"
	"github.com/okian/readiness/internal/domain/alerting"
	"github.com/okian/readiness/internal/domain/readiness"
	"github.com/okian/readiness/internal/domain/registry"
	"github.com/okian/readiness/internal/domain/risk"
	"github.com/okian/readiness/internal/domain/workload"
	"github.com/okian/readiness/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the metric store. The service owns it and closes it on Stop.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		s.store = st
	}
}

// WithCache sets the result cache.
func WithCache(c cache.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithRegistry sets the metric registry used for aggregation and normalization.
func WithRegistry(r *registry.Registry) Option {
	return func(s *Service) {
		s.registry = r
	}
}

// WithScorer sets the readiness scorer.
func WithScorer(sc *readiness.Scorer) Option {
	return func(s *Service) {
		s.scorer = sc
	}
}

// WithAlertEngine sets the alert engine.
func WithAlertEngine(e *alerting.Engine) Option {
	return func(s *Service) {
		s.engine = e
	}
}

// WithObserveOptions tunes alert observation windows.
func WithObserveOptions(o alerting.ObserveOptions) Option {
	return func(s *Service) {
		s.observe = o
	}
}

// WithPredictor sets the risk predictor.
func WithPredictor(p *risk.Predictor) Option {
	return func(s *Service) {
		s.predictor = p
	}
}

// WithWorkloadOptions sets the default workload windows.
func WithWorkloadOptions(o workload.Options) Option {
	return func(s *Service) {
		s.workload = o
	}
}

// WithMaxRangeDays bounds the length of requested date ranges.
func WithMaxRangeDays(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRangeDays = n
		}
	}
}

// WithClock injects the source of "today".
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.clock = now
		}
	}
}

// WithWorkerCount sets the number of ingestion workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the ingestion queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the number of remembered batch ids.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
