package worker

import (
	"context"

	"github.com/okian/readiness/internal/domain/model"
	"github.com/okian/readiness/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithFailureHandler sets a callback run after a batch could not be
// written, e.g. to let the batch id be submitted again.
func WithFailureHandler(fn func(ctx context.Context, b model.IngestBatch, err error)) Option {
	return func(w *InMemoryWorker) {
		w.onFailure = fn
	}
}

func withCounters(c *counters) Option {
	return func(w *InMemoryWorker) {
		w.counters = c
	}
}
