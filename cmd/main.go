package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/readiness/internal/adapters/cache"
	"github.com/okian/readiness/internal/adapters/http/api"
	"github.com/okian/readiness/internal/adapters/http/site"
	"github.com/okian/readiness/internal/adapters/http/swagger"
	"github.com/okian/readiness/internal/adapters/repository"
	service "github.com/okian/readiness/internal/app"
	"github.com/okian/readiness/internal/config"
	"github.com/okian/readiness/internal/scheduler"
	"github.com/okian/readiness/pkg/logger"
	"github.com/okian/readiness/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		// the logger may not be available yet
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		return fmt.Errorf("failed to set log level: %w", err)
	}
	log := logger.Get()

	svc, err := newService(cfg)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer svc.Stop()

	sched, err := newScheduler(cfg, svc)
	if err != nil {
		return err
	}
	if sched != nil {
		sched.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			sched.Stop(stopCtx)
		}()
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, cfg, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("db_path", cfg.DBPath))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// newService builds the service and its adapters from cfg. The service is
// returned unstarted.
func newService(cfg *config.Config) (*service.Service, error) {
	reg, err := cfg.Registry()
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	scorer, err := cfg.Scorer(reg)
	if err != nil {
		return nil, fmt.Errorf("readiness scorer: %w", err)
	}
	engine, err := cfg.AlertEngine()
	if err != nil {
		return nil, fmt.Errorf("alert engine: %w", err)
	}
	observe, err := cfg.ObserveOptions()
	if err != nil {
		return nil, fmt.Errorf("alert observation: %w", err)
	}
	predictor, err := cfg.Predictor()
	if err != nil {
		return nil, fmt.Errorf("risk model: %w", err)
	}

	c, err := cache.New(cfg.CacheBackend,
		cache.WithMaxEntries(cfg.CacheMaxEntries),
		cache.WithTTL(cfg.CacheTTL),
		cache.WithRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB),
	)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}

	st, err := repository.Open(cfg.DBPath)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("metric store: %w", err)
	}

	return service.New(
		service.WithLogger(logger.Get()),
		service.WithStore(st),
		service.WithCache(c),
		service.WithRegistry(reg),
		service.WithScorer(scorer),
		service.WithAlertEngine(engine),
		service.WithObserveOptions(observe),
		service.WithPredictor(predictor),
		service.WithWorkloadOptions(cfg.WorkloadOptions()),
		service.WithMaxRangeDays(cfg.MaxRangeDays),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
	), nil
}

// newScheduler registers the nightly refresh job. It returns nil when the
// refresh is disabled.
func newScheduler(cfg *config.Config, svc *service.Service) (*scheduler.Scheduler, error) {
	if !cfg.RefreshEnabled {
		return nil, nil
	}
	sched := scheduler.New(cfg.RefreshTimeout)
	job := scheduler.NewRefreshJob(svc,
		scheduler.WithSchedule(cfg.RefreshSchedule),
		scheduler.WithLookbackDays(cfg.RefreshLookbackDays),
		scheduler.WithConcurrency(cfg.RefreshConcurrency),
	)
	if err := sched.AddJob(job); err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	svc.RegisterStats("refresh", func() any { return sched.GetJobStats() })
	return sched, nil
}

// newHandler wires every route onto a fresh mux.
func newHandler(ctx context.Context, cfg *config.Config, svc *service.Service) http.Handler {
	mux := http.NewServeMux()
	site.Register(ctx, mux)
	swagger.Register(ctx, mux)
	api.NewServer(svc, api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst)).Register(mux)
	return mux
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics copies gauges out of the service stats.
func updateServiceMetrics(svc *service.Service) {
	stats := svc.GetStats()

	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerCount(workerCount)
	}
	if entries, ok := stats["cacheEntries"].(int); ok {
		metrics.UpdateCacheEntries(entries)
	}
}
