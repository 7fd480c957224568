// Command loadgen seeds a running readiness service with a synthetic squad
// and verifies the derived views it serves back.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/readiness/internal/domain/model"
	"github.com/okian/readiness/internal/loadgen"
	"github.com/okian/readiness/pkg/logger"
)

const (
	defaultPlayers = 24
	defaultDays    = 56
	defaultWorkers = 2 // multiplier for runtime.NumCPU()
	defaultTimeout = 30 * time.Second
	defaultSettle  = 2 * time.Minute
	defaultRunTime = 10 * time.Minute
)

func main() {
	var (
		baseURL = flag.String("url", "http://localhost:9080", "Base URL of the service")
		players = flag.Int("players", defaultPlayers, "Number of synthetic players")
		days    = flag.Int("days", defaultDays, "Days of history per player (max 366)")
		end     = flag.String("end", "", "Last generated day as YYYY-MM-DD (default: yesterday)")
		seed    = flag.Uint64("seed", 1, "Generator seed; reruns with the same seed resubmit identical batches")
		workers = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent requests")
		rps     = flag.Float64("rps", 0, "Request rate limit (0 disables pacing)")
		timeout = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		settle  = flag.Duration("settle", defaultSettle, "How long to wait for ingestion to land")
		format  = flag.String("log-format", "text", "Log format (text or json)")
		verbose = flag.Bool("verbose", false, "Log every invariant violation")
		help    = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		fmt.Fprintln(os.Stderr, "Usage: loadgen [flags]")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Generates steady, spike, rested and sparse players, ingests their")
		fmt.Fprintln(os.Stderr, "history and checks readiness, workload, alerts and risk responses.")
		fmt.Fprintln(os.Stderr)
		flag.PrintDefaults()
		return
	}

	if err := logger.Init(logger.WithFormat(*format)); err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		os.Exit(1)
	}

	cfg := &loadgen.Config{
		BaseURL: *baseURL,
		Players: *players,
		Days:    *days,
		Seed:    *seed,
		Workers: *workers,
		RPS:     *rps,
		Timeout: *timeout,
		Settle:  *settle,
		Verbose: *verbose,
	}
	if *end != "" {
		d, err := model.ParseDate(*end)
		if err != nil {
			fmt.Fprintln(os.Stderr, "invalid -end:", err)
			os.Exit(2)
		}
		cfg.End = d
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTime)
	defer cancel()

	if _, err := loadgen.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "load run failed", logger.Error(err))
		cancel()
		stop()
		os.Exit(1)
	}
}
