package loadgen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/readiness/internal/domain/model"
	"github.com/okian/readiness/internal/domain/types"
	"github.com/okian/readiness/pkg/logger"
)

// maxDays keeps every generated range inside the service's query limit.
const maxDays = 366

// ErrViolations is returned when results break an invariant.
var ErrViolations = errors.New("invariant violations")

// batchNamespace seeds deterministic batch ids so reruns with the same seed
// are recognised as duplicates.
var batchNamespace = uuid.MustParse("5b0e7a4c-9d2f-4c1e-8a53-2f7c6d1b9e04")

// ingestResponse mirrors the ingestion acknowledgement.
type ingestResponse struct {
	BatchID   string `json:"batch_id"`
	Records   int    `json:"records"`
	Duplicate bool   `json:"duplicate"`
}

// Run executes a complete load run: health check, generation, ingestion,
// settling and verification.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Named("loadgen")

	if cfg.End.IsZero() {
		cfg.End = time.Now().UTC().AddDate(0, 0, -1)
	}
	if cfg.Players <= 0 || cfg.Days <= 0 || cfg.Days > maxDays {
		return stats, fmt.Errorf("players must be positive and days within [1,%d]", maxDays)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	c := newClient(cfg)

	log.Info(ctx, "starting load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("players", cfg.Players),
		logger.Int("days", cfg.Days),
		logger.Int("workers", cfg.Workers),
		logger.Float64("rps", cfg.RPS),
	)

	if _, err := c.get(ctx, "/healthz", nil, nil); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	squad := Generate(cfg.Players, cfg.Days, cfg.End, cfg.Seed)
	stats.Players = len(squad.Players)
	for _, p := range squad.Players {
		stats.MetricRecords += len(p.Metrics)
		stats.Sessions += len(p.Sessions)
	}

	if err := submit(ctx, c, cfg, squad, stats); err != nil {
		return stats, fmt.Errorf("submission failed: %w", err)
	}
	if err := settle(ctx, c, cfg, squad); err != nil {
		return stats, fmt.Errorf("ingestion did not settle: %w", err)
	}
	verr := verify(ctx, c, cfg, squad, stats)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	log.Info(ctx, "final statistics",
		logger.Int("players", stats.Players),
		logger.Int("metricRecords", stats.MetricRecords),
		logger.Int("sessions", stats.Sessions),
		logger.Int("batchesAccepted", stats.BatchesAccepted),
		logger.Int("batchesDuplicate", stats.BatchesDuplicate),
		logger.Int("batchesFailed", stats.BatchesFailed),
		logger.Int("queries", stats.Queries),
		logger.Int("alerts", stats.Alerts),
		logger.Int("violations", stats.Violations),
		logger.Duration("duration", stats.Duration),
	)
	return stats, verr
}

// submit posts one metrics and one sessions batch per player.
func submit(ctx context.Context, c *client, cfg *Config, squad Squad, stats *Stats) error {
	var submitted, accepted, duplicate, failed atomic.Int64

	post := func(ctx context.Context, path string, body any) error {
		submitted.Add(1)
		var ack ingestResponse
		status, err := c.post(ctx, path, body, &ack)
		switch {
		case err != nil:
			failed.Add(1)
			return err
		case status == http.StatusOK && ack.Duplicate:
			duplicate.Add(1)
		default:
			accepted.Add(1)
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, p := range squad.Players {
		if len(p.Metrics) > 0 {
			body := map[string]any{"batch_id": batchID(cfg.Seed, p.ID, "metrics"), "records": p.Metrics}
			g.Go(func() error { return post(gctx, "/ingest/metrics", body) })
		}
		if len(p.Sessions) > 0 {
			body := map[string]any{"batch_id": batchID(cfg.Seed, p.ID, "sessions"), "sessions": p.Sessions}
			g.Go(func() error { return post(gctx, "/ingest/sessions", body) })
		}
	}
	err := g.Wait()

	stats.BatchesSubmitted = int(submitted.Load())
	stats.BatchesAccepted = int(accepted.Load())
	stats.BatchesDuplicate = int(duplicate.Load())
	stats.BatchesFailed = int(failed.Load())
	return err
}

func batchID(seed uint64, playerID, kind string) string {
	return uuid.NewSHA1(batchNamespace, []byte(fmt.Sprintf("%d/%s/%s", seed, playerID, kind))).String()
}

// settle polls completeness until every player's stored day count matches
// what was generated.
func settle(ctx context.Context, c *client, cfg *Config, squad Squad) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.Settle)
	defer cancel()

	pending := make(map[string]map[string]int, len(squad.Players))
	for _, p := range squad.Players {
		if want := expectedDays(p); len(want) > 0 {
			pending[p.ID] = want
		}
	}
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		for id, want := range pending {
			for family, days := range want {
				var rep types.CompletenessReport
				q := rangeQuery(squad)
				q.Set("family", family)
				if _, err := c.get(ctx, "/players/"+id+"/completeness", q, &rep); err == nil && rep.DaysWithData == days {
					delete(want, family)
				}
			}
			if len(want) == 0 {
				delete(pending, id)
			}
		}
		if len(pending) == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%d players still pending: %w", len(pending), ctx.Err())
		case <-ticker.C:
		}
	}
}

// expectedDays returns, per family, how many distinct days of data a
// player should report once its batches are stored.
func expectedDays(p Player) map[string]int {
	seen := make(map[string]map[string]bool)
	mark := func(family, date string) {
		if seen[family] == nil {
			seen[family] = make(map[string]bool)
		}
		seen[family][date] = true
	}
	for _, s := range p.Sessions {
		mark(model.FamilyTraining, s.Date)
	}
	for _, m := range p.Metrics {
		mark(m.Family, m.Date)
	}
	out := make(map[string]int, len(seen))
	for family, days := range seen {
		out[family] = len(days)
	}
	return out
}

func rangeQuery(squad Squad) url.Values {
	q := url.Values{}
	q.Set("from", model.FormatDate(squad.From))
	q.Set("to", model.FormatDate(squad.To))
	return q
}
