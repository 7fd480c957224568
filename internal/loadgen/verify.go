package loadgen

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/okian/readiness/internal/domain/alerting"
	"github.com/okian/readiness/internal/domain/model"
	"github.com/okian/readiness/internal/domain/risk"
	"github.com/okian/readiness/internal/domain/types"
	"github.com/okian/readiness/pkg/logger"
)

// maxLoggedViolations caps violation logging outside verbose mode.
const maxLoggedViolations = 20

// verifier collects invariant violations across concurrent player checks.
type verifier struct {
	mu         sync.Mutex
	violations []string
	queries    int
	alerts     int
}

func (v *verifier) failf(playerID, format string, args ...any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.violations = append(v.violations, playerID+": "+fmt.Sprintf(format, args...))
}

func (v *verifier) count(queries, alerts int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.queries += queries
	v.alerts += alerts
}

// verify queries every derived view of every player and checks the
// invariants the service promises.
func verify(ctx context.Context, c *client, cfg *Config, squad Squad, stats *Stats) error {
	v := &verifier{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, p := range squad.Players {
		g.Go(func() error {
			return v.player(gctx, c, squad, p)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	stats.Queries = v.queries
	stats.Alerts = v.alerts
	stats.Violations = len(v.violations)

	log := logger.Named("loadgen")
	for i, msg := range v.violations {
		if !cfg.Verbose && i >= maxLoggedViolations {
			break
		}
		log.Warn(ctx, "invariant violated", logger.String("detail", msg))
	}
	if len(v.violations) > 0 {
		return fmt.Errorf("%w: %d found", ErrViolations, len(v.violations))
	}
	return nil
}

func (v *verifier) player(ctx context.Context, c *client, squad Squad, p Player) error {
	days := model.DaysBetween(squad.From, squad.To)
	base := "/players/" + p.ID
	queries := 0

	if len(p.Metrics) == 0 && len(p.Sessions) == 0 {
		queries++
		_, err := c.get(ctx, base+"/readiness", rangeQuery(squad), nil)
		if !errors.Is(err, ErrStatus) {
			v.failf(p.ID, "player without data should be unknown, got %v", err)
		}
		v.count(queries, 0)
		return nil
	}

	var readiness []types.ReadinessPoint
	queries++
	if _, err := c.get(ctx, base+"/readiness", rangeQuery(squad), &readiness); err != nil {
		return err
	}
	if len(readiness) != days {
		v.failf(p.ID, "readiness has %d points, want %d", len(readiness), days)
	}
	for _, pt := range readiness {
		switch {
		case pt.Score == nil && pt.Reason == "":
			v.failf(p.ID, "readiness %s is null without a reason", pt.Date)
		case pt.Score != nil && (*pt.Score < 0 || *pt.Score > 100):
			v.failf(p.ID, "readiness %s = %g outside [0,100]", pt.Date, *pt.Score)
		}
	}

	var workload []types.WorkloadPoint
	wq := url.Values{}
	wq.Set("to", model.FormatDate(squad.To))
	wq.Set("days", strconv.Itoa(days))
	queries++
	if _, err := c.get(ctx, base+"/workload", wq, &workload); err != nil {
		return err
	}
	if len(workload) != days {
		v.failf(p.ID, "workload has %d points, want %d", len(workload), days)
	}
	for _, pt := range workload {
		checkWorkload(v, p, pt)
	}

	var alerts []types.Alert
	queries++
	if _, err := c.get(ctx, base+"/alerts", rangeQuery(squad), &alerts); err != nil {
		return err
	}
	highLoad := false
	from, to := model.FormatDate(squad.From), model.FormatDate(squad.To)
	for _, a := range alerts {
		if a.Date < from || a.Date > to {
			v.failf(p.ID, "alert %s on %s outside the queried range", a.Type, a.Date)
		}
		if a.Type == alerting.TypeHighLoad {
			highLoad = true
		}
	}
	if p.Profile == ProfileSpike && days >= 28 && !highLoad {
		v.failf(p.ID, "load spike raised no %s alert", alerting.TypeHighLoad)
	}

	for _, h := range risk.Horizons {
		var pred types.RiskPrediction
		rq := url.Values{}
		rq.Set("horizon", strconv.Itoa(h))
		rq.Set("as_of", to)
		queries++
		if _, err := c.get(ctx, base+"/risk", rq, &pred); err != nil {
			return err
		}
		if pred.RiskScore < 0 || pred.RiskScore > 1 {
			v.failf(p.ID, "risk score %g outside [0,1]", pred.RiskScore)
		}
		if want := risk.Classify(pred.RiskScore); pred.RiskClass != want {
			v.failf(p.ID, "risk class %q, want %q for score %g", pred.RiskClass, want, pred.RiskScore)
		}
	}

	v.count(queries, len(alerts))
	return nil
}

func checkWorkload(v *verifier, p Player, pt types.WorkloadPoint) {
	switch {
	case pt.ACWR == nil && pt.ACWRReason == "":
		v.failf(p.ID, "acwr %s is null without a reason", pt.Date)
	case pt.ChronicLoad == 0 && pt.ACWR != nil:
		v.failf(p.ID, "acwr %s defined with zero chronic load", pt.Date)
	case pt.ACWR != nil && math.Abs(*pt.ACWR-pt.AcuteLoad/pt.ChronicLoad) > 1e-6:
		v.failf(p.ID, "acwr %s = %g, want acute/chronic %g", pt.Date, *pt.ACWR, pt.AcuteLoad/pt.ChronicLoad)
	}
	if pt.Monotony == nil && pt.MonotonyReason == "" {
		v.failf(p.ID, "monotony %s is null without a reason", pt.Date)
	}
	if p.Profile == ProfileRested && pt.ACWR != nil {
		v.failf(p.ID, "rested player has acwr on %s", pt.Date)
	}
}
