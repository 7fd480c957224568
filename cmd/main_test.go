package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/okian/readiness/internal/config"
	"github.com/okian/readiness/internal/scheduler"
	"github.com/okian/readiness/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.New()
	cfg.DBPath = filepath.Join(t.TempDir(), "readiness.db")
	cfg.WorkerCount = 2
	return cfg
}

func TestMainWiring(t *testing.T) {
	convey.Convey("Given the default configuration", t, func() {
		ctx := context.Background()
		cfg := testConfig(t)

		convey.Convey("When the service is built and started", func() {
			svc, err := newService(cfg)
			convey.So(err, convey.ShouldBeNil)
			convey.So(svc.Start(ctx), convey.ShouldBeNil)
			defer svc.Stop()

			sched, err := newScheduler(cfg, svc)
			convey.So(err, convey.ShouldBeNil)
			convey.So(sched, convey.ShouldNotBeNil)

			mux := newHandler(ctx, cfg, svc)

			convey.Convey("Then the landing page, docs and API are routed", func() {
				for _, path := range []string{"/", "/openapi.yaml", "/api-docs", "/healthz", "/stats"} {
					w := httptest.NewRecorder()
					mux.ServeHTTP(w, httptest.NewRequest("GET", path, http.NoBody))
					convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				}
			})

			convey.Convey("Then stats include the refresh job history", func() {
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, httptest.NewRequest("GET", "/stats", http.NoBody))
				var stats map[string]json.RawMessage
				convey.So(json.Unmarshal(w.Body.Bytes(), &stats), convey.ShouldBeNil)
				convey.So(stats, convey.ShouldContainKey, "refresh")

				var jobs []scheduler.JobStats
				convey.So(json.Unmarshal(stats["refresh"], &jobs), convey.ShouldBeNil)
				convey.So(jobs, convey.ShouldHaveLength, 1)
				convey.So(jobs[0].JobName, convey.ShouldEqual, scheduler.RefreshJobName)
			})

			convey.Convey("Then a manual refresh over an empty store succeeds", func() {
				convey.So(sched.RunJob(ctx, scheduler.RefreshJobName), convey.ShouldBeNil)
			})

			convey.Convey("Then the metric updaters run without panicking", func() {
				convey.So(updateSystemMetrics, convey.ShouldNotPanic)
				convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When the refresh is disabled", func() {
			cfg.RefreshEnabled = false
			svc, err := newService(cfg)
			convey.So(err, convey.ShouldBeNil)

			sched, err := newScheduler(cfg, svc)
			convey.So(err, convey.ShouldBeNil)
			convey.So(sched, convey.ShouldBeNil)
		})

		convey.Convey("When the risk thresholds are inverted", func() {
			cfg.RiskMinCoverage, cfg.RiskHighCoverage = 0.9, 0.5
			_, err := newService(cfg)
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When the alert windows are inconsistent", func() {
			cfg.AlertMinPriorScores = cfg.AlertTrailingDays + 1
			_, err := newService(cfg)
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When the cache backend is unknown", func() {
			cfg.CacheBackend = "memcached"
			_, err := newService(cfg)
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When the store path cannot be created", func() {
			cfg.DBPath = filepath.Join("/dev/null", "readiness.db")
			_, err := newService(cfg)
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}
