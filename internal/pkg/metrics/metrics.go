package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ObservationsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "betfuse_observations_ingested_total",
		Help: "Feed observations accepted, by source and type.",
	}, []string{"source", "type"})

	ObservationsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "betfuse_observations_dropped_total",
		Help: "Feed observations dropped at validation, by reason.",
	}, []string{"reason"})

	FuzzyResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "betfuse_fuzzy_resolutions_total",
		Help: "Match key resolutions, by method (exact, alias-cache, token-subset, minted).",
	}, []string{"method"})

	MatchesTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "betfuse_matches_tracked",
		Help: "Match states currently held in the store.",
	})

	SweeperEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betfuse_sweeper_evictions_total",
		Help: "Match states evicted for staleness.",
	})

	OpportunitiesEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "betfuse_opportunities_emitted_total",
		Help: "Opportunities surfaced, by signal kind.",
	}, []string{"signal"})

	DecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "betfuse_decisions_total",
		Help: "Bet decisions, by final status.",
	}, []string{"status"})

	PolicyRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "betfuse_policy_rejections_total",
		Help: "Opportunities rejected by the decision policy, by reason.",
	}, []string{"reason"})

	InflightDecisions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "betfuse_inflight_decisions",
		Help: "Decisions submitted but not yet confirmed terminal.",
	})
)

// HealthFunc reports service health for /healthz.
type HealthFunc func(ctx context.Context) error

// StartServer runs a small HTTP server with /metrics and /healthz.
// Meant to be called from main; returns the server so shutdown can stop it.
func StartServer(addr string, healthFn HealthFunc) *http.Server {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if healthFn != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
			defer cancel()
			if err := healthFn(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("unhealthy: " + err.Error()))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		_ = srv.ListenAndServe()
	}()

	return srv
}
