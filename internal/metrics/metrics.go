package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "arena_ticks_total", Help: "Simulation ticks processed across all matches"},
	)
	TradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "arena_trades_total", Help: "Trades executed by the ledger"},
		[]string{"action"},
	)
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "arena_events_published_total", Help: "Events published to the broadcast hub"},
		[]string{"type"},
	)
	BroadcastFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "arena_broadcast_failures_total", Help: "Subscriber deliveries that failed and evicted the subscriber"},
	)
	RunningMatches = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "arena_matches_running", Help: "Matches currently owned by a runner"},
	)
	MatchesCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "arena_matches_completed_total", Help: "Matches run to completion"},
	)
)

func init() {
	prometheus.MustRegister(TicksTotal, TradesTotal, EventsPublished, BroadcastFailures, RunningMatches, MatchesCompleted)
}

// Serve exposes /metrics on addr and returns the server so the caller
// can close it on shutdown.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
