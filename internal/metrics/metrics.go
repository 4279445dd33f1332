package metrics

import (
	"net/http"

	"github.com/gustycube/conjunctions/internal/health"
	"github.com/gustycube/conjunctions/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	UnitsTotal         = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "conjunctions_units_total", Help: "satellite-days processed"}, []string{"status"})
	ConjunctionsTotal  = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "conjunctions_found_total", Help: "conjunction rows appended"}, []string{"imager"})
	DuplicatesTotal    = prometheus.NewCounter(prometheus.CounterOpts{Name: "conjunctions_duplicates_total", Help: "rows suppressed by de-duplication"})
	TraceFailures      = prometheus.NewCounter(prometheus.CounterOpts{Name: "conjunctions_trace_failures_total", Help: "footprint samples whose field-line trace failed"})
	IndexRequests      = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "conjunctions_index_requests_total", Help: "frame index lookups"}, []string{"result"})
	RobotsBlocks       = prometheus.NewCounter(prometheus.CounterOpts{Name: "conjunctions_robots_blocked_total", Help: "index requests blocked by robots.txt"})
	BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "conjunctions_breaker_transitions_total", Help: "circuit breaker state changes"}, []string{"host", "to"})
)

func init() {
	prometheus.MustRegister(UnitsTotal, ConjunctionsTotal, DuplicatesTotal, TraceFailures, IndexRequests, RobotsBlocks, BreakerTransitions)
}

func Serve(addr string, log *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warnw("metrics server stopped", "err", err)
	}
}

func ServeWithHealth(addr string, healthHandler *health.Handler, log *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", healthHandler.HealthHandler)
	mux.HandleFunc("/ready", healthHandler.ReadinessHandler)
	mux.HandleFunc("/live", healthHandler.LivenessHandler)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warnw("metrics server stopped", "err", err)
	}
}
