package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/ErlanBelekov/vm-power-scheduler/internal/health"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Due Index population

	OccurrencesWrittenTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "power_scheduler",
		Name:      "occurrences_written_total",
		Help:      "Occurrences upserted into the due index, by producer.",
	}, []string{"source"})

	PrunedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "power_scheduler",
		Name:      "due_index_pruned_total",
		Help:      "Rows removed by daily housekeeping because they fell behind the sweep window.",
	})

	// Reconciler

	ReconcileOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "power_scheduler",
		Name:      "reconcile_outcomes_total",
		Help:      "Occurrences handled by the reconciler, by outcome.",
	}, []string{"outcome"})

	ActuatorDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "power_scheduler",
		Name:      "actuator_duration_seconds",
		Help:      "Duration of blocking power operations against the control plane.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"action", "status"})

	PassDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "power_scheduler",
		Name:      "pass_duration_seconds",
		Help:      "Time taken for one extend or reconcile pass.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"pass"})

	// Change ingest

	IngestEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "power_scheduler",
		Name:      "ingest_events_total",
		Help:      "Schedule change notifications, by result.",
	}, []string{"result"})

	EventRedeliveriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "power_scheduler",
		Name:      "event_redeliveries_total",
		Help:      "Event Grid deliveries that were retries of an earlier attempt.",
	})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "power_scheduler",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "power_scheduler",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		OccurrencesWrittenTotal,
		PrunedTotal,
		ReconcileOutcomesTotal,
		ActuatorDuration,
		PassDuration,
		IngestEventsTotal,
		EventRedeliveriesTotal,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

// NewServer serves /metrics plus the liveness and readiness endpoints.
func NewServer(addr string, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Liveness(r.Context()))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Readiness(r.Context()))
	})
	return &http.Server{Addr: addr, Handler: mux}
}

func writeHealth(w http.ResponseWriter, res health.HealthResult) {
	w.Header().Set("Content-Type", "application/json")
	if res.Status != "up" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(res)
}
