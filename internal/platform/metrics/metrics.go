package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service.
	Registry = prometheus.NewRegistry()

	// HTTPRequests counts requests by method, route and status.
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "route", "status"},
	)
	// HTTPDuration records request durations in seconds.
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "route"},
	)

	// RoutingRequests counts routing-service calls by outcome (ok, retry, error).
	RoutingRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "routing_requests_total", Help: "Routing service HTTP attempts by outcome."},
		[]string{"outcome"},
	)
	// RoutingFallbacks counts great-circle fallbacks by reason.
	RoutingFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "routing_fallbacks_total", Help: "Great-circle fallbacks by reason."},
		[]string{"reason"},
	)
	// RouteCacheLookups counts route cache lookups by result (hit, miss, error).
	RouteCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "route_cache_lookups_total", Help: "Route cache lookups by result."},
		[]string{"result"},
	)

	// DispatchRuns counts optimization runs by result (ok, error, busy).
	DispatchRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dispatch_runs_total", Help: "Optimization runs by result."},
		[]string{"result"},
	)
	// DispatchAssignments counts jobs committed to trucks.
	DispatchAssignments = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "dispatch_assignments_total", Help: "Jobs assigned by the optimizer."},
	)
	// DispatchRunDuration records optimization run durations in seconds.
	DispatchRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "dispatch_run_duration_seconds", Help: "Optimization run duration in seconds.", Buckets: prometheus.DefBuckets},
	)
)

var regOnce sync.Once

// Register adds all collectors to Registry. Safe to call more than once.
func Register() {
	regOnce.Do(func() {
		Registry.MustRegister(
			HTTPRequests,
			HTTPDuration,
			RoutingRequests,
			RoutingFallbacks,
			RouteCacheLookups,
			DispatchRuns,
			DispatchAssignments,
			DispatchRunDuration,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}
