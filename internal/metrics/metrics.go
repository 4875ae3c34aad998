// Package metrics provides Prometheus instrumentation for the vwo-eval HTTP
// server.
//
// Collectors are registered in a caller-supplied [prometheus.Registry] rather
// than the global default, so the server can expose them on the same
// /metrics endpoint as the VWO client metrics.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/felixge/httpsnoop"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const unmatchedRoute = "unmatched"

// Metrics holds the collectors used by the vwo-eval server.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	EvaluationsTotal    *prometheus.CounterVec
	FlagFileLoadsTotal  *prometheus.CounterVec
	FlagsLoaded         prometheus.Gauge
	RateLimitedTotal    prometheus.Counter
}

// New creates the server collectors and registers them in reg. A nil reg
// gets a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		Registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vwo_eval_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vwo_eval_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),

		EvaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vwo_eval_flag_evaluations_total",
			Help: "Total number of flag evaluations, by value type and reason.",
		}, []string{"type", "reason"}),

		FlagFileLoadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vwo_eval_flag_file_loads_total",
			Help: "Total number of flag file loads, by result.",
		}, []string{"result"}),

		FlagsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vwo_eval_flags_loaded",
			Help: "Number of flags in the in-memory table.",
		}),

		RateLimitedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vwo_eval_rate_limited_total",
			Help: "Total number of requests rejected by the per-IP rate limit.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.EvaluationsTotal,
		m.FlagFileLoadsTotal,
		m.FlagsLoaded,
		m.RateLimitedTotal,
	)

	return m
}

// Handler returns an [http.Handler] that serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// HTTPMiddleware records request count and latency. The route label is the
// ServeMux pattern that matched, so it must wrap the mux.
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured := httpsnoop.CaptureMetrics(next, w, r)

		route := r.Pattern
		if route == "" {
			route = unmatchedRoute
		}
		labels := []string{r.Method, route, strconv.Itoa(captured.Code)}
		m.HTTPRequestsTotal.WithLabelValues(labels...).Inc()
		m.HTTPRequestDuration.WithLabelValues(labels...).Observe(captured.Duration.Seconds())
	})
}

// RecordEvaluation increments the evaluation counter.
func (m *Metrics) RecordEvaluation(valueType, reason string) {
	m.EvaluationsTotal.WithLabelValues(valueType, reason).Inc()
}

// RecordFlagFileLoad records a flag file load attempt. size is only applied
// when the load succeeded.
func (m *Metrics) RecordFlagFileLoad(err error, size int) {
	if err != nil {
		m.FlagFileLoadsTotal.WithLabelValues("error").Inc()
		return
	}
	m.FlagFileLoadsTotal.WithLabelValues("ok").Inc()
	m.FlagsLoaded.Set(float64(size))
}

// IncRateLimited increments the rate limit rejection counter.
func (m *Metrics) IncRateLimited() {
	m.RateLimitedTotal.Inc()
}
