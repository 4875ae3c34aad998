package instrument

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors recorded around VWO client calls.
type Metrics struct {
	Registry *prometheus.Registry

	GetFlagRequestsTotal *prometheus.CounterVec
	GetFlagDuration      *prometheus.HistogramVec
	FlagResultsTotal     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them in a fresh registry,
// so that only VWO metrics appear on Handler.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		GetFlagRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vwo_get_flag_requests_total",
			Help: "Total number of VWO GetFlag calls.",
		}, []string{"status"}),

		GetFlagDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vwo_get_flag_duration_seconds",
			Help:    "VWO GetFlag latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),

		FlagResultsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vwo_flag_results_total",
			Help: "Total number of flag results returned by VWO, by enabled state.",
		}, []string{"enabled"}),
	}

	reg.MustRegister(
		m.GetFlagRequestsTotal,
		m.GetFlagDuration,
		m.FlagResultsTotal,
	)

	return m
}

// Handler returns an [http.Handler] that serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// RecordCall records one GetFlag call with its outcome and latency.
func (m *Metrics) RecordCall(status string, elapsed time.Duration) {
	m.GetFlagRequestsTotal.WithLabelValues(status).Inc()
	m.GetFlagDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

// RecordResult increments the result counter for the flag's enabled state.
func (m *Metrics) RecordResult(enabled bool) {
	m.FlagResultsTotal.WithLabelValues(strconv.FormatBool(enabled)).Inc()
}
