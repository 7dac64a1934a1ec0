package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics exported by the proxy
type Registry struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Relay metrics
	RelaySessionsTotal    *prometheus.CounterVec
	RelaySessionDuration  *prometheus.HistogramVec
	RelaySessionsActive   prometheus.Gauge
	RelayBytesTotal       *prometheus.CounterVec
	RelayUnitsTotal       prometheus.Counter
	UpstreamFailuresTotal *prometheus.CounterVec

	// Privacy metrics
	RedactionsTotal     *prometheus.CounterVec
	StructuredMaskTotal *prometheus.CounterVec

	// Edge metrics
	RateLimitedTotal prometheus.Counter
	WebSocketClients prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics initialized.
// Each call gets its own prometheus.Registry so tests never collide.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{
		registry: reg,
	}

	r.initHTTPMetrics()
	r.initRelayMetrics()
	r.initPrivacyMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
