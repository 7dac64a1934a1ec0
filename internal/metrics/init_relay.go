package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initRelayMetrics() {
	r.RelaySessionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "ironmask_relay_sessions_total",
			Help: "Total number of relay sessions by final state",
		},
		[]string{"state"},
	)

	r.RelaySessionDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ironmask_relay_session_duration_seconds",
			Help:    "Relay session wall time in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"state"},
	)

	r.RelaySessionsActive = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "ironmask_relay_sessions_active",
			Help: "Current number of relay sessions in progress",
		},
	)

	r.RelayBytesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "ironmask_relay_bytes_total",
			Help: "Bytes moved through the relay by direction",
		},
		[]string{"direction"},
	)

	r.RelayUnitsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "ironmask_relay_units_total",
			Help: "Masked text units forwarded to the target",
		},
	)

	r.UpstreamFailuresTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "ironmask_relay_failures_total",
			Help: "Failed relay sessions by reason",
		},
		[]string{"reason"},
	)
}

func (r *Registry) initPrivacyMetrics() {
	r.RedactionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "ironmask_redactions_total",
			Help: "Spans redacted by masking rule",
		},
		[]string{"rule"},
	)

	r.StructuredMaskTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "ironmask_structured_mask_total",
			Help: "Structured JSON masking requests by outcome",
		},
		[]string{"status"},
	)

	r.RateLimitedTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "ironmask_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)

	r.WebSocketClients = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "ironmask_websocket_clients",
			Help: "Connected dashboard clients",
		},
	)
}
