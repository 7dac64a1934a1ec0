package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/raaihank/iron-mask/internal/privacy"
)

// SessionSummary is what the relay reports about one finished session
type SessionSummary struct {
	State       string
	Reason      string
	Duration    time.Duration
	BytesIn     int64
	BytesMasked int64
	BytesOut    int64
	Units       int
	Findings    []privacy.Finding
}

// RecordHTTPRequest records an HTTP request with its duration
func (r *Registry) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

// RecordSession records the outcome and volume of a finished relay session
func (r *Registry) RecordSession(s SessionSummary) {
	r.RelaySessionsTotal.WithLabelValues(s.State).Inc()
	r.RelaySessionDuration.WithLabelValues(s.State).Observe(s.Duration.Seconds())

	r.RelayBytesTotal.WithLabelValues("in").Add(float64(s.BytesIn))
	r.RelayBytesTotal.WithLabelValues("masked").Add(float64(s.BytesMasked))
	r.RelayBytesTotal.WithLabelValues("out").Add(float64(s.BytesOut))
	r.RelayUnitsTotal.Add(float64(s.Units))

	if s.Reason != "" {
		r.UpstreamFailuresTotal.WithLabelValues(s.Reason).Inc()
	}

	r.RecordFindings(s.Findings)
}

// RecordFindings adds redaction counts per rule
func (r *Registry) RecordFindings(findings []privacy.Finding) {
	for _, f := range findings {
		r.RedactionsTotal.WithLabelValues(f.EntityType).Add(float64(f.Count))
	}
}

// RecordStructuredMask records a /mask/json request outcome
func (r *Registry) RecordStructuredMask(status string) {
	r.StructuredMaskTotal.WithLabelValues(status).Inc()
}

// Handler exposes the registry in the Prometheus text format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		Registry: r.registry,
	})
}
