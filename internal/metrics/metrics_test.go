package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/raaihank/iron-mask/internal/privacy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	require.NotNil(t, r)

	assert.NotNil(t, r.HTTPRequestsTotal)
	assert.NotNil(t, r.RelaySessionsTotal)
	assert.NotNil(t, r.RedactionsTotal)
	assert.NotNil(t, r.GetPrometheusRegistry())

	// Registries are independent
	other := NewRegistry()
	r.RelayUnitsTotal.Add(3)
	assert.Equal(t, float64(0), testutil.ToFloat64(other.RelayUnitsTotal))
}

func TestRecordHTTPRequest(t *testing.T) {
	r := NewRegistry()

	r.RecordHTTPRequest("POST", "/mask", "200", 100*time.Millisecond)
	r.RecordHTTPRequest("POST", "/mask", "200", 50*time.Millisecond)
	r.RecordHTTPRequest("POST", "/mask", "502", 10*time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(r.HTTPRequestsTotal.WithLabelValues("POST", "/mask", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.HTTPRequestsTotal.WithLabelValues("POST", "/mask", "502")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.HTTPRequestDuration))
}

func TestRecordSession(t *testing.T) {
	r := NewRegistry()

	r.RecordSession(SessionSummary{
		State:       "completed",
		Duration:    20 * time.Millisecond,
		BytesIn:     120,
		BytesMasked: 118,
		BytesOut:    8,
		Units:       3,
		Findings: []privacy.Finding{
			{EntityType: privacy.RulePhone, Count: 2},
			{EntityType: privacy.RuleEmail, Count: 1},
		},
	})
	r.RecordSession(SessionSummary{
		State:  "failed",
		Reason: "timeout",
		Findings: []privacy.Finding{
			{EntityType: privacy.RulePhone, Count: 1},
		},
	})

	assert.Equal(t, float64(1), testutil.ToFloat64(r.RelaySessionsTotal.WithLabelValues("completed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.RelaySessionsTotal.WithLabelValues("failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.UpstreamFailuresTotal.WithLabelValues("timeout")))
	assert.Equal(t, float64(3), testutil.ToFloat64(r.RedactionsTotal.WithLabelValues(privacy.RulePhone)))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.RedactionsTotal.WithLabelValues(privacy.RuleEmail)))
	assert.Equal(t, float64(120), testutil.ToFloat64(r.RelayBytesTotal.WithLabelValues("in")))
	assert.Equal(t, float64(8), testutil.ToFloat64(r.RelayBytesTotal.WithLabelValues("out")))
	assert.Equal(t, float64(3), testutil.ToFloat64(r.RelayUnitsTotal))
}

func TestRecordStructuredMask(t *testing.T) {
	r := NewRegistry()

	r.RecordStructuredMask("ok")
	r.RecordStructuredMask("invalid")
	r.RecordStructuredMask("ok")

	assert.Equal(t, float64(2), testutil.ToFloat64(r.StructuredMaskTotal.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.StructuredMaskTotal.WithLabelValues("invalid")))
}

func TestHandler(t *testing.T) {
	r := NewRegistry()
	r.RecordSession(SessionSummary{State: "completed"})

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `ironmask_relay_sessions_total{state="completed"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
