package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpoint(t *testing.T) {
	assert.Equal(t, "/orders/:id", Endpoint("/orders/42"))
	assert.Equal(t, "/admin/api/orders/:id/status", Endpoint("/admin/api/orders/7/status"))
	assert.Equal(t, "/invoice/clients/:id/:id", Endpoint("/invoice/clients/1/2"))
	assert.Equal(t, "/tca/spot", Endpoint("/tca/spot"))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveUpstream("GET", "/orders", 200, time.Millisecond)
	m.TokenRefresh("success")
	m.GuardDecision("admin", "render")
	m.SessionsPurged(3)
	assert.Nil(t, m.Registry())
}

func TestCollectors(t *testing.T) {
	m := New()
	m.ObserveUpstream("GET", "/orders/12", 200, 10*time.Millisecond)
	m.ObserveUpstream("GET", "/orders/13", 200, 10*time.Millisecond)
	m.TokenRefresh("failure")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.upstreamRequests.WithLabelValues("GET", "/orders/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tokenRefreshes.WithLabelValues("failure")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "fxportal_backend_requests_total"))
}
