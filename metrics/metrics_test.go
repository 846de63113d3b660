package metrics_test

import (
	"strings"
	"testing"
	"time"

	"github.com/christlandtech/storefront-client/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.RecordCacheLookup(true)
	m.RecordCacheLookup(false)
	m.RecordCacheLookup(false)
	m.RecordRefresh(metrics.RefreshSuccess)
	m.RecordLogout()
	m.RecordQuery("/api/catalog/products/", metrics.QuerySuccess)
	m.RecordRequest("GET", 200, 15*time.Millisecond)

	expected := `
# HELP christland_client_query_cache_lookups_total Query cache lookups by result
# TYPE christland_client_query_cache_lookups_total counter
christland_client_query_cache_lookups_total{result="hit"} 1
christland_client_query_cache_lookups_total{result="miss"} 2
# HELP christland_client_auth_refresh_total Access token refresh attempts by outcome
# TYPE christland_client_auth_refresh_total counter
christland_client_auth_refresh_total{outcome="success"} 1
# HELP christland_client_auth_forced_logouts_total Sessions cleared because the access token could not be refreshed
# TYPE christland_client_auth_forced_logouts_total counter
christland_client_auth_forced_logouts_total 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"christland_client_query_cache_lookups_total",
		"christland_client_auth_refresh_total",
		"christland_client_auth_forced_logouts_total",
	))

	count, err := testutil.GatherAndCount(reg, "christland_client_http_requests_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestMetrics_Nil(t *testing.T) {
	var m *metrics.Metrics
	require.NotPanics(t, func() {
		m.RecordCacheLookup(true)
		m.RecordCacheClear()
		m.RecordRefresh(metrics.RefreshRejected)
		m.RecordLogout()
		m.RecordQuery("/x", metrics.QueryTimeout)
		m.RecordRequest("GET", 500, time.Second)
	})
}
