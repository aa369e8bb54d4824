package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordNegotiation(t *testing.T) {
	before := testutil.ToFloat64(NegotiationsTotal.WithLabelValues(ResultFailure, "none"))
	RecordNegotiation(ResultFailure, "")
	after := testutil.ToFloat64(NegotiationsTotal.WithLabelValues(ResultFailure, "none"))

	assert.Equal(t, before+1, after)
}

func TestRouterServesMetrics(t *testing.T) {
	RecordReport("progress", ResultSuccess)
	RecordStaleReport()

	srv := httptest.NewServer(Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "autoplay_reports_total"))
	assert.True(t, strings.Contains(string(body), "autoplay_stale_reports_total"))

	health, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}
