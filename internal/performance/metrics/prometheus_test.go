package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	engine := NewEngine()
	defer engine.Stop()

	engine.RecordLatency(10*time.Millisecond, "GET /[shortUrlId]", true, 0)
	engine.RecordLatency(90*time.Millisecond, "GET /[shortUrlId]", false, 0)
	engine.RecordFailure("GET /[shortUrlId]", "Redirect too slow: 0.090s")
	engine.RecordCheck(true)
	engine.RecordCheck(false)
	engine.AddActiveVUs(4)

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(NewCollector(engine)))

	expected := `
# HELP shortload_requests_total Requests issued, by result.
# TYPE shortload_requests_total counter
shortload_requests_total{result="failure"} 1
shortload_requests_total{result="success"} 1
# HELP shortload_active_vus Virtual users currently running.
# TYPE shortload_active_vus gauge
shortload_active_vus 4
# HELP shortload_failure_messages_total Failures grouped by endpoint and message.
# TYPE shortload_failure_messages_total counter
shortload_failure_messages_total{message="Redirect too slow: 0.090s",name="GET /[shortUrlId]"} 1
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"shortload_requests_total", "shortload_active_vus", "shortload_failure_messages_total")
	assert.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "shortload_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestHandler(t *testing.T) {
	engine := NewEngine()
	defer engine.Stop()
	engine.RecordLatency(5*time.Millisecond, "POST /api/v1/urls/", true, 64)

	srv := httptest.NewServer(Handler(engine))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `shortload_endpoint_requests_total{name="POST /api/v1/urls/"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
