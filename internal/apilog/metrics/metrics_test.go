package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

func newTestMetrics() *Metrics {
	return NewMetricsWithRegistry("apilog", prometheus.NewRegistry(), zap.NewNop())
}

func TestMetrics_Counters(t *testing.T) {
	m := newTestMetrics()

	m.RecordDelivery("AddUserRequest", "console")
	m.RecordDelivery("AddUserRequest", "console")
	m.RecordDelivery("AddUserRequest", "disc")
	m.RecordFailure("AddUserRequest", "network")
	m.RecordStreamDrop()

	assert.Equal(t, float64(2), m.DeliveryCount("AddUserRequest", "console"))
	assert.Equal(t, float64(1), m.DeliveryCount("AddUserRequest", "disc"))
	assert.Equal(t, float64(0), m.DeliveryCount("DeleteUserRequest", "console"))
	assert.Equal(t, float64(1), m.FailureCount("AddUserRequest", "network"))
	assert.Equal(t, float64(1), m.StreamDropCount())
}

func TestStatusClass(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{200, "2xx"},
		{201, "2xx"},
		{304, "3xx"},
		{404, "4xx"},
		{501, "5xx"},
		{0, "unknown"},
		{700, "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, statusClass(tt.code), "status %d", tt.code)
	}
}

func TestMetrics_HTTPEndpoint(t *testing.T) {
	m := newTestMetrics()

	m.RecordDispatch("AddUserResponse", "response", 2*time.Millisecond)
	m.RecordDelivery("AddUserResponse", "console")
	m.RecordAsyncFailure("network")
	m.RecordResponse("AddUser", 201)
	m.SetStreamSubscribers(3)

	ctx := &fasthttp.RequestCtx{}
	ctx.Request.SetRequestURI("/metrics")
	ctx.Request.Header.SetMethod(fasthttp.MethodGet)

	m.ServeHTTP(ctx)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	body := string(ctx.Response.Body())
	assert.Contains(t, body, `apilog_events_raised_total{direction="response",event="AddUserResponse"} 1`)
	assert.Contains(t, body, `apilog_sink_deliveries_total{event="AddUserResponse",sink="console"} 1`)
	assert.Contains(t, body, `apilog_sink_async_failures_total{sink="network"} 1`)
	assert.Contains(t, body, `apilog_api_responses_total{operation="AddUser",status="2xx"} 1`)
	assert.Contains(t, body, `apilog_stream_subscribers 3`)
	assert.Contains(t, body, "apilog_events_dispatch_duration_seconds_bucket")
}
