package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
)

// Metrics records event delivery statistics for the API event log
type Metrics struct {
	// Event metrics
	eventsTotal      *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec

	// Sink metrics
	deliveriesTotal *prometheus.CounterVec
	failuresTotal   *prometheus.CounterVec
	asyncFailures   *prometheus.CounterVec

	// Stream metrics
	streamDropped     prometheus.Counter
	streamSubscribers prometheus.Gauge

	// API metrics
	responsesTotal *prometheus.CounterVec

	logger      *zap.Logger
	httpHandler func(*fasthttp.RequestCtx)
}

// NewMetrics registers the collectors on the default registry
func NewMetrics(namespace string, logger *zap.Logger) *Metrics {
	return NewMetricsWithRegistry(namespace, prometheus.DefaultRegisterer, logger)
}

// NewMetricsWithRegistry registers the collectors on registerer
func NewMetricsWithRegistry(namespace string, registerer prometheus.Registerer, logger *zap.Logger) *Metrics {
	m := &Metrics{
		logger: logger,
	}

	m.eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "raised_total",
			Help:      "Total number of API events dispatched by the registry",
		},
		[]string{"event", "direction"},
	)

	m.dispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent delivering one event to all bound sinks",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"direction"},
	)

	m.deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "deliveries_total",
			Help:      "Total number of successful sink deliveries",
		},
		[]string{"event", "sink"},
	)

	m.failuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "failures_total",
			Help:      "Total number of sink deliveries that returned an error or panicked",
		},
		[]string{"event", "sink"},
	)

	m.asyncFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "async_failures_total",
			Help:      "Total number of queued deliveries that failed after leaving the queue",
		},
		[]string{"sink"},
	)

	m.streamDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "dropped_total",
			Help:      "Total number of frames dropped for slow stream subscribers",
		},
	)

	m.streamSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "subscribers",
			Help:      "Current number of connected event stream subscribers",
		},
	)

	m.responsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "responses_total",
			Help:      "Total number of API responses by operation and status class",
		},
		[]string{"operation", "status"},
	)

	registerer.MustRegister(
		m.eventsTotal,
		m.dispatchDuration,
		m.deliveriesTotal,
		m.failuresTotal,
		m.asyncFailures,
		m.streamDropped,
		m.streamSubscribers,
		m.responsesTotal,
	)

	gatherer, ok := registerer.(prometheus.Gatherer)
	if !ok {
		gatherer = prometheus.DefaultGatherer
	}
	m.httpHandler = fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	logger.Debug("Prometheus metrics initialized", zap.String("namespace", namespace))
	return m
}

// RecordDispatch records one event handed to its sinks
func (m *Metrics) RecordDispatch(event, direction string, duration time.Duration) {
	m.eventsTotal.WithLabelValues(event, direction).Inc()
	m.dispatchDuration.WithLabelValues(direction).Observe(duration.Seconds())
}

// RecordDelivery records a successful delivery to sink
func (m *Metrics) RecordDelivery(event, sink string) {
	m.deliveriesTotal.WithLabelValues(event, sink).Inc()
}

// RecordFailure records a failed delivery to sink
func (m *Metrics) RecordFailure(event, sink string) {
	m.failuresTotal.WithLabelValues(event, sink).Inc()
}

// RecordAsyncFailure records a delivery that failed inside a queued sink
func (m *Metrics) RecordAsyncFailure(sink string) {
	m.asyncFailures.WithLabelValues(sink).Inc()
}

// RecordStreamDrop records a frame a slow subscriber missed
func (m *Metrics) RecordStreamDrop() {
	m.streamDropped.Inc()
}

// SetStreamSubscribers updates the connected subscriber gauge
func (m *Metrics) SetStreamSubscribers(n int) {
	m.streamSubscribers.Set(float64(n))
}

// RecordResponse records an API response by status class
func (m *Metrics) RecordResponse(operation string, statusCode int) {
	m.responsesTotal.WithLabelValues(operation, statusClass(statusCode)).Inc()
}

// statusClass converts a status code to a range label (2xx, 3xx, 4xx, 5xx)
func statusClass(statusCode int) string {
	if statusCode < 100 || statusCode > 599 {
		return "unknown"
	}
	return strconv.Itoa(statusCode/100) + "xx"
}

// ServeHTTP serves the Prometheus text exposition
func (m *Metrics) ServeHTTP(ctx *fasthttp.RequestCtx) {
	m.httpHandler(ctx)
}

// DeliveryCount returns the delivery counter for event and sink
func (m *Metrics) DeliveryCount(event, sink string) float64 {
	return counterValue(m.deliveriesTotal.WithLabelValues(event, sink))
}

// FailureCount returns the failure counter for event and sink
func (m *Metrics) FailureCount(event, sink string) float64 {
	return counterValue(m.failuresTotal.WithLabelValues(event, sink))
}

// StreamDropCount returns the number of dropped stream frames
func (m *Metrics) StreamDropCount() float64 {
	return counterValue(m.streamDropped)
}

func counterValue(counter prometheus.Counter) float64 {
	metric := &dto.Metric{}
	if err := counter.Write(metric); err != nil {
		return 0
	}
	return metric.GetCounter().GetValue()
}
