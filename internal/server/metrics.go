package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/sensortree/pkg/observability"
)

// Metrics exports pipeline, cache and HTTP events to Prometheus. It
// implements every observability hook interface.
type Metrics struct {
	registry *prometheus.Registry

	stageDuration  *prometheus.HistogramVec
	stageErrors    *prometheus.CounterVec
	normalized     *prometheus.CounterVec
	placedNodes    prometheus.Histogram
	curves         prometheus.Histogram
	cacheEvents    *prometheus.CounterVec
	cacheBytes     *prometheus.CounterVec
	requests       *prometheus.CounterVec
	requestSeconds *prometheus.HistogramVec
	inFlight       prometheus.Gauge
	sessionActions *prometheus.CounterVec
}

var (
	_ observability.PipelineHooks = (*Metrics)(nil)
	_ observability.CacheHooks    = (*Metrics)(nil)
	_ observability.HTTPHooks     = (*Metrics)(nil)
)

// NewMetrics creates the collectors on a private registry, together with
// the Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sensortree_stage_duration_seconds",
			Help:    "Duration of pipeline stages.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"stage", "mode"}),
		stageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sensortree_stage_errors_total",
			Help: "Pipeline stage failures.",
		}, []string{"stage"}),
		normalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sensortree_normalized_payloads_total",
			Help: "Normalized payloads by detected shape.",
		}, []string{"shape"}),
		placedNodes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sensortree_layout_placed_nodes",
			Help:    "Nodes placed per layout.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
		curves: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sensortree_connector_curves",
			Help:    "Connector curves per computation.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
		cacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sensortree_cache_events_total",
			Help: "Cache lookups and writes.",
		}, []string{"type", "event"}),
		cacheBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sensortree_cache_written_bytes_total",
			Help: "Bytes written to the cache.",
		}, []string{"type"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sensortree_http_requests_total",
			Help: "HTTP requests by route and status class.",
		}, []string{"method", "route", "status"}),
		requestSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sensortree_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sensortree_http_in_flight_requests",
			Help: "Requests currently being served.",
		}),
		sessionActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sensortree_session_actions_total",
			Help: "Session actions by outcome.",
		}, []string{"action", "result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.stageDuration, m.stageErrors, m.normalized, m.placedNodes, m.curves,
		m.cacheEvents, m.cacheBytes,
		m.requests, m.requestSeconds, m.inFlight, m.sessionActions,
	)
	return m
}

// Register installs m as the process-wide observability hooks.
func (m *Metrics) Register() {
	observability.SetPipelineHooks(m)
	observability.SetCacheHooks(m)
	observability.SetHTTPHooks(m)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// =============================================================================
// Pipeline Hooks
// =============================================================================

func (m *Metrics) OnNormalizeStart(context.Context, string, int) {}

func (m *Metrics) OnNormalizeComplete(_ context.Context, shape string, _ int, d time.Duration, err error) {
	m.stageDuration.WithLabelValues("normalize", "").Observe(d.Seconds())
	if err != nil {
		m.stageErrors.WithLabelValues("normalize").Inc()
		return
	}
	m.normalized.WithLabelValues(shape).Inc()
}

func (m *Metrics) OnLayoutStart(context.Context, string, int) {}

func (m *Metrics) OnLayoutComplete(_ context.Context, mode string, placed int, d time.Duration, err error) {
	m.stageDuration.WithLabelValues("layout", mode).Observe(d.Seconds())
	if err != nil {
		m.stageErrors.WithLabelValues("layout").Inc()
		return
	}
	m.placedNodes.Observe(float64(placed))
}

func (m *Metrics) OnConnect(_ context.Context, mode string, curves int, d time.Duration) {
	m.stageDuration.WithLabelValues("connect", mode).Observe(d.Seconds())
	m.curves.Observe(float64(curves))
}

func (m *Metrics) OnRenderStart(context.Context, []string) {}

func (m *Metrics) OnRenderComplete(_ context.Context, _ []string, d time.Duration, err error) {
	m.stageDuration.WithLabelValues("render", "").Observe(d.Seconds())
	if err != nil {
		m.stageErrors.WithLabelValues("render").Inc()
	}
}

// =============================================================================
// Cache Hooks
// =============================================================================

func (m *Metrics) OnCacheHit(_ context.Context, keyType string) {
	m.cacheEvents.WithLabelValues(keyType, "hit").Inc()
}

func (m *Metrics) OnCacheMiss(_ context.Context, keyType string) {
	m.cacheEvents.WithLabelValues(keyType, "miss").Inc()
}

func (m *Metrics) OnCacheSet(_ context.Context, keyType string, size int) {
	m.cacheEvents.WithLabelValues(keyType, "set").Inc()
	m.cacheBytes.WithLabelValues(keyType).Add(float64(size))
}

// =============================================================================
// HTTP Hooks
// =============================================================================

func (m *Metrics) OnRequest(context.Context, string, string) {
	m.inFlight.Inc()
}

func (m *Metrics) OnResponse(_ context.Context, method, route string, status int, d time.Duration) {
	m.inFlight.Dec()
	m.requests.WithLabelValues(method, route, statusClass(status)).Inc()
	m.requestSeconds.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) OnSessionAction(_ context.Context, action string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.sessionActions.WithLabelValues(action, result).Inc()
}

// statusClass collapses a status code to "2xx", "4xx" and so on.
func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}
