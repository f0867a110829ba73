package observability

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yungbote/concierge-backend/internal/platform/envutil"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

const namespace = "concierge"

// Metrics is safe to use as a nil pointer; every method is a no-op then.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	assistantRequests *prometheus.CounterVec
	assistantLatency  *prometheus.HistogramVec

	runPolls    *prometheus.HistogramVec
	runWait     *prometheus.HistogramVec
	turns       *prometheus.CounterVec
	threadCache *prometheus.CounterVec

	realtimeDropped prometheus.Counter
	serviceRequests *prometheus.CounterVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", true)
}

func Current() *Metrics {
	return instance
}

// Init builds the process metrics once. It returns nil when METRICS_ENABLED is off.
func Init(log *logger.Logger) *Metrics {
	initOnce.Do(func() {
		if !Enabled() {
			if log != nil {
				log.Info("metrics disabled")
			}
			return
		}
		instance = New()
		if log != nil {
			log.Info("metrics initialized")
		}
	})
	return instance
}

// New builds metrics on a private registry. Tests use it directly.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "HTTP requests being served.",
		}),
		assistantRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assistant_requests_total",
			Help:      "Calls to the remote assistant service by operation and outcome.",
		}, []string{"op", "status"}),
		assistantLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "assistant_request_duration_seconds",
			Help:      "Latency of calls to the remote assistant service.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		runPolls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_poll_attempts",
			Help:      "Status checks spent waiting on one run.",
			Buckets:   []float64{1, 2, 3, 5, 10, 20, 40, 60},
		}, []string{"outcome"}),
		runWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_wait_seconds",
			Help:      "Wall time spent waiting on one run.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"outcome"}),
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_turns_total",
			Help:      "Conversation turns by outcome.",
		}, []string{"outcome"}),
		threadCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "thread_list_cache_total",
			Help:      "Thread list cache lookups and dropped stale writes by result.",
		}, []string{"result"}),
		realtimeDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_dropped_total",
			Help:      "Realtime events dropped because a client buffer was full.",
		}),
		serviceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "service_requests_total",
			Help:      "Service request transitions by category and status.",
		}, []string{"category", "status"}),
	}
	reg.MustRegister(
		m.apiRequests,
		m.apiLatency,
		m.apiInflight,
		m.assistantRequests,
		m.assistantLatency,
		m.runPolls,
		m.runWait,
		m.turns,
		m.threadCache,
		m.realtimeDropped,
		m.serviceRequests,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route).Observe(dur.Seconds())
}

// CountAPI records a request without a latency sample.
func (m *Metrics) CountAPI(method, route, status string) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveAssistantCall(op, status string, dur time.Duration) {
	if m == nil {
		return
	}
	op = strings.TrimSpace(op)
	if op == "" {
		op = "unknown"
	}
	if status == "" {
		status = "error"
	}
	m.assistantRequests.WithLabelValues(op, status).Inc()
	m.assistantLatency.WithLabelValues(op).Observe(dur.Seconds())
}

func (m *Metrics) ObserveRunWait(outcome string, attempts int, dur time.Duration) {
	if m == nil {
		return
	}
	m.runPolls.WithLabelValues(outcome).Observe(float64(attempts))
	m.runWait.WithLabelValues(outcome).Observe(dur.Seconds())
}

func (m *Metrics) IncTurn(outcome string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncThreadCache(result string) {
	if m == nil {
		return
	}
	m.threadCache.WithLabelValues(result).Inc()
}

func (m *Metrics) IncRealtimeDropped() {
	if m == nil {
		return
	}
	m.realtimeDropped.Inc()
}

func (m *Metrics) IncServiceRequest(category, status string) {
	if m == nil {
		return
	}
	m.serviceRequests.WithLabelValues(category, status).Inc()
}
