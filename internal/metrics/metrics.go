package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	PathLLM       = "llm"
	PathHeuristic = "heuristic"
)

type Metrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	analysesTotal  *prometheus.CounterVec
	fallbacksTotal *prometheus.CounterVec
	triagedTotal   *prometheus.CounterVec
}

func New(service string) *Metrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispute",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dispute",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dispute",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	analysesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispute",
			Subsystem: "classifier",
			Name:      "analyses_total",
			Help:      "Dispute classifications by path and producing source.",
		},
		[]string{"service", "path", "source"},
	)
	fallbacksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispute",
			Subsystem: "classifier",
			Name:      "fallbacks_total",
			Help:      "Heuristic fallbacks by reason.",
		},
		[]string{"service", "reason"},
	)
	triagedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispute",
			Subsystem: "triage",
			Name:      "cases_total",
			Help:      "Submitted cases by resulting priority and routing outcome.",
		},
		[]string{"service", "priority", "routing"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		analysesTotal,
		fallbacksTotal,
		triagedTotal,
	)

	return &Metrics{
		registry:        registry,
		service:         service,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestInFlight: requestInFlight,
		analysesTotal:   analysesTotal,
		fallbacksTotal:  fallbacksTotal,
		triagedTotal:    triagedTotal,
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware labels requests by route template so ids do not explode cardinality.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.requestTotal.WithLabelValues(m.service, c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(m.service, c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// ObserveAnalysis records one classification. fallbackReason is empty when the
// model verdict was used.
func (m *Metrics) ObserveAnalysis(source, fallbackReason string) {
	path := PathLLM
	if fallbackReason != "" {
		path = PathHeuristic
		m.fallbacksTotal.WithLabelValues(m.service, fallbackReason).Inc()
	}
	if source == "" {
		source = "unknown"
	}
	m.analysesTotal.WithLabelValues(m.service, path, source).Inc()
}

func (m *Metrics) RecordTriage(priority, routing string) {
	if routing == "" {
		routing = "unknown"
	}
	m.triagedTotal.WithLabelValues(m.service, priority, routing).Inc()
}
