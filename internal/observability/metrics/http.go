package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	consultTurnsTotal  *prometheus.CounterVec
	retrievedFragments *prometheus.HistogramVec
	consultDuration    *prometheus.HistogramVec
	sessionsLive       prometheus.GaugeFunc
}

func NewHTTPServerMetrics(service string, sessionCount func() int) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexgo",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lexgo",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lexgo",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	consultTurnsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexgo",
			Subsystem: "consult",
			Name:      "turns_total",
			Help:      "Total consultation turns by outcome.",
		},
		[]string{"service", "endpoint", "status"},
	)
	retrievedFragments := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lexgo",
			Subsystem: "consult",
			Name:      "retrieved_fragments",
			Help:      "Distribution of statute fragments retrieved per request.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
		[]string{"service", "endpoint"},
	)
	consultDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lexgo",
			Subsystem: "consult",
			Name:      "duration_seconds",
			Help:      "Consultation turn duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	sessionsLive := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "lexgo",
			Subsystem: "consult",
			Name:      "sessions_live",
			Help:      "Number of sessions currently held in memory.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		func() float64 {
			if sessionCount == nil {
				return 0
			}
			return float64(sessionCount())
		},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		consultTurnsTotal,
		retrievedFragments,
		consultDuration,
		sessionsLive,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		consultTurnsTotal:  consultTurnsTotal,
		retrievedFragments: retrievedFragments,
		consultDuration:    consultDuration,
		sessionsLive:       sessionsLive,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	if strings.HasPrefix(path, "/v1/sessions/") {
		rest := strings.TrimPrefix(path, "/v1/sessions/")
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			return "/v1/sessions/{session_id}/" + rest[i+1:]
		}
		return "/v1/sessions/{session_id}"
	}
	return path
}

func (m *HTTPServerMetrics) RecordConsultTurn(service, endpoint, status string, fragments int, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}
	m.consultTurnsTotal.WithLabelValues(service, endpoint, status).Inc()
	m.consultDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())
	if fragments >= 0 {
		m.retrievedFragments.WithLabelValues(service, endpoint).Observe(float64(fragments))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}
