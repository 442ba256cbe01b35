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

	turnsTotal         *prometheus.CounterVec
	turnDuration       *prometheus.HistogramVec
	refinementAttempts *prometheus.HistogramVec
	evaluationOverall  *prometheus.HistogramVec
	webFallbackTotal   *prometheus.CounterVec
	followUpTotal      *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutor",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tutor",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tutor",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	turnsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutor",
			Subsystem: "pipeline",
			Name:      "turns_total",
			Help:      "Total completed tutoring turns by outcome.",
		},
		[]string{"service", "outcome"},
	)
	turnDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tutor",
			Subsystem: "pipeline",
			Name:      "turn_duration_seconds",
			Help:      "Tutoring turn duration in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		},
		[]string{"service", "outcome"},
	)
	refinementAttempts := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tutor",
			Subsystem: "pipeline",
			Name:      "refinement_attempts",
			Help:      "Distribution of refinement attempts per answered turn.",
			Buckets:   []float64{0, 1, 2, 3},
		},
		[]string{"service"},
	)
	evaluationOverall := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tutor",
			Subsystem: "pipeline",
			Name:      "evaluation_overall_score",
			Help:      "Distribution of final overall evaluation scores by answer source.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
		[]string{"service", "source"},
	)
	webFallbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutor",
			Subsystem: "pipeline",
			Name:      "web_fallback_total",
			Help:      "Total turns answered from web search instead of course material.",
		},
		[]string{"service"},
	)
	followUpTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutor",
			Subsystem: "pipeline",
			Name:      "follow_up_total",
			Help:      "Total turns halted on a clarifying follow-up question.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		turnsTotal,
		turnDuration,
		refinementAttempts,
		evaluationOverall,
		webFallbackTotal,
		followUpTotal,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		turnsTotal:         turnsTotal,
		turnDuration:       turnDuration,
		refinementAttempts: refinementAttempts,
		evaluationOverall:  evaluationOverall,
		webFallbackTotal:   webFallbackTotal,
		followUpTotal:      followUpTotal,
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
	switch {
	case strings.HasPrefix(path, "/v1/threads/"):
		return "/v1/threads/{thread_id}/events"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordTurn(service, outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.turnsTotal.WithLabelValues(service, outcome).Inc()
	m.turnDuration.WithLabelValues(service, outcome).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordRefinementAttempts(service string, attempts int) {
	m.refinementAttempts.WithLabelValues(service).Observe(float64(attempts))
}

func (m *HTTPServerMetrics) RecordEvaluationScore(service, source string, overall float64) {
	if source == "" {
		source = "unknown"
	}
	m.evaluationOverall.WithLabelValues(service, source).Observe(overall)
}

func (m *HTTPServerMetrics) RecordWebFallback(service string) {
	m.webFallbackTotal.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordFollowUp(service string) {
	m.followUpTotal.WithLabelValues(service).Inc()
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
