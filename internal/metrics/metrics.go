package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the progression counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RequestCounter  *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	ChapterCompletions *prometheus.CounterVec
	QuizSubmissions    prometheus.Counter
	FinalSubmissions   *prometheus.CounterVec
	CertificatesIssued prometheus.Counter
	ActiveSessions     prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"method", "endpoint"},
		),
		ChapterCompletions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "progression_chapter_completions_total",
				Help: "Chapter completion persistence outcomes",
			},
			[]string{"outcome"},
		),
		QuizSubmissions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "progression_quiz_submissions_total",
			Help: "Chapter quizzes submitted",
		}),
		FinalSubmissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "progression_final_submissions_total",
				Help: "Final test submissions by trigger and result",
			},
			[]string{"trigger", "result"},
		),
		CertificatesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "progression_certificates_issued_total",
			Help: "Certificates fetched for the first time in a session",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "progression_active_sessions",
			Help: "Course sessions held in memory",
		}),
	}

	m.registry.MustRegister(
		m.RequestCounter,
		m.RequestDuration,
		m.ChapterCompletions,
		m.QuizSubmissions,
		m.FinalSubmissions,
		m.CertificatesIssued,
		m.ActiveSessions,
	)
	return m
}

// Registry exposes the underlying registry for scraping and tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ChapterCompleted() {
	if m == nil {
		return
	}
	m.ChapterCompletions.WithLabelValues("recorded").Inc()
}

func (m *Metrics) ChapterCompletionFailed() {
	if m == nil {
		return
	}
	m.ChapterCompletions.WithLabelValues("failed").Inc()
}

func (m *Metrics) QuizSubmitted() {
	if m == nil {
		return
	}
	m.QuizSubmissions.Inc()
}

func (m *Metrics) FinalSubmitted(auto, passed bool) {
	if m == nil {
		return
	}
	trigger := "manual"
	if auto {
		trigger = "timeout"
	}
	result := "failed"
	if passed {
		result = "passed"
	}
	m.FinalSubmissions.WithLabelValues(trigger, result).Inc()
}

func (m *Metrics) CertificateIssued() {
	if m == nil {
		return
	}
	m.CertificatesIssued.Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}

func (m *Metrics) MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		m.RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		m.RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) PrometheusHandler() gin.HandlerFunc {
	h := m.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
