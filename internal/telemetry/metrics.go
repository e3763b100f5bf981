package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	requestDuration *prometheus.HistogramVec
	rateLimited     *prometheus.CounterVec
	catalogFailures *prometheus.CounterVec
	submissions     *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewMetrics registers the service metrics on a private registry so tests
// and multiple routers never collide on the default one.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolshed_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"route", "method", "status"},
		),
		rateLimited: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolshed_rate_limited_total",
				Help: "Requests rejected by a rate ceiling",
			},
			[]string{"scope"},
		),
		catalogFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolshed_catalog_load_failures_total",
				Help: "Catalog loads that fell back to an empty catalog",
			},
			[]string{"reason"},
		),
		submissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolshed_review_submissions_total",
				Help: "Review form submissions by outcome",
			},
			[]string{"outcome"},
		),
		gatherer: registry,
	}
}

func (m *Metrics) RateLimited(scope string) {
	m.rateLimited.WithLabelValues(scope).Inc()
}

func (m *Metrics) CatalogLoadFailed(reason string) {
	m.catalogFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) ReviewSubmitted(outcome string) {
	m.submissions.WithLabelValues(outcome).Inc()
}

// Instrument observes request latency per matched route.
func (m *Metrics) Instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requestDuration.
			WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.gatherer
}
