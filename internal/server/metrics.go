package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors. Each server gets its own
// registry so tests can build several without duplicate registration.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	Predictions     *prometheus.CounterVec
	PredictionError prometheus.Counter
	ModelLoaded     prometheus.Gauge
}

// NewMetrics creates and registers the service collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subscription_api_requests_total",
				Help: "Total HTTP requests by route, method and status",
			},
			[]string{"path", "method", "status"},
		),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "subscription_api_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),
		Predictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subscription_predictions_total",
				Help: "Predictions served by predicted label",
			},
			[]string{"prediction"},
		),
		PredictionError: f.NewCounter(
			prometheus.CounterOpts{
				Name: "subscription_prediction_errors_total",
				Help: "Requests that failed during inference",
			},
		),
		ModelLoaded: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "subscription_model_loaded",
				Help: "1 when a model and its metadata are loaded",
			},
		),
	}
}

// Middleware records request counts and durations.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		m.HTTPRequests.WithLabelValues(path, method, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPDuration.WithLabelValues(path, method).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
