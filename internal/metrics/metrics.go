package metrics

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

// Recorder collects advisor metrics on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	predictions   *prometheus.CounterVec
	duration      prometheus.Histogram
	products      prometheus.Histogram
	cacheLookups  *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDurations *prometheus.HistogramVec
}

// New creates a recorder with Go runtime and process collectors attached.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		predictions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "advisor_predictions_total",
				Help: "Prediction requests by outcome",
			},
			[]string{"outcome"},
		),
		duration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "advisor_prediction_duration_seconds",
				Help:    "Time spent computing a prediction response",
				Buckets: prometheus.DefBuckets,
			},
		),
		products: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "advisor_prediction_products",
				Help:    "Number of products per prediction response",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "advisor_cache_lookups_total",
				Help: "Prediction cache lookups by result",
			},
			[]string{"result"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		httpDurations: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"route", "method"},
		),
	}
}

// ObservePrediction records one computed response. A nil recorder is a no-op.
func (r *Recorder) ObservePrediction(products int, elapsed time.Duration, err error) {
	if r == nil {
		return
	}
	if err != nil {
		r.predictions.WithLabelValues("error").Inc()
		return
	}
	r.predictions.WithLabelValues("ok").Inc()
	r.duration.Observe(elapsed.Seconds())
	r.products.Observe(float64(products))
}

// ObserveCache records a cache lookup result.
func (r *Recorder) ObserveCache(hit bool) {
	if r == nil {
		return
	}
	if hit {
		r.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	r.cacheLookups.WithLabelValues("miss").Inc()
}

// Middleware records request counts and latency per route template.
func (r *Recorder) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		r.httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		r.httpDurations.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
