// Package metrics exposes pipeline and HTTP metrics in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"topicdesk/internal/core"
)

const namespace = "topicdesk"

// Collector manages the service's Prometheus metrics. It implements the generator's
// Recorder, the cluster cache's Recorder and the LLM guard's CallObserver.
type Collector struct {
	registry *prometheus.Registry

	proposalsGenerated *prometheus.CounterVec
	clusterFailures    *prometheus.CounterVec
	cacheLookups       *prometheus.CounterVec
	scheduledRuns      prometheus.Histogram
	llmCalls           *prometheus.HistogramVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	activeConnections   prometheus.Gauge
}

// NewCollector creates a collector on its own registry, including Go and process collectors
func NewCollector(version string) *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.proposalsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proposals_generated_total",
			Help:      "Total number of topic proposals persisted",
		},
		[]string{"trigger"},
	)

	c.clusterFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cluster_failures_total",
			Help:      "Clusters skipped because a stage failed",
		},
		[]string{"stage"},
	)

	c.cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cluster_cache_lookups_total",
			Help:      "Cluster cache lookups by result",
		},
		[]string{"result"},
	)

	c.scheduledRuns = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduled_run_duration_seconds",
			Help:      "Duration of scheduled generation runs",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)

	c.llmCalls = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_call_duration_seconds",
			Help:      "Duration of generative calls by provider and outcome",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 90},
		},
		[]string{"provider", "outcome"},
	)

	c.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	c.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	c.activeConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_active_requests",
			Help:      "Number of in-flight HTTP requests",
		},
	)

	info := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information",
		},
		[]string{"version"},
	)
	info.WithLabelValues(version).Set(1)

	c.registry.MustRegister(
		c.proposalsGenerated,
		c.clusterFailures,
		c.cacheLookups,
		c.scheduledRuns,
		c.llmCalls,
		c.httpRequestsTotal,
		c.httpRequestDuration,
		c.activeConnections,
		info,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the underlying registry
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) ObserveProposalGenerated(trigger core.GenerationTrigger) {
	c.proposalsGenerated.WithLabelValues(string(trigger)).Inc()
}

func (c *Collector) ObserveClusterFailure(stage string) {
	c.clusterFailures.WithLabelValues(stage).Inc()
}

func (c *Collector) ObserveScheduledRun(elapsed time.Duration) {
	c.scheduledRuns.Observe(elapsed.Seconds())
}

func (c *Collector) ObserveCacheLookup(result string) {
	c.cacheLookups.WithLabelValues(result).Inc()
}

func (c *Collector) ObserveLLMCall(provider, outcome string, elapsed time.Duration) {
	c.llmCalls.WithLabelValues(provider, outcome).Observe(elapsed.Seconds())
}

// Middleware records request counts and latencies keyed by chi route pattern
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		c.activeConnections.Inc()
		defer c.activeConnections.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		c.httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler returns the Prometheus scrape handler for this collector's registry
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
