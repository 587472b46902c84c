package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mentionwatch/mentionwatch/internal/models"
)

const namespace = "mentionwatch"

// HTTPCollector exposes Prometheus metrics for inbound HTTP requests.
type HTTPCollector struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
}

// NewHTTPCollector constructs a collector with default histograms/counters.
func NewHTTPCollector() (*HTTPCollector, error) {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for inbound HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of inbound HTTP requests.",
	}, []string{"method", "path", "status"})

	if err := registry.Register(requestDuration); err != nil {
		return nil, err
	}

	if err := registry.Register(requestTotal); err != nil {
		return nil, err
	}

	collector := &HTTPCollector{
		registry:        registry,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
	}

	return collector, nil
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *HTTPCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler to record HTTP metrics.
func (c *HTTPCollector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		path := r.URL.Path

		c.requestTotal.WithLabelValues(r.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// IngestionCollector records pipeline activity: connector fetches, filter
// decisions and whole-run summaries. It registers into the same registry the
// HTTP collector exposes so everything appears on one /metrics endpoint.
type IngestionCollector struct {
	fetchTotal     *prometheus.CounterVec
	fetchPosts     *prometheus.CounterVec
	filterDecision *prometheus.CounterVec
	runDuration    prometheus.Histogram
	runPosts       prometheus.Histogram
}

// NewIngestionCollector builds the pipeline collector and registers it on the
// HTTP collector's registry.
func NewIngestionCollector(httpCollector *HTTPCollector) (*IngestionCollector, error) {
	fetchTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingestion",
		Name:      "fetches_total",
		Help:      "Connector fetch attempts by platform and outcome.",
	}, []string{"platform", "outcome"})

	fetchPosts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingestion",
		Name:      "fetched_posts_total",
		Help:      "Raw posts returned by connectors, by platform.",
	}, []string{"platform"})

	filterDecision := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingestion",
		Name:      "filter_decisions_total",
		Help:      "Filter chain outcomes by stage.",
	}, []string{"stage"})

	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "ingestion",
		Name:      "run_duration_seconds",
		Help:      "Wall-clock duration of ingestion runs.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
	})

	runPosts := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "ingestion",
		Name:      "run_posts_processed",
		Help:      "Accepted posts per ingestion run.",
		Buckets:   []float64{0, 1, 5, 10, 18, 25, 50},
	})

	collector := &IngestionCollector{
		fetchTotal:     fetchTotal,
		fetchPosts:     fetchPosts,
		filterDecision: filterDecision,
		runDuration:    runDuration,
		runPosts:       runPosts,
	}

	for _, c := range []prometheus.Collector{fetchTotal, fetchPosts, filterDecision, runDuration, runPosts} {
		if err := httpCollector.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return collector, nil
}

// RecordFetch counts one connector fetch and its returned posts.
func (c *IngestionCollector) RecordFetch(platform models.Platform, posts int, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.fetchTotal.WithLabelValues(string(platform), outcome).Inc()
	if posts > 0 {
		c.fetchPosts.WithLabelValues(string(platform)).Add(float64(posts))
	}
}

// RecordFilter counts one filter chain decision.
func (c *IngestionCollector) RecordFilter(stage string) {
	c.filterDecision.WithLabelValues(stage).Inc()
}

// RecordRun observes a completed run.
func (c *IngestionCollector) RecordRun(result models.IngestionResult) {
	c.runDuration.Observe(result.DurationSeconds)
	c.runPosts.Observe(float64(result.PostsProcessed))
}
