// Package metrics exposes Prometheus instrumentation for jobs, the result
// cache, uploads and the HTTP layer.
//
// Exported series:
//
//	threatforge_jobs_submitted_total{source}      source = cache | generated
//	threatforge_jobs_finished_total{status}       completed | failed | cancelled
//	threatforge_cache_lookups_total{result}       hit | miss
//	threatforge_evictions_total{table}            jobs | cache | files
//	threatforge_generation_duration_seconds{provider}
//	threatforge_http_requests_total{method,route,code}
//	threatforge_http_request_duration_seconds{method,route}
//
// Gauges backed by live state (active jobs, cache entries) are registered
// with RegisterGaugeFunc by whoever owns that state.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/timmy/threatforge/internal/domain"
)

const namespace = "threatforge"

// Collector holds every metric the service records.
type Collector struct {
	reg prometheus.Registerer

	jobsSubmitted     *prometheus.CounterVec
	jobsFinished      *prometheus.CounterVec
	cacheLookups      *prometheus.CounterVec
	evictions         *prometheus.CounterVec
	generationLatency *prometheus.HistogramVec
	httpRequests      *prometheus.CounterVec
	httpLatency       *prometheus.HistogramVec
}

// NewCollector creates the metrics and registers them on reg.
// Tests pass a fresh prometheus.NewRegistry() to avoid duplicate registration.
func NewCollector(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		reg: reg,
		jobsSubmitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_submitted_total",
			Help:      "Async threat model jobs accepted, by whether they were served from cache.",
		}, []string{"source"}),
		jobsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Jobs that reached a terminal state.",
		}, []string{"status"}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups by outcome.",
		}, []string{"result"}),
		evictions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Records removed by operator-triggered sweeps.",
		}, []string{"table"}),
		generationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Latency of generation backend calls.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
		}, []string{"provider"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		httpLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// RecordSubmit counts an accepted job.
func (c *Collector) RecordSubmit(cacheHit bool) {
	source := "generated"
	result := "miss"
	if cacheHit {
		source = "cache"
		result = "hit"
	}
	c.jobsSubmitted.WithLabelValues(source).Inc()
	c.cacheLookups.WithLabelValues(result).Inc()
}

// RecordJobFinished counts a terminal transition.
func (c *Collector) RecordJobFinished(status domain.JobStatus) {
	c.jobsFinished.WithLabelValues(string(status)).Inc()
}

// RecordGeneration observes one backend call.
func (c *Collector) RecordGeneration(provider domain.Provider, d time.Duration) {
	c.generationLatency.WithLabelValues(string(provider)).Observe(d.Seconds())
}

// RecordEviction adds n removed records for table.
func (c *Collector) RecordEviction(table string, n int) {
	if n > 0 {
		c.evictions.WithLabelValues(table).Add(float64(n))
	}
}

// RecordHTTP observes one served request. route is the matched pattern, not the raw path.
func (c *Collector) RecordHTTP(method, route string, code int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(d.Seconds())
}

// RegisterGaugeFunc exposes a gauge sampled from fn at scrape time.
func (c *Collector) RegisterGaugeFunc(name, help string, fn func() float64) {
	promauto.With(c.reg).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
