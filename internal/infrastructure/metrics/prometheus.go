package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusExporter exports metrics to Prometheus format.
type PrometheusExporter struct {
	collector *Collector

	// Prometheus metrics
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	cacheHitRate     prometheus.Gauge
	cacheKeys        prometheus.Gauge
	cacheMemoryBytes prometheus.Gauge
	cacheEvictions   prometheus.Counter
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	httpErrors       *prometheus.CounterVec
	accessChecks     *prometheus.CounterVec
	redemptions      *prometheus.CounterVec
	grantChanges     *prometheus.CounterVec
}

// NewPrometheusExporter creates a new Prometheus exporter.
func NewPrometheusExporter(collector *Collector) *PrometheusExporter {
	return &PrometheusExporter{
		collector: collector,
		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stickernest_role_cache_hits_total",
			Help: "Total number of effective-role cache hits",
		}),
		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stickernest_role_cache_misses_total",
			Help: "Total number of effective-role cache misses",
		}),
		cacheHitRate: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "stickernest_role_cache_hit_rate",
			Help: "Current cache hit rate (0.0 to 1.0)",
		}),
		cacheKeys: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "stickernest_role_cache_keys_current",
			Help: "Current number of keys in the effective-role cache",
		}),
		cacheMemoryBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "stickernest_role_cache_memory_bytes",
			Help: "Current memory usage of the effective-role cache in bytes",
		}),
		cacheEvictions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stickernest_role_cache_evictions_total",
			Help: "Total number of cache evictions due to memory limits",
		}),
		httpRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stickernest_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"route"},
		),
		httpDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stickernest_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		httpErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stickernest_http_errors_total",
				Help: "Total number of HTTP requests that failed with a server error",
			},
			[]string{"route"},
		),
		accessChecks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stickernest_access_checks_total",
				Help: "Total number of access checks by result",
			},
			[]string{"result"},
		),
		redemptions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stickernest_invitation_redemptions_total",
				Help: "Total number of invitation redemption attempts by outcome",
			},
			[]string{"outcome"},
		),
		grantChanges: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stickernest_grant_changes_total",
				Help: "Total number of collaborator grant changes by action",
			},
			[]string{"action"},
		),
	}
}

// RecordRequest records an HTTP request.
func (e *PrometheusExporter) RecordRequest(route string) {
	e.httpRequests.WithLabelValues(route).Inc()
}

// RecordDuration records a request duration.
func (e *PrometheusExporter) RecordDuration(route string, seconds float64) {
	e.httpDuration.WithLabelValues(route).Observe(seconds)
}

// RecordError records a server error.
func (e *PrometheusExporter) RecordError(route string) {
	e.httpErrors.WithLabelValues(route).Inc()
}

// RecordAccessCheck records the result of an access check.
func (e *PrometheusExporter) RecordAccessCheck(allowed bool) {
	result := "denied"
	if allowed {
		result = "allowed"
	}
	e.accessChecks.WithLabelValues(result).Inc()
}

// RecordRedemption records the outcome of a redemption attempt.
func (e *PrometheusExporter) RecordRedemption(outcome string) {
	e.redemptions.WithLabelValues(outcome).Inc()
}

// RecordGrantChange records a grant mutation by audit action.
func (e *PrometheusExporter) RecordGrantChange(action string) {
	e.grantChanges.WithLabelValues(action).Inc()
}

// UpdateCacheMetrics refreshes the cache gauges from the collector.
// Call periodically or on scrape.
func (e *PrometheusExporter) UpdateCacheMetrics() {
	if e.collector == nil {
		return
	}
	m := e.collector.GetCacheMetrics()
	e.cacheHitRate.Set(m.HitRate)
	e.cacheKeys.Set(float64(m.KeysCurrent))
	e.cacheMemoryBytes.Set(float64(m.MemoryBytes))
}
