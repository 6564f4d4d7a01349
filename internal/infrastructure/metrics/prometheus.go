package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusExporter exports metrics to Prometheus format.
type PrometheusExporter struct {
	collector *Collector

	// Prometheus metrics
	cacheHitRate prometheus.Gauge
	cacheKeys    prometheus.Gauge
	checks       *prometheus.CounterVec
	denials      *prometheus.CounterVec
	filters      *prometheus.CounterVec
	errors       *prometheus.CounterVec
}

// NewPrometheusExporter creates a new Prometheus exporter.
func NewPrometheusExporter(collector *Collector) *PrometheusExporter {
	return &PrometheusExporter{
		collector: collector,
		cacheHitRate: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "bridgekeeper_check_cache_hit_rate",
			Help: "Current check cache hit rate (0.0 to 1.0)",
		}),
		cacheKeys: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "bridgekeeper_check_cache_keys_current",
			Help: "Current number of keys in the check cache",
		}),
		checks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridgekeeper_checks_total",
				Help: "Total number of permission checks",
			},
			[]string{"permission"},
		),
		denials: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridgekeeper_denials_total",
				Help: "Total number of denied permission checks",
			},
			[]string{"permission"},
		),
		filters: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridgekeeper_filters_total",
				Help: "Total number of collection filterings",
			},
			[]string{"permission"},
		),
		errors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridgekeeper_evaluation_errors_total",
				Help: "Total number of failed permission evaluations",
			},
			[]string{"permission"},
		),
	}
}

// Update updates Gauge metrics from the collector.
// This should be called periodically (e.g., every 10 seconds).
func (e *PrometheusExporter) Update() {
	cacheMetrics := e.collector.GetCacheMetrics()
	e.cacheHitRate.Set(cacheMetrics.HitRate)
	e.cacheKeys.Set(float64(cacheMetrics.KeysCurrent))
}

// RecordCheck records a permission check verdict in Prometheus.
func (e *PrometheusExporter) RecordCheck(name string, allowed bool) {
	e.checks.WithLabelValues(name).Inc()
	if !allowed {
		e.denials.WithLabelValues(name).Inc()
	}
	e.collector.RecordCheck(name, allowed)
}

// RecordFilter records a collection filtering in Prometheus.
func (e *PrometheusExporter) RecordFilter(name string) {
	e.filters.WithLabelValues(name).Inc()
	e.collector.RecordFilter(name)
}

// RecordError records a failed evaluation in Prometheus.
func (e *PrometheusExporter) RecordError(name string) {
	e.errors.WithLabelValues(name).Inc()
	e.collector.RecordError(name)
}
