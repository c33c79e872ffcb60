// Package observability exposes Prometheus metrics for the import service.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the import-path metrics.
type Collector struct {
	registry *prometheus.Registry

	filesImported  *prometheus.CounterVec
	rowsMerged     *prometheus.CounterVec
	importDuration *prometheus.HistogramVec
}

// NewCollector builds a Collector backed by its own registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		filesImported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "level0",
			Name:      "files_imported_total",
			Help:      "Import attempts by file type and outcome.",
		}, []string{"type", "outcome"}),
		rowsMerged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "level0",
			Name:      "rows_merged_total",
			Help:      "Rows inserted into permanent tables by file type.",
		}, []string{"type"}),
		importDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "level0",
			Name:      "import_duration_seconds",
			Help:      "End to end duration of one file import.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"type"}),
	}
	c.filesImported = registerCounterVec(reg, c.filesImported)
	c.rowsMerged = registerCounterVec(reg, c.rowsMerged)
	c.importDuration = registerHistogramVec(reg, c.importDuration)
	return c
}

// ObserveImport records the outcome of one import call.
func (c *Collector) ObserveImport(typ, outcome string, rows int, d time.Duration) {
	c.filesImported.WithLabelValues(typ, outcome).Inc()
	c.importDuration.WithLabelValues(typ).Observe(d.Seconds())
	if rows > 0 {
		c.rowsMerged.WithLabelValues(typ).Add(float64(rows))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
		panic(err)
	}
	return vec
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec) *prometheus.HistogramVec {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing
			}
		}
		panic(err)
	}
	return vec
}
