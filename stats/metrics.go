// Package stats exposes Prometheus counters/histograms for the S3
// surface (SPEC_FULL.md Domain Stack: prometheus/client_golang wired
// to a /-/metrics endpoint), grounded on the counter/latency naming
// convention of AIStore's stats/target_stats.go (not part of this
// tree) ("*.n" counts, "*.ns" latencies), adapted to Prometheus's
// own label-based idiom instead of a flat string-keyed table.
package stats

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every metric this server publishes.
type Collector struct {
	Requests  *prometheus.CounterVec
	Errors    *prometheus.CounterVec
	Latency   *prometheus.HistogramVec
	BytesIn   prometheus.Counter
	BytesOut  prometheus.Counter
	Registry  *prometheus.Registry
}

// NewCollector registers every metric on a private registry, the way
// library consumers are expected to avoid colliding with the global
// default registry when embedded.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		Registry: reg,
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "s3rver_requests_total",
			Help: "Total HTTP requests handled, by method and operation.",
		}, []string{"method", "operation"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "s3rver_errors_total",
			Help: "Total requests that failed, by S3 error code.",
		}, []string{"code"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "s3rver_request_duration_seconds",
			Help:    "Request handling latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		BytesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "s3rver_bytes_in_total",
			Help: "Total bytes received in request bodies (PUT/POST).",
		}),
		BytesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "s3rver_bytes_out_total",
			Help: "Total bytes written in response bodies.",
		}),
	}
	reg.MustRegister(c.Requests, c.Errors, c.Latency, c.BytesIn, c.BytesOut)
	return c
}

// Handler exposes the collector on the standard /metrics text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})
}
