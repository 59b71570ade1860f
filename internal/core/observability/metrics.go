// Package observability records client-side metrics for WLTS and LCCS calls.
package observability

import (
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

type vectors struct {
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	harmonized       *prometheus.CounterVec
	batchSize        prometheus.Histogram
}

var active atomic.Pointer[vectors]

// Init registers the metric vectors on reg; with enabled=false every
// observation becomes a no-op.
func Init(reg prometheus.Registerer, enabled bool) {
	if !enabled || reg == nil {
		active.Store(nil)
		return
	}
	v := &vectors{
		upstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wlts_upstream_requests_total",
				Help: "Upstream WLTS/LCCS requests by operation and outcome.",
			},
			[]string{"upstream", "op", "outcome"},
		),
		upstreamLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wlts_upstream_latency_seconds",
				Help:    "Latency of upstream calls in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
			},
			[]string{"upstream", "op"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wlts_http_requests_total",
				Help: "Total number of gateway HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wlts_http_request_duration_seconds",
				Help:    "Duration of gateway HTTP requests in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
			},
			[]string{"method", "route", "status"},
		),
		harmonized: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wlts_harmonized_events_total",
				Help: "Trajectory events seen by harmonization, by outcome (mapped, unmatched).",
			},
			[]string{"outcome"},
		),
		batchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "wlts_batch_points",
				Help:    "Number of coordinate pairs per multi-point trajectory call.",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
	}
	reg.MustRegister(v.upstreamRequests, v.upstreamLatency, v.httpRequests, v.httpDuration, v.harmonized, v.batchSize)
	active.Store(v)
}

func ObserveUpstream(upstream, op, outcome string, durationSeconds float64) {
	v := active.Load()
	if v == nil {
		return
	}
	v.upstreamRequests.WithLabelValues(upstream, op, outcome).Inc()
	v.upstreamLatency.WithLabelValues(upstream, op).Observe(durationSeconds)
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	v := active.Load()
	if v == nil {
		return
	}
	st := strconv.Itoa(status)
	v.httpRequests.WithLabelValues(method, route, st).Inc()
	v.httpDuration.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func AddHarmonizedEvents(outcome string, n int) {
	v := active.Load()
	if v == nil || n <= 0 {
		return
	}
	v.harmonized.WithLabelValues(outcome).Add(float64(n))
}

func ObserveBatchSize(n int) {
	v := active.Load()
	if v == nil {
		return
	}
	v.batchSize.Observe(float64(n))
}
