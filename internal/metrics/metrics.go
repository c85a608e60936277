// Package metrics defines Prometheus metrics for credsync.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "credsync_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credsync_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credsync_errors_total",
			Help: "Total errors by type",
		},
		[]string{"type"},
	)

	PassDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "credsync_reconcile_pass_duration_seconds",
			Help:    "Duration of each reconciliation pass",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5, 15},
		},
		[]string{"pass"},
	)

	PairsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credsync_reconcile_pairs_total",
			Help: "Candidate pairs recorded by each pass",
		},
		[]string{"pass"},
	)

	PartitionSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "credsync_reconcile_partition_size",
			Help: "Partition sizes of the most recent reconciliation",
		},
		[]string{"partition"},
	)

	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "credsync_websocket_connections",
			Help: "Active WebSocket connections",
		},
	)

	ProgressDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "credsync_progress_events_dropped_total",
			Help: "Progress events dropped because a client was too slow",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestsTotal, ErrorsTotal,
		PassDuration, PairsTotal, PartitionSize,
		WSConnections, ProgressDropped,
	)
}

// PoolGauges reads database pool occupancy on every scrape.
type PoolGauges struct {
	Acquired func() int32
	Idle     func() int32
	Max      func() int32
}

// RegisterPoolGauges exposes database pool occupancy. Call it once per process.
func RegisterPoolGauges(g PoolGauges) {
	gauge := func(name, help string, read func() int32) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, func() float64 {
			return float64(read())
		})
	}

	prometheus.MustRegister(
		gauge("credsync_db_pool_acquired_connections", "Connections currently checked out of the pool", g.Acquired),
		gauge("credsync_db_pool_idle_connections", "Idle connections held by the pool", g.Idle),
		gauge("credsync_db_pool_max_connections", "Configured pool size", g.Max),
	)
}

// ObservePass records one pass run.
func ObservePass(pass string, pairs int, d time.Duration) {
	PassDuration.WithLabelValues(pass).Observe(d.Seconds())
	PairsTotal.WithLabelValues(pass).Add(float64(pairs))
}

// SetPartitions records partition sizes of the latest plan.
func SetPartitions(add, update, unchanged, del, conflicts int) {
	PartitionSize.WithLabelValues("to_add").Set(float64(add))
	PartitionSize.WithLabelValues("to_update").Set(float64(update))
	PartitionSize.WithLabelValues("unchanged").Set(float64(unchanged))
	PartitionSize.WithLabelValues("to_delete").Set(float64(del))
	PartitionSize.WithLabelValues("conflicts").Set(float64(conflicts))
}
