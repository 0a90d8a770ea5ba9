package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(stateStoreLatencyMs, dbPoolStats) }

var (
	stateStoreLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "state_store_latency_ms",
			Help:    "Snapshot load/save latency per backend.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250, 1000},
		},
		[]string{"backend", "op", "success"},
	)

	dbPoolStats = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_stats",
			Help: "Current state of the database connection pool.",
		},
		[]string{"state"}, // 'total', 'idle', 'in_use'
	)
)

func ObserveStateStore(backend, op string, ms float64, success bool) {
	stateStoreLatencyMs.WithLabelValues(norm(backend), norm(op), strconv.FormatBool(success)).Observe(ms)
}

func SetDBPoolStats(total, idle, inUse int32) {
	dbPoolStats.WithLabelValues("total").Set(float64(total))
	dbPoolStats.WithLabelValues("idle").Set(float64(idle))
	dbPoolStats.WithLabelValues("in_use").Set(float64(inUse))
}
