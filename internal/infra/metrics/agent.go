package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(agentOperationsTotal, lockWaitMs) }

var (
	agentOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_operations_total",
			Help: "Agent operations by name and outcome.",
		},
		[]string{"op", "result"}, // result: "ok" | "error" | "not_found"
	)

	lockWaitMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_lock_wait_ms",
			Help:    "Time spent waiting for the per-agent lock.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		},
		[]string{"backend"},
	)
)

func IncAgentOperation(op, result string) {
	agentOperationsTotal.WithLabelValues(norm(op), norm(result)).Inc()
}

func ObserveLockWait(backend string, ms int64) {
	lockWaitMs.WithLabelValues(norm(backend)).Observe(float64(ms))
}
