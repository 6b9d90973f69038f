package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(sweepRunsTotal, stalePaymentsSweptTotal) }

var (
	sweepRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_sweep_runs_total",
			Help: "Background sweep executions, labeled by job and status.",
		},
		[]string{"job", "status"}, // 'ok', 'failed', 'skipped'
	)

	stalePaymentsSweptTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "billing_stale_payments_swept_total",
			Help: "Pending transactions expired by the stale-payment sweep.",
		},
	)
)

func IncSweepRun(job, status string) {
	sweepRunsTotal.WithLabelValues(norm(job), norm(status)).Inc()
}

func AddStalePaymentsSwept(count int) {
	stalePaymentsSweptTotal.Add(float64(count))
}
