package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Ledger metrics
	LedgerTransactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meridian_ledger_transactions_total",
			Help: "Total ledger transactions submitted by operation",
		},
		[]string{"operation"},
	)

	LedgerCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meridian_ledger_call_duration_seconds",
			Help:    "Ledger call duration in seconds, including inclusion wait",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"operation"},
	)

	// Workflow metrics
	WorkflowExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meridian_workflow_executions_total",
			Help: "Total reconciliation workflow executions",
		},
		[]string{"workflow", "outcome"}, // outcome: success|<failure reason>
	)

	// Event ingestion metrics
	EventsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meridian_ledger_events_ingested_total",
			Help: "Total ledger events folded into the relational store",
		},
		[]string{"event", "result"}, // result: applied|failed|forwarded|decode_failed|publish_failed
	)

	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meridian_worker_executions_total",
			Help: "Total background worker executions",
		},
		[]string{"worker", "status"}, // status: success|error|panic
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meridian_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"worker"},
	)
)

// Register registers all metric vectors with the default registry
func Register() {
	prometheus.MustRegister(
		LedgerTransactions,
		LedgerCallDuration,
		WorkflowExecutions,
		EventsIngested,
		WorkerExecutions,
		WorkerDuration,
	)
}

// Handler returns the prometheus scrape handler
func Handler() http.Handler {
	return promhttp.Handler()
}
