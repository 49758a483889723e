package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransactionsProcessed tracks ledger transactions by outcome per contract
	TransactionsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgersync_transactions_processed_total",
			Help: "Total number of ledger transactions handled by the poller",
		},
		[]string{"contract", "outcome"},
	)

	// EventsHandled tracks decoded contract events per handler result
	EventsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgersync_events_handled_total",
			Help: "Total number of contract events dispatched to handlers",
		},
		[]string{"event", "result"},
	)

	// LedgerRequestsTotal tracks requests to the ledger API
	LedgerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgersync_ledger_requests_total",
			Help: "Total number of ledger API requests",
		},
		[]string{"endpoint", "status"},
	)

	// LedgerLatency tracks ledger API latency
	LedgerLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledgersync_ledger_latency_seconds",
			Help:    "Ledger API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// CheckpointLedger tracks the persisted checkpoint per contract
	CheckpointLedger = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ledgersync_checkpoint_ledger",
			Help: "Highest ledger sequence fully handled",
		},
		[]string{"contract"},
	)

	// PollCycles tracks completed polling cycles
	PollCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgersync_poll_cycles_total",
			Help: "Total number of polling cycles",
		},
		[]string{"result"},
	)

	// PollerRunning is 1 while the poller is enabled
	PollerRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledgersync_poller_running",
			Help: "Whether the poller is enabled",
		},
	)

	// MaintenanceRuns tracks maintenance job runs by result
	MaintenanceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgersync_maintenance_runs_total",
			Help: "Total number of maintenance job runs",
		},
		[]string{"job", "result"},
	)

	// MaintenanceDuration tracks job latency including retries
	MaintenanceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledgersync_maintenance_duration_seconds",
			Help:    "Maintenance job duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	// QueueJobs tracks consumed queue jobs by type and result
	QueueJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgersync_queue_jobs_total",
			Help: "Total number of queue jobs consumed",
		},
		[]string{"type", "result"},
	)

	// DBConnectionPoolUsage tracks open connections as a percentage of the pool
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledgersync_db_connection_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)
)
