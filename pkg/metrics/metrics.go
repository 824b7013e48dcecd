package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Storage metrics
	WALAppendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "codegraph_wal_append_duration_seconds",
			Help:    "Time taken to append a WAL entry in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	WALSequence = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "codegraph_wal_sequence",
			Help: "Current WAL sequence number",
		},
	)

	WALCheckpointsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "codegraph_wal_checkpoints_total",
			Help: "Total number of WAL checkpoints taken",
		},
	)

	BlobCacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codegraph_blob_cache_total",
			Help: "Total blob store cache lookups by outcome (hit, miss)",
		},
		[]string{"outcome"},
	)

	NodesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "codegraph_nodes_total",
			Help: "Total number of nodes currently stored",
		},
	)

	EdgesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "codegraph_edges_total",
			Help: "Total number of edges currently stored",
		},
	)

	SnapshotsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "codegraph_snapshots_total",
			Help: "Total number of snapshots retained",
		},
	)

	// Transaction metrics
	TransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codegraph_transactions_total",
			Help: "Total number of transactions by isolation level and outcome",
		},
		[]string{"isolation_level", "outcome"},
	)

	TransactionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codegraph_transaction_duration_seconds",
			Help:    "Transaction lifetime from begin to commit/abort in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"isolation_level"},
	)

	LockWaitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "codegraph_lock_wait_duration_seconds",
			Help:    "Time spent waiting to acquire a per-node commit lock in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ActiveTransactions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "codegraph_active_transactions",
			Help: "Number of transactions currently in the Active or Preparing state",
		},
	)

	// Vector engine metrics
	VectorSegmentsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "codegraph_vector_segments_total",
			Help: "Total number of vector segments by state (open, sealed)",
		},
		[]string{"state"},
	)

	VectorMergesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "codegraph_vector_merges_total",
			Help: "Total number of background vector segment merges completed",
		},
	)

	VectorIngestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "codegraph_vector_ingest_duration_seconds",
			Help:    "Time taken to ingest a vector batch in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	VectorDeadlocksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "codegraph_vector_deadlocks_total",
			Help: "Total number of vector lock wait-for cycles detected and broken",
		},
	)

	// Tool executor metrics
	ToolDispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codegraph_tool_dispatch_total",
			Help: "Total number of tool dispatches by tool name and outcome",
		},
		[]string{"tool", "outcome"},
	)

	ToolDispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codegraph_tool_dispatch_duration_seconds",
			Help:    "Tool dispatch duration in seconds by tool name",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool"},
	)

	ToolCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codegraph_tool_cache_total",
			Help: "Total tool result cache lookups by outcome (hit, miss, eviction)",
		},
		[]string{"outcome"},
	)

	ToolResultTruncatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codegraph_tool_result_truncated_total",
			Help: "Total number of tool results truncated by size, by tool name",
		},
		[]string{"tool"},
	)

	// Orchestrator metrics
	OrchestratorStepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codegraph_orchestrator_steps_total",
			Help: "Total number of orchestrator turn-loop steps by context tier",
		},
		[]string{"tier"},
	)

	OrchestratorSessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codegraph_orchestrator_sessions_total",
			Help: "Total number of orchestrator sessions by outcome (complete, error)",
		},
		[]string{"outcome"},
	)

	OrchestratorSessionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "codegraph_orchestrator_session_duration_seconds",
			Help:    "Orchestrator session duration from Started to Complete/Error in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		WALAppendDuration,
		WALSequence,
		WALCheckpointsTotal,
		BlobCacheHitsTotal,
		NodesTotal,
		EdgesTotal,
		SnapshotsTotal,
		TransactionsTotal,
		TransactionDuration,
		LockWaitDuration,
		ActiveTransactions,
		VectorSegmentsTotal,
		VectorMergesTotal,
		VectorIngestDuration,
		VectorDeadlocksTotal,
		ToolDispatchTotal,
		ToolDispatchDuration,
		ToolCacheTotal,
		ToolResultTruncatedTotal,
		OrchestratorStepsTotal,
		OrchestratorSessionsTotal,
		OrchestratorSessionDuration,
	)
}

// Handler returns the Prometheus scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures elapsed wall-clock time for a single operation and records
// it onto a histogram when the operation completes.
type Timer struct {
	start time.Time
}

func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
