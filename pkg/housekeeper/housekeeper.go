// Package housekeeper runs the engine's background maintenance tasks: WAL
// checkpoint/truncation, transaction-timeout sweeping, vector deadlock
// detection, vector segment merging and tool-cache statistics logging. Each
// task runs its own ticker on its own goroutine, and all tasks share one
// stop channel; the loop is adapted from the reconcile
// loop cuemby/warren's pkg/reconciler runs for cluster state, repurposed
// here to storage and vector engine upkeep.
package housekeeper

import (
	"sync"
	"time"

	"github.com/graphmind/codegraph/pkg/log"
	"github.com/graphmind/codegraph/pkg/metrics"
	"github.com/rs/zerolog"
)

// WALCheckpointer is satisfied by pkg/storage's DB.
type WALCheckpointer interface {
	Checkpoint() error
	TruncateWAL() error
}

// TransactionSweeper is satisfied by pkg/txn's Manager.
type TransactionSweeper interface {
	SweepExpired() (int, error)
}

// DeadlockDetector is satisfied by pkg/vectortxn's Manager.
type DeadlockDetector interface {
	DetectDeadlocks() (int, error)
}

// SegmentMerger is satisfied by pkg/vector's Engine.
type SegmentMerger interface {
	MergeEligibleSegments() (int, error)
}

// CacheStatsLogger is satisfied by pkg/executor's Cache.
type CacheStatsLogger interface {
	Stats() (hits, misses, evictions int64)
}

// Config controls which tasks run and how often. A zero Interval disables
// that task.
type Config struct {
	CheckpointInterval   time.Duration
	TxSweepInterval      time.Duration
	DeadlockScanInterval time.Duration
	MergeInterval        time.Duration
	CacheLogInterval     time.Duration
}

// DefaultConfig returns reasonable intervals for all five tasks.
func DefaultConfig() Config {
	return Config{
		CheckpointInterval:   30 * time.Second,
		TxSweepInterval:      5 * time.Second,
		DeadlockScanInterval: 2 * time.Second,
		MergeInterval:        1 * time.Minute,
		CacheLogInterval:     1 * time.Minute,
	}
}

// Housekeeper owns one goroutine per configured background task.
type Housekeeper struct {
	cfg    Config
	logger zerolog.Logger

	wal        WALCheckpointer
	txns       TransactionSweeper
	deadlocks  DeadlockDetector
	merger     SegmentMerger
	cacheStats CacheStatsLogger

	wg     sync.WaitGroup
	stopCh chan struct{}
}

// New constructs a Housekeeper. Any dependency left nil simply has its
// corresponding task skipped, so callers can wire only the subsystems they
// have built so far (useful in tests).
func New(cfg Config, wal WALCheckpointer, txns TransactionSweeper, deadlocks DeadlockDetector, merger SegmentMerger, cacheStats CacheStatsLogger) *Housekeeper {
	return &Housekeeper{
		cfg:        cfg,
		logger:     log.WithComponent("housekeeper"),
		wal:        wal,
		txns:       txns,
		deadlocks:  deadlocks,
		merger:     merger,
		cacheStats: cacheStats,
		stopCh:     make(chan struct{}),
	}
}

// Start launches every task whose dependency is non-nil and interval is
// positive.
func (h *Housekeeper) Start() {
	if h.wal != nil && h.cfg.CheckpointInterval > 0 {
		h.spawn("checkpoint", h.cfg.CheckpointInterval, h.runCheckpoint)
	}
	if h.txns != nil && h.cfg.TxSweepInterval > 0 {
		h.spawn("tx_sweep", h.cfg.TxSweepInterval, h.runTxSweep)
	}
	if h.deadlocks != nil && h.cfg.DeadlockScanInterval > 0 {
		h.spawn("deadlock_scan", h.cfg.DeadlockScanInterval, h.runDeadlockScan)
	}
	if h.merger != nil && h.cfg.MergeInterval > 0 {
		h.spawn("segment_merge", h.cfg.MergeInterval, h.runMerge)
	}
	if h.cacheStats != nil && h.cfg.CacheLogInterval > 0 {
		h.spawn("cache_stats", h.cfg.CacheLogInterval, h.runCacheStats)
	}
}

// Stop signals every running task to exit and waits for them to return.
func (h *Housekeeper) Stop() {
	close(h.stopCh)
	h.wg.Wait()
}

func (h *Housekeeper) spawn(name string, interval time.Duration, task func()) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				task()
			case <-h.stopCh:
				h.logger.Debug().Str("task", name).Msg("housekeeper task stopped")
				return
			}
		}
	}()
}

func (h *Housekeeper) runCheckpoint() {
	if err := h.wal.Checkpoint(); err != nil {
		h.logger.Error().Err(err).Msg("checkpoint failed")
		return
	}
	metrics.WALCheckpointsTotal.Inc()
	if err := h.wal.TruncateWAL(); err != nil {
		h.logger.Error().Err(err).Msg("WAL truncation failed")
	}
}

func (h *Housekeeper) runTxSweep() {
	n, err := h.txns.SweepExpired()
	if err != nil {
		h.logger.Error().Err(err).Msg("transaction sweep failed")
		return
	}
	if n > 0 {
		h.logger.Info().Int("expired", n).Msg("swept expired transactions")
	}
}

func (h *Housekeeper) runDeadlockScan() {
	n, err := h.deadlocks.DetectDeadlocks()
	if err != nil {
		h.logger.Error().Err(err).Msg("deadlock scan failed")
		return
	}
	if n > 0 {
		metrics.VectorDeadlocksTotal.Add(float64(n))
		h.logger.Warn().Int("broken", n).Msg("broke deadlock cycles")
	}
}

func (h *Housekeeper) runMerge() {
	n, err := h.merger.MergeEligibleSegments()
	if err != nil {
		h.logger.Error().Err(err).Msg("segment merge failed")
		return
	}
	if n > 0 {
		metrics.VectorMergesTotal.Add(float64(n))
		h.logger.Info().Int("merged", n).Msg("merged vector segments")
	}
}

func (h *Housekeeper) runCacheStats() {
	hits, misses, evictions := h.cacheStats.Stats()
	h.logger.Info().
		Int64("hits", hits).
		Int64("misses", misses).
		Int64("evictions", evictions).
		Msg("tool cache stats")
}
