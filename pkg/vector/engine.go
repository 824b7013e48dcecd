package vector

import (
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/graphmind/codegraph/pkg/errs"
	"github.com/graphmind/codegraph/pkg/fn"
	"github.com/graphmind/codegraph/pkg/log"
	"github.com/graphmind/codegraph/pkg/metrics"
	"github.com/graphmind/codegraph/pkg/types"
)

// Config bounds the engine's segment-sealing and batching behavior.
type Config struct {
	MaxSegmentSize    int64
	MaxSegmentAge     time.Duration
	MaxBatchSize      int
	BatchTimeout      time.Duration
	ParallelThreshold int
	Workers           int
}

// DefaultConfig mirrors the package defaults for segment sealing and batch
// ingestion.
func DefaultConfig() Config {
	return Config{
		MaxSegmentSize:    types.DefaultMaxSegmentSize,
		MaxSegmentAge:     types.DefaultMaxSegmentAge,
		MaxBatchSize:      types.DefaultMaxBatchSize,
		BatchTimeout:      types.DefaultBatchTimeout,
		ParallelThreshold: types.DefaultParallelThreshold,
		Workers:           runtime.GOMAXPROCS(0),
	}
}

// Engine is the incremental vector index: a WAL-backed, segment-based store
// accepting Insert/Update/Delete/Batch operations from multiple producers,
// batching them across a worker pool before they land in segments.
type Engine struct {
	cfg Config
	wal *vecWAL

	mu       sync.RWMutex
	segments map[types.SegmentID]*segment
	openSeg  *segment

	submitCh chan submission
	stopCh   chan struct{}
	wg       sync.WaitGroup

	stats *engineStats
}

type submission struct {
	op   types.VectorOperation
	done chan error
}

// NewEngine opens (or creates) the vector WAL under dataDir and starts the
// ingestion worker pool.
func NewEngine(dataDir string, cfg Config) (*Engine, error) {
	wal, err := openVecWAL(dataDir)
	if err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}

	e := &Engine{
		cfg:      cfg,
		wal:      wal,
		segments: make(map[types.SegmentID]*segment),
		submitCh: make(chan submission, cfg.MaxBatchSize),
		stopCh:   make(chan struct{}),
		stats:    newEngineStats(),
	}
	e.openSeg = e.newOpenSegment()

	if err := e.recoverFromWAL(); err != nil {
		_ = wal.close()
		return nil, err
	}

	e.wg.Add(1)
	go e.ingestLoop()
	return e, nil
}

func (e *Engine) newOpenSegment() *segment {
	seg := newSegment(types.SegmentID(uuid.NewString()))
	e.segments[seg.id] = seg
	metrics.VectorSegmentsTotal.WithLabelValues("open").Inc()
	return seg
}

// recoverFromWAL replays every durably-flushed WAL entry back into segment
// state; idempotent because applyOp's insert/update/delete are themselves
// idempotent replays of the same mutation.
func (e *Engine) recoverFromWAL() error {
	entries, err := e.wal.replay()
	if err != nil {
		return err
	}
	for _, ent := range entries {
		op := types.VectorOperation{
			Kind:   types.VectorOpKind(ent.Op.Kind),
			NodeID: types.NodeID(ent.Op.NodeID),
			Vector: ent.Op.Vector,
		}
		e.applyOp(op)
	}
	return nil
}

// Submit records operation in the vector WAL's buffer (a Batch as its
// individual operations) and then enqueues it for ingestion. The buffer is
// flushed to disk on the WAL's timer or threshold, not before Submit
// returns. Submit blocks until the operation has been applied to a segment.
func (e *Engine) Submit(op types.VectorOperation) error {
	var record func(op types.VectorOperation)
	record = func(op types.VectorOperation) {
		if op.Kind == types.VectorBatch {
			for _, sub := range op.Batch {
				record(sub)
			}
			return
		}
		e.wal.append(walOperation{Kind: string(op.Kind), NodeID: string(op.NodeID), Vector: op.Vector})
	}
	record(op)

	done := make(chan error, 1)
	select {
	case e.submitCh <- submission{op: op, done: done}:
	case <-e.stopCh:
		return errs.Storage("vector.Engine.Submit", nil)
	}
	return <-done
}

// ingestLoop is the single coordinator that batches submissions by size or
// timeout before handing the batch to processBatch.
func (e *Engine) ingestLoop() {
	defer e.wg.Done()
	timer := time.NewTimer(e.cfg.BatchTimeout)
	defer timer.Stop()

	var batch []submission
	flush := func() {
		if len(batch) == 0 {
			return
		}
		e.processBatch(batch)
		batch = nil
	}

	for {
		select {
		case s := <-e.submitCh:
			batch = append(batch, s)
			if len(batch) >= e.cfg.MaxBatchSize {
				flush()
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(e.cfg.BatchTimeout)
			}
		case <-timer.C:
			flush()
			timer.Reset(e.cfg.BatchTimeout)
		case <-e.stopCh:
			flush()
			return
		}
	}
}

// processBatch applies every submission's operation, in parallel once the
// batch exceeds ParallelThreshold, serially otherwise; per-op application
// still serializes through the engine's lock.
func (e *Engine) processBatch(batch []submission) {
	start := time.Now()
	e.stats.recordBatch(len(batch))

	if len(batch) > e.cfg.ParallelThreshold {
		fn.ParMap(batch, e.cfg.Workers, func(s submission) struct{} {
			e.applyAndReport(s)
			return struct{}{}
		})
	} else {
		for _, s := range batch {
			e.applyAndReport(s)
		}
	}
	e.stats.recordProcessingTime(time.Since(start))
}

func (e *Engine) applyAndReport(s submission) {
	err := e.applyOp(s.op)
	if err != nil {
		e.stats.recordFailure()
	} else {
		e.stats.recordSuccess()
	}
	s.done <- err
}

func (e *Engine) applyOp(op types.VectorOperation) error {
	switch op.Kind {
	case types.VectorInsert, types.VectorUpdate:
		return e.upsert(op.NodeID, op.Vector)
	case types.VectorDelete:
		e.delete(op.NodeID)
		return nil
	case types.VectorBatch:
		for _, sub := range op.Batch {
			if err := e.applyOp(sub); err != nil {
				return err
			}
		}
		return nil
	default:
		return errs.Schema("vector.Engine.applyOp", "unknown vector operation kind "+string(op.Kind))
	}
}

// upsert implements the insert/update policy from the module description:
// remove any stale copy first (masking it if it lives in a sealed segment),
// seal the open segment and start a new one if this write would overflow
// it, then add to the (possibly new) open segment.
func (e *Engine) upsert(id types.NodeID, v []float32) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, seg := range e.segments {
		if seg != e.openSeg && seg.has(id) {
			seg.remove(id) // tombstones since seg is sealed
		}
	}
	e.openSeg.remove(id)

	cost := vectorCost(v)
	if e.openSeg.wouldExceed(cost, e.cfg.MaxSegmentSize, e.cfg.MaxSegmentAge) {
		e.sealLocked(e.openSeg)
		e.openSeg = e.newOpenSegment()
	}
	e.openSeg.put(id, v)
	return nil
}

func (e *Engine) delete(id types.NodeID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, seg := range e.segments {
		seg.remove(id)
	}
}

func (e *Engine) sealLocked(seg *segment) {
	seg.seal()
	metrics.VectorSegmentsTotal.WithLabelValues("open").Dec()
	metrics.VectorSegmentsTotal.WithLabelValues("sealed").Inc()
	log.WithComponent("vector.engine").Debug().Str("segment_id", string(seg.id)).Msg("segment sealed")
}

// Lookup returns the live vector for id, or ok=false if it is absent or
// tombstoned everywhere.
func (e *Engine) Lookup(id types.NodeID) ([]float32, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, seg := range e.segments {
		if v, ok := seg.snapshotEntries()[id]; ok {
			return v, true
		}
	}
	return nil, false
}

// ScoredNode is one nearest-neighbour search result.
type ScoredNode struct {
	NodeID types.NodeID
	Score  float64
}

// Search runs a brute-force cosine-similarity nearest-neighbour scan across
// every live (non-tombstoned) vector, always scattering the scan across
// segments in parallel over up to Workers goroutines.
func (e *Engine) Search(query []float32, k int, threshold float64) []ScoredNode {
	e.mu.RLock()
	segs := make([]*segment, 0, len(e.segments))
	for _, seg := range e.segments {
		segs = append(segs, seg)
	}
	e.mu.RUnlock()

	perSegment := fn.ParMap(segs, e.cfg.Workers, func(seg *segment) []ScoredNode {
		entries := seg.snapshotEntries()
		out := make([]ScoredNode, 0, len(entries))
		for id, v := range entries {
			score := cosineSimilarity(query, v)
			if score >= threshold {
				out = append(out, ScoredNode{NodeID: id, Score: score})
			}
		}
		return out
	})

	var all []ScoredNode
	for _, s := range perSegment {
		all = append(all, s...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Score > all[j].Score })
	if k > 0 && len(all) > k {
		all = all[:k]
	}
	return all
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Close stops the ingestion loop and the WAL flusher.
func (e *Engine) Close() error {
	close(e.stopCh)
	e.wg.Wait()
	return e.wal.close()
}
