package vector

import (
	"time"

	"github.com/google/uuid"

	"github.com/graphmind/codegraph/pkg/log"
	"github.com/graphmind/codegraph/pkg/metrics"
	"github.com/graphmind/codegraph/pkg/types"
)

// DefaultMergeTargetCount is the vector count below which a sealed segment
// is considered small enough to be worth merging away.
const DefaultMergeTargetCount = 2000

// DefaultMaxSegmentsPerMerge bounds how many sealed segments one merge pass
// folds into a single replacement segment.
const DefaultMaxSegmentsPerMerge = 8

// MergeSegments picks up to maxToMerge sealed segments holding fewer than
// DefaultMergeTargetCount vectors (tombstoned entries included), unions
// their live contents into one new sealed segment, and atomically swaps it
// in for the originals. MergeEligibleSegments wraps it for
// pkg/housekeeper.SegmentMerger.
func (e *Engine) MergeSegments(maxToMerge int) (int, error) {
	if maxToMerge <= 0 {
		maxToMerge = DefaultMaxSegmentsPerMerge
	}

	e.mu.Lock()
	var candidates []*segment
	for _, seg := range e.segments {
		if seg == e.openSeg || !seg.isSealed() {
			continue
		}
		if seg.count() < DefaultMergeTargetCount {
			candidates = append(candidates, seg)
			if len(candidates) >= maxToMerge {
				break
			}
		}
	}
	if len(candidates) < 2 {
		e.mu.Unlock()
		return 0, nil
	}

	merged := newSegment(types.SegmentID(uuid.NewString()))
	for _, seg := range candidates {
		for id, v := range seg.snapshotEntries() {
			merged.put(id, v)
		}
	}
	merged.seal()

	e.segments[merged.id] = merged
	for _, seg := range candidates {
		delete(e.segments, seg.id)
	}
	e.mu.Unlock()

	metrics.VectorSegmentsTotal.WithLabelValues("sealed").Add(float64(1 - len(candidates)))
	metrics.VectorMergesTotal.Inc()
	e.stats.recordMerge()
	log.WithComponent("vector.engine").Info().
		Int("merged_segments", len(candidates)).
		Str("new_segment_id", string(merged.id)).
		Msg("sealed segments merged")
	return len(candidates), nil
}

// MergeEligibleSegments satisfies pkg/housekeeper.SegmentMerger using the
// package default merge batch size.
func (e *Engine) MergeEligibleSegments() (int, error) {
	return e.MergeSegments(DefaultMaxSegmentsPerMerge)
}

// segmentAges reports how long each sealed segment has sat unmerged, used
// only for diagnostics.
func (e *Engine) segmentAges() map[types.SegmentID]time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[types.SegmentID]time.Duration, len(e.segments))
	for id, seg := range e.segments {
		if seg.isSealed() {
			out[id] = time.Since(seg.info().SealedAt)
		}
	}
	return out
}
