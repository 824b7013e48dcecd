// Package vector implements the incremental vector index: append-only
// segments of (node-id, vector) pairs with size/age sealing, a WAL-backed
// ingestion engine batching writes across a worker pool, and background
// segment merging.
package vector

import (
	"sync"
	"time"

	"github.com/graphmind/codegraph/pkg/types"
)

// idOverheadBytes is the fixed allowance for the id and bookkeeping that
// vectorCost adds to dimension * 4 (float32) to approximate the incremental
// byte cost of one vector entry.
const idOverheadBytes = 64

// segment is an append-only set of (node-id, vector) entries. It accepts
// writes only while open; sealing is terminal (I7).
type segment struct {
	mu sync.RWMutex

	id         types.SegmentID
	createdAt  time.Time
	lastWrite  time.Time
	sealed     bool
	sealedAt   time.Time
	sizeBytes  int64
	vectors    map[types.NodeID][]float32
	tombstones map[types.NodeID]struct{}
}

func newSegment(id types.SegmentID) *segment {
	now := time.Now()
	return &segment{
		id:         id,
		createdAt:  now,
		lastWrite:  now,
		vectors:    make(map[types.NodeID][]float32),
		tombstones: make(map[types.NodeID]struct{}),
	}
}

func vectorCost(v []float32) int64 {
	return int64(len(v)*4 + idOverheadBytes)
}

// wouldExceed reports whether adding a vector of this size would push the
// segment past maxSize, or whether the segment has already aged out.
func (s *segment) wouldExceed(addBytes int64, maxSize int64, maxAge time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sealed {
		return true
	}
	if s.sizeBytes+addBytes > maxSize {
		return true
	}
	return time.Since(s.createdAt) > maxAge
}

// put inserts or overwrites a vector. Returns false without writing if the
// segment is sealed; callers must seal-and-retry on another segment.
func (s *segment) put(id types.NodeID, v []float32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return false
	}
	if _, existed := s.vectors[id]; !existed {
		s.sizeBytes += vectorCost(v)
	}
	s.vectors[id] = v
	delete(s.tombstones, id)
	s.lastWrite = time.Now()
	return true
}

// remove deletes id from this segment if present. On a sealed segment the
// entry is tombstoned in place rather than physically removed.
func (s *segment) remove(id types.NodeID) (removed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vectors[id]
	if !ok {
		return false
	}
	if s.sealed {
		s.tombstones[id] = struct{}{}
		return true
	}
	delete(s.vectors, id)
	s.sizeBytes -= vectorCost(v)
	return true
}

func (s *segment) has(id types.NodeID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.vectors[id]
	return ok
}

func (s *segment) isTombstoned(id types.NodeID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tombstones[id]
	return ok
}

func (s *segment) seal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return
	}
	s.sealed = true
	s.sealedAt = time.Now()
}

func (s *segment) isSealed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sealed
}

func (s *segment) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}

// snapshotEntries returns a defensive copy of every live (non-tombstoned)
// entry, for search and merge.
func (s *segment) snapshotEntries() map[types.NodeID][]float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[types.NodeID][]float32, len(s.vectors))
	for id, v := range s.vectors {
		if _, dead := s.tombstones[id]; dead {
			continue
		}
		out[id] = v
	}
	return out
}

// info is a read-only snapshot of segment metadata used for stats and merge
// candidate selection.
type info struct {
	ID        types.SegmentID
	Sealed    bool
	CreatedAt time.Time
	SealedAt  time.Time
	SizeBytes int64
	Count     int
}

func (s *segment) info() info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return info{
		ID:        s.id,
		Sealed:    s.sealed,
		CreatedAt: s.createdAt,
		SealedAt:  s.sealedAt,
		SizeBytes: s.sizeBytes,
		Count:     len(s.vectors),
	}
}
