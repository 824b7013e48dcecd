package txn

import (
	"sync"
	"time"

	"github.com/graphmind/codegraph/pkg/errs"
	"github.com/graphmind/codegraph/pkg/types"
)

// nodeLock is a channel-based mutex so acquisition can be attempted with a
// timeout without leaking a goroutine blocked on sync.Mutex.Lock forever.
type nodeLock chan struct{}

func newNodeLock() nodeLock {
	ch := make(nodeLock, 1)
	ch <- struct{}{}
	return ch
}

func (l nodeLock) tryAcquire(timeout time.Duration) bool {
	select {
	case <-l:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (l nodeLock) release() {
	l <- struct{}{}
}

// lockTable hands out one lock per node id, created lazily. Commit always
// acquires locks for a write set in ascending node-id order (the caller's
// responsibility — see Manager.Commit), which rules out lock-ordering
// deadlocks between two transactions committing overlapping write sets:
// neither can be waiting on a lock the other holds while also holding one
// the other wants, because both acquire in the same total order.
type lockTable struct {
	mu    sync.Mutex
	locks map[types.NodeID]nodeLock
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[types.NodeID]nodeLock)}
}

func (lt *lockTable) get(id types.NodeID) nodeLock {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	l, ok := lt.locks[id]
	if !ok {
		l = newNodeLock()
		lt.locks[id] = l
	}
	return l
}

// acquireAll locks every id in order, rolling back any partial acquisition
// and returning a LockTimeout error if one doesn't become available within
// timeout. ids must already be sorted by the caller.
func (lt *lockTable) acquireAll(ids []types.NodeID, timeout time.Duration) error {
	acquired := make([]types.NodeID, 0, len(ids))
	for _, id := range ids {
		if !lt.get(id).tryAcquire(timeout) {
			lt.releaseAll(acquired)
			return errs.LockTimeout("txn.lockTable.acquireAll", "timed out waiting for commit lock on node "+string(id))
		}
		acquired = append(acquired, id)
	}
	return nil
}

func (lt *lockTable) releaseAll(ids []types.NodeID) {
	for _, id := range ids {
		lt.get(id).release()
	}
}
