package vectortxn

import (
	"sync"
	"time"

	"github.com/graphmind/codegraph/pkg/errs"
	"github.com/graphmind/codegraph/pkg/types"
)

// LockMode is one of the five standard multi-granularity lock modes.
type LockMode string

const (
	Shared             LockMode = "Shared"
	Exclusive          LockMode = "Exclusive"
	IntentionShared    LockMode = "IntentionShared"
	IntentionExclusive LockMode = "IntentionExclusive"
	SIX                LockMode = "SIX" // shared + intention-exclusive
)

// compatible reports whether a holder in mode held and a requester asking
// for mode want may coexist, per the standard 2PL multi-granularity
// compatibility matrix.
func compatible(held, want LockMode) bool {
	row, ok := compatMatrix[held]
	if !ok {
		return false
	}
	return row[want]
}

var compatMatrix = map[LockMode]map[LockMode]bool{
	IntentionShared: {
		IntentionShared: true, IntentionExclusive: true, Shared: true, SIX: true, Exclusive: false,
	},
	IntentionExclusive: {
		IntentionShared: true, IntentionExclusive: true, Shared: false, SIX: false, Exclusive: false,
	},
	Shared: {
		IntentionShared: true, IntentionExclusive: false, Shared: true, SIX: false, Exclusive: false,
	},
	SIX: {
		IntentionShared: true, IntentionExclusive: false, Shared: false, SIX: false, Exclusive: false,
	},
	Exclusive: {
		IntentionShared: false, IntentionExclusive: false, Shared: false, SIX: false, Exclusive: false,
	},
}

type holder struct {
	txID types.TransactionID
	mode LockMode
}

// nodeLockState tracks every holder of a node's lock plus the transactions
// currently blocked waiting for one, so the deadlock detector can build a
// wait-for graph.
type nodeLockState struct {
	holders []holder
	waiters map[types.TransactionID]struct{}
}

// lockTable grants per-(node, mode) locks with 2PL compatibility, blocking
// a requester until the matrix admits it or lock_timeout elapses.
type lockTable struct {
	mu    sync.Mutex
	nodes map[types.NodeID]*nodeLockState
}

func newLockTable() *lockTable {
	return &lockTable{nodes: make(map[types.NodeID]*nodeLockState)}
}

func (lt *lockTable) stateFor(id types.NodeID) *nodeLockState {
	st, ok := lt.nodes[id]
	if !ok {
		st = &nodeLockState{waiters: make(map[types.TransactionID]struct{})}
		lt.nodes[id] = st
	}
	return st
}

func (lt *lockTable) canGrantLocked(st *nodeLockState, txID types.TransactionID, mode LockMode) bool {
	for _, h := range st.holders {
		if h.txID == txID {
			continue
		}
		if !compatible(h.mode, mode) {
			return false
		}
	}
	return true
}

// acquire blocks until txID is granted mode on id, lock_timeout elapses, or
// stop fires (engine shutdown / deadlock victim abort). Implemented as a
// bounded poll rather than a condition variable because the wait must also
// watch stop and a wall-clock deadline, neither of which sync.Cond can
// select on.
func (lt *lockTable) acquire(id types.NodeID, txID types.TransactionID, mode LockMode, timeout time.Duration, stop <-chan struct{}) error {
	deadline := time.Now().Add(timeout)

	for {
		lt.mu.Lock()
		st := lt.stateFor(id)
		if lt.canGrantLocked(st, txID, mode) {
			delete(st.waiters, txID)
			st.holders = append(st.holders, holder{txID: txID, mode: mode})
			lt.mu.Unlock()
			return nil
		}
		st.waiters[txID] = struct{}{}
		lt.mu.Unlock()

		if time.Now().After(deadline) {
			lt.mu.Lock()
			delete(st.waiters, txID)
			lt.mu.Unlock()
			return errs.LockTimeout("vectortxn.lockTable.acquire", "timed out waiting for lock on node "+string(id))
		}

		select {
		case <-stop:
			lt.mu.Lock()
			delete(st.waiters, txID)
			lt.mu.Unlock()
			return errs.Transaction("vectortxn.lockTable.acquire", "lock wait aborted")
		case <-time.After(minDuration(time.Until(deadline), 10*time.Millisecond)):
		}
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

// release drops every lock txID holds on id.
func (lt *lockTable) release(id types.NodeID, txID types.TransactionID) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	st, ok := lt.nodes[id]
	if !ok {
		return
	}
	kept := st.holders[:0]
	for _, h := range st.holders {
		if h.txID != txID {
			kept = append(kept, h)
		}
	}
	st.holders = kept
}

// releaseAll drops every lock txID holds across all nodes.
func (lt *lockTable) releaseAll(txID types.TransactionID) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	for _, st := range lt.nodes {
		kept := st.holders[:0]
		for _, h := range st.holders {
			if h.txID != txID {
				kept = append(kept, h)
			}
		}
		st.holders = kept
	}
}

// waitForGraph returns, for every waiting transaction, the set of
// transactions it is waiting on (those holding an incompatible lock on the
// node it wants) — the input to cycle-based deadlock detection.
func (lt *lockTable) waitForGraph() map[types.TransactionID]map[types.TransactionID]struct{} {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	graph := make(map[types.TransactionID]map[types.TransactionID]struct{})
	for _, st := range lt.nodes {
		for waiter := range st.waiters {
			for _, h := range st.holders {
				if h.txID == waiter {
					continue
				}
				if graph[waiter] == nil {
					graph[waiter] = make(map[types.TransactionID]struct{})
				}
				graph[waiter][h.txID] = struct{}{}
			}
		}
	}
	return graph
}
