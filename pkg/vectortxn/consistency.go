// Package vectortxn wraps pkg/vector's segment engine with transactional
// semantics: begin/add-op/prepare/commit/abort over vector mutations, 2PL
// locking across five standard lock modes, background wait-for-graph
// deadlock detection, and periodic checkpoints of committed transaction
// ids.
package vectortxn

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/graphmind/codegraph/pkg/errs"
	"github.com/graphmind/codegraph/pkg/events"
	"github.com/graphmind/codegraph/pkg/log"
	"github.com/graphmind/codegraph/pkg/metrics"
	"github.com/graphmind/codegraph/pkg/types"
	"github.com/graphmind/codegraph/pkg/vector"
)

// VectorTxState is the lifecycle state of a vector transaction, mirroring
// pkg/txn's graph transaction state machine.
type VectorTxState string

const (
	VecTxActive    VectorTxState = "Active"
	VecTxPrepared  VectorTxState = "Prepared"
	VecTxCommitted VectorTxState = "Committed"
	VecTxAborted   VectorTxState = "Aborted"
)

type vecTxState struct {
	id             types.TransactionID
	isolation      types.IsolationLevel
	state          VectorTxState
	startedAt      time.Time
	ops            []types.VectorOperation
	lockedNodes    map[types.NodeID]LockMode
	readSet        map[types.NodeID]struct{}
}

// Manager coordinates transactional access to one pkg/vector.Engine.
type Manager struct {
	engine *vector.Engine
	broker *events.Broker

	lockTimeout time.Duration

	mu    sync.Mutex
	txns  map[types.TransactionID]*vecTxState
	locks *lockTable

	watchMu sync.Mutex
	watch   map[types.TransactionID][]chan struct{}

	checkpoints []Checkpoint
	stopCh      chan struct{}
}

// New constructs a Manager over engine. broker may be nil.
func New(engine *vector.Engine, broker *events.Broker) *Manager {
	return &Manager{
		engine:      engine,
		broker:      broker,
		lockTimeout: types.DefaultLockTimeout,
		txns:        make(map[types.TransactionID]*vecTxState),
		locks:       newLockTable(),
		watch:       make(map[types.TransactionID][]chan struct{}),
		stopCh:      make(chan struct{}),
	}
}

// BeginVectorTx starts a new vector transaction at the given isolation
// level.
func (m *Manager) BeginVectorTx(isolation types.IsolationLevel) types.TransactionID {
	id := types.TransactionID(uuid.NewString())
	m.mu.Lock()
	m.txns[id] = &vecTxState{
		id:          id,
		isolation:   isolation,
		state:       VecTxActive,
		startedAt:   time.Now(),
		lockedNodes: make(map[types.NodeID]LockMode),
		readSet:     make(map[types.NodeID]struct{}),
	}
	m.mu.Unlock()
	return id
}

// AddOp appends op to the transaction's private write set; nothing reaches
// the segment engine until CommitVectorTx.
func (m *Manager) AddOp(txID types.TransactionID, op types.VectorOperation) error {
	st, err := m.active(txID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	st.ops = append(st.ops, op)
	m.mu.Unlock()
	return nil
}

// AcquireLock blocks txID until it holds mode on id, up to lock_timeout.
func (m *Manager) AcquireLock(txID types.TransactionID, id types.NodeID, mode LockMode) error {
	st, err := m.active(txID)
	if err != nil {
		return err
	}
	if err := m.locks.acquire(id, txID, mode, m.lockTimeout, m.stopCh); err != nil {
		return err
	}
	m.mu.Lock()
	st.lockedNodes[id] = mode
	if mode == Shared || mode == IntentionShared {
		st.readSet[id] = struct{}{}
	}
	m.mu.Unlock()
	return nil
}

// PrepareVectorTx validates the transaction's write set against every other
// currently active transaction's write set, per its isolation level:
// ReadUncommitted/ReadCommitted never conflict; RepeatableRead and
// Serializable reject if another active transaction has a write-set node
// in common (conservative, since vector ops have no before/after snapshot
// to compare hashes against as pkg/txn does).
func (m *Manager) PrepareVectorTx(txID types.TransactionID) error {
	st, err := m.active(txID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if st.isolation == types.ReadUncommitted || st.isolation == types.ReadCommitted {
		st.state = VecTxPrepared
		return nil
	}

	mine := writeSetOf(st)
	for other, ost := range m.txns {
		if other == txID || ost.state == VecTxCommitted || ost.state == VecTxAborted {
			continue
		}
		for id := range writeSetOf(ost) {
			if _, clash := mine[id]; clash {
				return errs.Transaction("vectortxn.Manager.PrepareVectorTx", "conflicting concurrent vector write to node "+string(id))
			}
		}
	}
	st.state = VecTxPrepared
	return nil
}

func writeSetOf(st *vecTxState) map[types.NodeID]struct{} {
	out := make(map[types.NodeID]struct{})
	for _, op := range st.ops {
		collectWriteIDs(op, out)
	}
	return out
}

func collectWriteIDs(op types.VectorOperation, out map[types.NodeID]struct{}) {
	if op.Kind == types.VectorBatch {
		for _, sub := range op.Batch {
			collectWriteIDs(sub, out)
		}
		return
	}
	if op.NodeID != "" {
		out[op.NodeID] = struct{}{}
	}
}

// CommitVectorTx applies every staged operation to the segment engine in
// the order it was added, marks the transaction committed, wakes any watchers, and
// releases its locks.
func (m *Manager) CommitVectorTx(txID types.TransactionID) error {
	st, err := m.active(txID)
	if err != nil {
		return err
	}
	timer := metrics.NewTimer()

	for _, op := range st.ops {
		if err := m.engine.Submit(op); err != nil {
			return err
		}
	}

	m.mu.Lock()
	st.state = VecTxCommitted
	m.mu.Unlock()

	m.locks.releaseAll(txID)
	m.notify(txID)

	metrics.TransactionsTotal.WithLabelValues(string(st.isolation), "committed").Inc()
	timer.ObserveDurationVec(metrics.TransactionDuration, string(st.isolation))

	if m.broker != nil {
		m.broker.Publish(&events.Event{Type: events.EventVectorTxCommitted, Message: string(txID)})
	}
	log.WithTxID(string(txID)).Info().Msg("vector transaction committed")
	return nil
}

// AbortVectorTx discards the staged write set and returns the inverse
// operations the caller would need to apply to undo any effects already
// visible to itself (vector ops never reach the engine before commit, so
// this is purely advisory bookkeeping for callers that optimistically
// applied ops elsewhere).
func (m *Manager) AbortVectorTx(txID types.TransactionID) ([]types.VectorOperation, error) {
	st, err := m.active(txID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	inverse := make([]types.VectorOperation, 0, len(st.ops))
	for i := len(st.ops) - 1; i >= 0; i-- {
		inverse = append(inverse, inverseOf(st.ops[i]))
	}
	st.state = VecTxAborted
	m.mu.Unlock()

	m.locks.releaseAll(txID)
	m.notify(txID)

	metrics.TransactionsTotal.WithLabelValues(string(st.isolation), "aborted").Inc()
	if m.broker != nil {
		m.broker.Publish(&events.Event{Type: events.EventVectorTxAborted, Message: string(txID)})
	}
	log.WithTxID(string(txID)).Warn().Msg("vector transaction aborted")
	return inverse, nil
}

func inverseOf(op types.VectorOperation) types.VectorOperation {
	switch op.Kind {
	case types.VectorInsert:
		return types.VectorOperation{Kind: types.VectorDelete, NodeID: op.NodeID}
	case types.VectorDelete:
		return types.VectorOperation{Kind: types.VectorInsert, NodeID: op.NodeID, Vector: op.Vector}
	default:
		return op
	}
}

// Watch returns a channel closed once txID reaches a terminal state
// (committed or aborted), for callers that need to block on "notifies
// waiters" semantics.
func (m *Manager) Watch(txID types.TransactionID) <-chan struct{} {
	ch := make(chan struct{})
	m.watchMu.Lock()
	m.watch[txID] = append(m.watch[txID], ch)
	m.watchMu.Unlock()
	return ch
}

func (m *Manager) notify(txID types.TransactionID) {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	for _, ch := range m.watch[txID] {
		close(ch)
	}
	delete(m.watch, txID)
}

func (m *Manager) active(txID types.TransactionID) (*vecTxState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.txns[txID]
	if !ok {
		return nil, errs.NotFound("vectortxn.Manager", "vector transaction", string(txID))
	}
	if st.state != VecTxActive && st.state != VecTxPrepared {
		return nil, errs.Transaction("vectortxn.Manager", "vector transaction is not active")
	}
	return st, nil
}

// activeTransactions returns the state of every non-terminal transaction,
// sorted by transaction id.
func (m *Manager) activeTransactions() []*vecTxState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*vecTxState, 0, len(m.txns))
	for _, st := range m.txns {
		if st.state == VecTxActive || st.state == VecTxPrepared {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Close stops background lock waiters spawned by this manager.
func (m *Manager) Close() {
	close(m.stopCh)
}
