// Package txn implements the MVCC transaction manager: Begin/Read/Write/
// Commit/Abort over pkg/storage, with four isolation levels, a bounded
// per-transaction timeout, and per-node commit locks acquired in a fixed
// global order so concurrent commits can never deadlock each other.
package txn

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/graphmind/codegraph/pkg/errs"
	"github.com/graphmind/codegraph/pkg/events"
	"github.com/graphmind/codegraph/pkg/log"
	"github.com/graphmind/codegraph/pkg/metrics"
	"github.com/graphmind/codegraph/pkg/storage"
	"github.com/graphmind/codegraph/pkg/types"
)

// txState is the manager's private bookkeeping for one in-flight
// transaction: the public types.Transaction plus the staged writes that
// have not yet reached the store.
type txState struct {
	tx      types.Transaction
	staged  map[types.NodeID]*types.Node // pending puts, keyed by node id
	deletes map[types.NodeID]struct{}
}

// Manager is the single MVCC transaction coordinator for one storage.DB.
type Manager struct {
	db      *storage.DB
	broker  *events.Broker
	timeout time.Duration

	mu    sync.Mutex
	txns  map[types.TransactionID]*txState
	locks *lockTable
}

// New constructs a Manager. broker may be nil if commit notifications are
// not needed (e.g. in tests).
func New(db *storage.DB, broker *events.Broker) *Manager {
	return &Manager{
		db:      db,
		broker:  broker,
		timeout: types.DefaultTransactionTimeout,
		txns:    make(map[types.TransactionID]*txState),
		locks:   newLockTable(),
	}
}

// Begin starts a new transaction at the given isolation level, pinning a
// read snapshot for RepeatableRead and Serializable so repeated reads of
// the same node observe the same value for the transaction's lifetime.
func (m *Manager) Begin(isolation types.IsolationLevel) (*types.Transaction, error) {
	snap, err := m.db.Snapshots.Create("", "")
	if err != nil {
		return nil, err
	}

	tx := types.Transaction{
		ID:             types.TransactionID(uuid.NewString()),
		IsolationLevel: isolation,
		State:          types.TxActive,
		StartedAt:      time.Now(),
		SnapshotID:     snap.ID,
		ReadSet:        make(map[types.NodeID]struct{}),
		WriteSet:       make(map[types.NodeID]types.WriteOperation),
	}

	m.mu.Lock()
	m.txns[tx.ID] = &txState{tx: tx, staged: make(map[types.NodeID]*types.Node), deletes: make(map[types.NodeID]struct{})}
	m.mu.Unlock()

	metrics.ActiveTransactions.Inc()
	log.WithTxID(string(tx.ID)).Debug().Str("isolation", string(isolation)).Msg("transaction started")
	return &tx, nil
}

// Read returns the value of a node as this transaction should see it:
// ReadUncommitted and ReadCommitted always see the latest committed value
// (plus this transaction's own uncommitted writes); RepeatableRead and
// Serializable are pinned to the snapshot taken at Begin.
func (m *Manager) Read(txID types.TransactionID, id types.NodeID) (*types.Node, error) {
	st, err := m.activeState(txID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if staged, ok := st.staged[id]; ok {
		st.tx.ReadSet[id] = struct{}{}
		m.mu.Unlock()
		return staged, nil
	}
	if _, deleted := st.deletes[id]; deleted {
		m.mu.Unlock()
		return nil, errs.NotFound("txn.Manager.Read", "node", string(id))
	}
	isolation := st.tx.IsolationLevel
	m.mu.Unlock()

	var node *types.Node
	switch isolation {
	case types.RepeatableRead, types.Serializable:
		node, err = m.db.Snapshots.GetAtSnapshot(st.tx.SnapshotID, id)
	default:
		node, err = m.db.Get(id)
	}
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	st.tx.ReadSet[id] = struct{}{}
	m.mu.Unlock()
	return node, nil
}

// Write stages an insert or update of node in the transaction's private
// write set; nothing is visible to other transactions until Commit.
func (m *Manager) Write(txID types.TransactionID, node *types.Node) error {
	st, err := m.activeState(txID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	kind := types.WriteUpdate
	if _, existed, _ := m.db.CurrentHash(node.ID); !existed {
		kind = types.WriteInsert
	}
	st.tx.WriteSet[node.ID] = types.WriteOperation{Kind: kind, NodeID: node.ID}
	st.staged[node.ID] = node
	delete(st.deletes, node.ID)
	return nil
}

// Delete stages a deletion of id.
func (m *Manager) Delete(txID types.TransactionID, id types.NodeID) error {
	st, err := m.activeState(txID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	st.tx.WriteSet[id] = types.WriteOperation{Kind: types.WriteDelete, NodeID: id}
	st.deletes[id] = struct{}{}
	delete(st.staged, id)
	return nil
}

// Commit validates the transaction per its isolation level, acquires every
// written node's commit lock in ascending node-id order, applies the write
// set atomically, produces a new snapshot of the post-write node set, and
// publishes a commit event. The returned SnapshotID names the state of the
// graph immediately after this commit, ready for Diff/Merge/Tag against any
// other snapshot.
func (m *Manager) Commit(txID types.TransactionID) (types.SnapshotID, error) {
	st, err := m.activeState(txID)
	if err != nil {
		return "", err
	}
	timer := metrics.NewTimer()

	m.mu.Lock()
	st.tx.State = types.TxPreparing
	nodeIDs := make([]types.NodeID, 0, len(st.tx.WriteSet))
	for id := range st.tx.WriteSet {
		nodeIDs = append(nodeIDs, id)
	}
	sort.Slice(nodeIDs, func(i, j int) bool { return nodeIDs[i] < nodeIDs[j] })
	m.mu.Unlock()

	lockTimer := metrics.NewTimer()
	if err := m.locks.acquireAll(nodeIDs, types.DefaultLockTimeout); err != nil {
		m.abort(st, err)
		return "", err
	}
	lockTimer.ObserveDuration(metrics.LockWaitDuration)
	defer m.locks.releaseAll(nodeIDs)

	m.mu.Lock()
	st.tx.State = types.TxPrepared
	m.mu.Unlock()

	if err := m.validate(st); err != nil {
		m.abort(st, err)
		return "", err
	}

	puts := make([]*types.Node, 0, len(st.staged))
	for _, n := range st.staged {
		puts = append(puts, n)
	}
	deletes := make([]types.NodeID, 0, len(st.deletes))
	for id := range st.deletes {
		deletes = append(deletes, id)
	}

	if err := m.db.ApplyWriteSet(txID, puts, deletes); err != nil {
		m.abort(st, err)
		return "", err
	}

	// Every commit produces a new snapshot of the post-write node set,
	// parented under the transaction's starting snapshot, so later
	// diff/merge/tag operations have something to name.
	snap, err := m.db.Snapshots.Create(txID, st.tx.SnapshotID)
	if err != nil {
		m.abort(st, err)
		return "", err
	}

	now := time.Now()
	m.mu.Lock()
	st.tx.State = types.TxCommitted
	st.tx.CommittedAt = &now
	st.tx.CommitSnapshot = snap.ID
	delete(m.txns, txID)
	m.mu.Unlock()

	metrics.ActiveTransactions.Dec()
	metrics.TransactionsTotal.WithLabelValues(string(st.tx.IsolationLevel), "committed").Inc()
	timer.ObserveDurationVec(metrics.TransactionDuration, string(st.tx.IsolationLevel))

	if m.broker != nil {
		m.broker.Publish(&events.Event{Type: events.EventTransactionCommitted, Message: string(txID)})
	}
	log.WithTxID(string(txID)).Info().Msg("transaction committed")
	return snap.ID, nil
}

// Abort discards every staged write and releases the transaction.
func (m *Manager) Abort(txID types.TransactionID) error {
	st, err := m.activeState(txID)
	if err != nil {
		return err
	}
	m.abort(st, nil)
	return nil
}

func (m *Manager) abort(st *txState, cause error) {
	m.mu.Lock()
	st.tx.State = types.TxAborted
	delete(m.txns, st.tx.ID)
	m.mu.Unlock()

	metrics.ActiveTransactions.Dec()
	metrics.TransactionsTotal.WithLabelValues(string(st.tx.IsolationLevel), "aborted").Inc()
	_ = m.db.AbortMarker(st.tx.ID)

	if m.broker != nil {
		m.broker.Publish(&events.Event{Type: events.EventTransactionAborted, Message: string(st.tx.ID)})
	}
	logEvt := log.WithTxID(string(st.tx.ID)).Warn()
	if cause != nil {
		logEvt = logEvt.Err(cause)
	}
	logEvt.Msg("transaction aborted")
}

// SweepExpired aborts every transaction whose lifetime has exceeded
// DefaultTransactionTimeout; invoked periodically by pkg/housekeeper.
func (m *Manager) SweepExpired() (int, error) {
	m.mu.Lock()
	var expired []*txState
	for _, st := range m.txns {
		if time.Since(st.tx.StartedAt) > m.timeout {
			expired = append(expired, st)
		}
	}
	m.mu.Unlock()

	for _, st := range expired {
		m.mu.Lock()
		st.tx.State = types.TxFailed
		m.mu.Unlock()
		m.abort(st, errs.Transaction("txn.Manager.SweepExpired", "transaction exceeded timeout"))
	}
	return len(expired), nil
}

func (m *Manager) activeState(txID types.TransactionID) (*txState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.txns[txID]
	if !ok {
		return nil, errs.NotFound("txn.Manager", "transaction", string(txID))
	}
	if st.tx.State != types.TxActive && st.tx.State != types.TxPreparing && st.tx.State != types.TxPrepared {
		return nil, errs.Transaction("txn.Manager", "transaction is not active")
	}
	return st, nil
}

// Get returns a copy of the transaction's current public state.
func (m *Manager) Get(txID types.TransactionID) (*types.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.txns[txID]
	if !ok {
		return nil, errs.NotFound("txn.Manager.Get", "transaction", string(txID))
	}
	txCopy := st.tx
	return &txCopy, nil
}

// ActiveCount backs pkg/metrics.Source.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.txns)
}
