package txn

import (
	"github.com/graphmind/codegraph/pkg/errs"
	"github.com/graphmind/codegraph/pkg/types"
)

// validate enforces the conflict-detection rule for the transaction's
// isolation level. ReadUncommitted and ReadCommitted never conflict with
// concurrent commits by design. RepeatableRead rejects the commit if any
// node it wrote has been committed by someone else since this
// transaction's snapshot was taken (a write-write conflict). Serializable
// additionally rejects the commit if any node it only read has since
// changed (preventing write skew between concurrent transactions that
// read overlapping state and write disjoint state).
func (m *Manager) validate(st *txState) error {
	switch st.tx.IsolationLevel {
	case types.ReadUncommitted, types.ReadCommitted:
		return nil
	case types.RepeatableRead:
		return m.checkUnchangedSinceSnapshot(st, writeSetIDs(st))
	case types.Serializable:
		ids := writeSetIDs(st)
		for id := range st.tx.ReadSet {
			ids = append(ids, id)
		}
		return m.checkUnchangedSinceSnapshot(st, ids)
	default:
		return errs.Configuration("txn.Manager.validate", "unknown isolation level")
	}
}

func writeSetIDs(st *txState) []types.NodeID {
	ids := make([]types.NodeID, 0, len(st.tx.WriteSet))
	for id := range st.tx.WriteSet {
		ids = append(ids, id)
	}
	return ids
}

func (m *Manager) checkUnchangedSinceSnapshot(st *txState, ids []types.NodeID) error {
	snap, err := m.db.Snapshots.Get(st.tx.SnapshotID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		snapHash, hadSnap := snap.NodeVersions[id]
		currentHash, hasCurrent, err := m.db.CurrentHash(id)
		if err != nil {
			return err
		}
		if hadSnap != hasCurrent || (hadSnap && snapHash != currentHash) {
			return errs.Transaction("txn.Manager.validate", "conflicting concurrent write to node "+string(id))
		}
	}
	return nil
}
