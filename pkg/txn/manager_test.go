package txn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphmind/codegraph/pkg/storage"
	"github.com/graphmind/codegraph/pkg/types"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	db, err := storage.Open(t.TempDir(), 64)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, nil)
}

func TestBeginReadWriteCommit(t *testing.T) {
	m := newTestManager(t)

	tx, err := m.Begin(types.ReadCommitted)
	require.NoError(t, err)

	node := &types.Node{ID: "n1", Labels: []string{"Function"}, Properties: map[string]any{}, Version: 1}
	require.NoError(t, m.Write(tx.ID, node))

	got, err := m.Read(tx.ID, "n1")
	require.NoError(t, err)
	assert.Equal(t, types.NodeID("n1"), got.ID)

	_, err = m.Commit(tx.ID)
	require.NoError(t, err)

	_, err = m.Get(tx.ID)
	assert.Error(t, err, "transaction should no longer be active after commit")
}

func TestCommitProducesNewSnapshot(t *testing.T) {
	db, err := storage.Open(t.TempDir(), 64)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	m := New(db, nil)

	before, err := db.SnapshotCount()
	require.NoError(t, err)

	tx, err := m.Begin(types.ReadCommitted)
	require.NoError(t, err)
	node := &types.Node{ID: "n1", Labels: []string{"Function"}, Properties: map[string]any{}, Version: 1}
	require.NoError(t, m.Write(tx.ID, node))
	commitSnap1, err := m.Commit(tx.ID)
	require.NoError(t, err)

	after, err := db.SnapshotCount()
	require.NoError(t, err)
	assert.Greater(t, after, before, "commit should create a new snapshot")

	tx2, err := m.Begin(types.ReadCommitted)
	require.NoError(t, err)
	node.Properties["changed"] = true
	node.Version = 2
	require.NoError(t, m.Write(tx2.ID, node))
	commitSnap2, err := m.Commit(tx2.ID)
	require.NoError(t, err)

	// db.Snapshots.Diff between the two commit snapshots should surface the
	// write as a modification, matching spec's "create, update, diff" law.
	diffs, err := db.Snapshots.Diff(commitSnap1, commitSnap2)
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	assert.Equal(t, storage.DiffModified, diffs[0].Kind)
}

func TestSerializableDetectsWriteSkew(t *testing.T) {
	m := newTestManager(t)

	base, err := m.Begin(types.ReadCommitted)
	require.NoError(t, err)
	require.NoError(t, m.Write(base.ID, &types.Node{ID: "n1", Properties: map[string]any{}, Version: 1}))
	_, err = m.Commit(base.ID)
	require.NoError(t, err)

	tx1, err := m.Begin(types.Serializable)
	require.NoError(t, err)
	tx2, err := m.Begin(types.Serializable)
	require.NoError(t, err)

	_, err = m.Read(tx1.ID, "n1")
	require.NoError(t, err)
	_, err = m.Read(tx2.ID, "n1")
	require.NoError(t, err)

	require.NoError(t, m.Write(tx1.ID, &types.Node{ID: "n1", Properties: map[string]any{"v": 1}, Version: 2}))
	_, err = m.Commit(tx1.ID)
	require.NoError(t, err)

	require.NoError(t, m.Write(tx2.ID, &types.Node{ID: "n2", Properties: map[string]any{}, Version: 1}))
	_, err = m.Commit(tx2.ID)
	assert.Error(t, err, "tx2 read n1 which changed since its snapshot, so Serializable must reject the commit")
}

func TestReadCommittedAllowsConcurrentUnrelatedWrites(t *testing.T) {
	m := newTestManager(t)

	tx1, err := m.Begin(types.ReadCommitted)
	require.NoError(t, err)
	tx2, err := m.Begin(types.ReadCommitted)
	require.NoError(t, err)

	require.NoError(t, m.Write(tx1.ID, &types.Node{ID: "n1", Properties: map[string]any{}, Version: 1}))
	_, err = m.Commit(tx1.ID)
	require.NoError(t, err)

	require.NoError(t, m.Write(tx2.ID, &types.Node{ID: "n2", Properties: map[string]any{}, Version: 1}))
	_, err = m.Commit(tx2.ID)
	assert.NoError(t, err)
}

func TestAbortDiscardsWrites(t *testing.T) {
	m := newTestManager(t)

	tx, err := m.Begin(types.ReadCommitted)
	require.NoError(t, err)
	require.NoError(t, m.Write(tx.ID, &types.Node{ID: "n1", Properties: map[string]any{}, Version: 1}))
	require.NoError(t, m.Abort(tx.ID))

	_, err = m.db.Get("n1")
	assert.Error(t, err)
}

func TestSweepExpired(t *testing.T) {
	m := newTestManager(t)
	m.timeout = 0 // force immediate expiry

	tx, err := m.Begin(types.ReadCommitted)
	require.NoError(t, err)

	n, err := m.SweepExpired()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = m.Get(tx.ID)
	assert.Error(t, err)
}
