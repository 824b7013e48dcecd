package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphmind/codegraph/pkg/errs"
	"github.com/graphmind/codegraph/pkg/types"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir(), 64)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBlobStorePutIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	h1, err := db.Blobs.Put([]byte("hello"))
	require.NoError(t, err)
	h2, err := db.Blobs.Put([]byte("hello"))
	require.NoError(t, err)

	assert.Equal(t, h1, h2)

	data, err := db.Blobs.Get(h1)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
}

func TestNodeStorePutGetRoundTrip(t *testing.T) {
	db := openTestDB(t)

	node := &types.Node{
		ID:         types.NodeID("n1"),
		Labels:     []string{"Function"},
		Properties: map[string]any{"language": "go", "complexity": 3.0},
		Version:    1,
	}
	_, err := db.Nodes.Put(types.TransactionID("tx1"), node)
	require.NoError(t, err)

	got, err := db.Nodes.Get(node.ID)
	require.NoError(t, err)
	assert.Equal(t, "go", got.Language())
	assert.Equal(t, float64(3), got.Complexity())
}

func TestNodeStoreByLabelAndProperty(t *testing.T) {
	db := openTestDB(t)

	a := &types.Node{ID: "a", Labels: []string{"Function"}, Properties: map[string]any{"language": "go"}, Version: 1}
	b := &types.Node{ID: "b", Labels: []string{"Function"}, Properties: map[string]any{"language": "rust"}, Version: 1}
	require.NoError(t, mustPut(db, a))
	require.NoError(t, mustPut(db, b))

	ids, err := db.Nodes.ByLabel("Function")
	require.NoError(t, err)
	assert.ElementsMatch(t, []types.NodeID{"a", "b"}, ids)

	goIDs, err := db.Nodes.ByProperty("language", "go")
	require.NoError(t, err)
	assert.Equal(t, []types.NodeID{"a"}, goIDs)
}

func mustPut(db *DB, n *types.Node) error {
	_, err := db.Nodes.Put("tx", n)
	return err
}

func TestNodeStoreDeleteRemovesIndices(t *testing.T) {
	db := openTestDB(t)
	n := &types.Node{ID: "a", Labels: []string{"Function"}, Properties: map[string]any{}, Version: 1}
	require.NoError(t, mustPut(db, n))

	require.NoError(t, db.Nodes.Delete("tx", n.ID))

	_, err := db.Nodes.Get(n.ID)
	assert.Error(t, err)

	ids, err := db.Nodes.ByLabel("Function")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestEdgeStoreOutgoingIncoming(t *testing.T) {
	db := openTestDB(t)
	edge := &types.Edge{ID: "e1", From: "a", To: "b", Type: types.EdgeCalls, Weight: 1}
	require.NoError(t, db.Edges.Put(edge))

	out, err := db.Edges.Outgoing("a")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, types.EdgeID("e1"), out[0].ID)

	in, err := db.Edges.Incoming("b")
	require.NoError(t, err)
	require.Len(t, in, 1)
}

func TestWALAppendAndReadFrom(t *testing.T) {
	db := openTestDB(t)
	n := &types.Node{ID: "a", Labels: []string{"X"}, Properties: map[string]any{}, Version: 1}
	_, err := db.Nodes.Put("tx1", n)
	require.NoError(t, err)

	last, err := db.WAL.LastSequence()
	require.NoError(t, err)
	assert.Equal(t, types.WALSequence(1), last)

	entries, err := db.WAL.ReadFrom(0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, types.TransactionID("tx1"), entries[0].TransactionID)
}

func TestSnapshotCreateAndDiff(t *testing.T) {
	db := openTestDB(t)
	n := &types.Node{ID: "a", Labels: []string{"X"}, Properties: map[string]any{}, Version: 1}
	require.NoError(t, mustPut(db, n))

	snap1, err := db.Snapshots.Create("tx1", "")
	require.NoError(t, err)

	n.Properties["changed"] = true
	n.Version = 2
	require.NoError(t, mustPut(db, n))

	snap2, err := db.Snapshots.Create("tx2", snap1.ID)
	require.NoError(t, err)

	diffs, err := db.Snapshots.Diff(snap1.ID, snap2.ID)
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	assert.Equal(t, DiffModified, diffs[0].Kind)
}

func TestTagVersionByTagRoundTrip(t *testing.T) {
	db := openTestDB(t)
	snap, err := db.Snapshots.Create("tx1", "")
	require.NoError(t, err)

	v, err := db.Snapshots.TagVersion(snap.ID, "v1", "alice", "first cut", nil)
	require.NoError(t, err)

	require.NoError(t, db.Snapshots.Tag(v.ID, "stable"))

	got, err := db.Snapshots.GetVersionByTag("stable")
	require.NoError(t, err)
	assert.Equal(t, v.ID, got.ID)
	assert.Contains(t, got.Tags, "stable")
}

func TestTagRebindsToNewVersion(t *testing.T) {
	db := openTestDB(t)
	snap, err := db.Snapshots.Create("tx1", "")
	require.NoError(t, err)

	v1, err := db.Snapshots.TagVersion(snap.ID, "v1", "alice", "first cut", nil)
	require.NoError(t, err)
	v2, err := db.Snapshots.TagVersion(snap.ID, "v2", "alice", "second cut", []types.VersionID{v1.ID})
	require.NoError(t, err)

	require.NoError(t, db.Snapshots.Tag(v1.ID, "stable"))
	require.NoError(t, db.Snapshots.Tag(v2.ID, "stable"))

	got, err := db.Snapshots.GetVersionByTag("stable")
	require.NoError(t, err)
	assert.Equal(t, v2.ID, got.ID)

	reloadedV1, err := db.Snapshots.GetVersion(v1.ID)
	require.NoError(t, err)
	assert.NotContains(t, reloadedV1.Tags, "stable")
}

func TestGetVersionByTagUnknownTagReturnsNotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Snapshots.GetVersionByTag("does-not-exist")
	assert.True(t, errs.Is(err, errs.KindNotFound))
}

func TestRecoveryCheckpointAndTruncate(t *testing.T) {
	db := openTestDB(t)
	n := &types.Node{ID: "a", Labels: []string{"X"}, Properties: map[string]any{}, Version: 1}
	require.NoError(t, mustPut(db, n))

	require.NoError(t, db.Checkpoint())
	require.NoError(t, db.TruncateWAL())

	cp, ok, err := Recover(db).LatestCheckpoint()
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, cp.SnapshotID)
}

func TestVerifyIntegrityPassesOnCleanStore(t *testing.T) {
	db := openTestDB(t)
	n := &types.Node{ID: "a", Labels: []string{"X"}, Properties: map[string]any{}, Version: 1}
	require.NoError(t, mustPut(db, n))

	assert.NoError(t, Recover(db).VerifyIntegrity())
}
