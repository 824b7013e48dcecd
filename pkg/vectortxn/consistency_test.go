package vectortxn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphmind/codegraph/pkg/types"
	"github.com/graphmind/codegraph/pkg/vector"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	cfg := vector.DefaultConfig()
	cfg.BatchTimeout = 5 * time.Millisecond
	eng, err := vector.NewEngine(t.TempDir(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	m := New(eng, nil)
	t.Cleanup(m.Close)
	return m
}

func TestBeginAddCommit(t *testing.T) {
	m := newTestManager(t)
	txID := m.BeginVectorTx(types.ReadCommitted)

	require.NoError(t, m.AddOp(txID, types.VectorOperation{Kind: types.VectorInsert, NodeID: "n1", Vector: []float32{1, 2, 3}}))
	require.NoError(t, m.PrepareVectorTx(txID))
	require.NoError(t, m.CommitVectorTx(txID))

	v, ok := m.engine.Lookup("n1")
	assert.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, v)
}

func TestPrepareDetectsWriteWriteConflictUnderSerializable(t *testing.T) {
	m := newTestManager(t)
	tx1 := m.BeginVectorTx(types.Serializable)
	tx2 := m.BeginVectorTx(types.Serializable)

	require.NoError(t, m.AddOp(tx1, types.VectorOperation{Kind: types.VectorInsert, NodeID: "n1", Vector: []float32{1}}))
	require.NoError(t, m.AddOp(tx2, types.VectorOperation{Kind: types.VectorInsert, NodeID: "n1", Vector: []float32{2}}))

	assert.Error(t, m.PrepareVectorTx(tx1), "tx2 is still active with n1 in its write set")
	err := m.PrepareVectorTx(tx2)
	assert.Error(t, err)
}

func TestAbortReturnsInverseOps(t *testing.T) {
	m := newTestManager(t)
	txID := m.BeginVectorTx(types.ReadCommitted)
	require.NoError(t, m.AddOp(txID, types.VectorOperation{Kind: types.VectorInsert, NodeID: "n1", Vector: []float32{1, 2}}))

	inverse, err := m.AbortVectorTx(txID)
	require.NoError(t, err)
	require.Len(t, inverse, 1)
	assert.Equal(t, types.VectorDelete, inverse[0].Kind)
	assert.Equal(t, types.NodeID("n1"), inverse[0].NodeID)
}

func TestLockTableCompatibility(t *testing.T) {
	assert.True(t, compatible(Shared, Shared))
	assert.False(t, compatible(Shared, Exclusive))
	assert.False(t, compatible(Exclusive, Shared))
	assert.True(t, compatible(IntentionShared, IntentionExclusive))
	assert.False(t, compatible(IntentionExclusive, Shared))
}

func TestAcquireLockBlocksIncompatibleMode(t *testing.T) {
	lt := newLockTable()
	stop := make(chan struct{})
	defer close(stop)

	require.NoError(t, lt.acquire("n1", "tx1", Exclusive, time.Second, stop))

	err := lt.acquire("n1", "tx2", Shared, 50*time.Millisecond, stop)
	assert.Error(t, err, "tx2 should time out waiting for an incompatible exclusive lock")

	lt.release("n1", "tx1")
	require.NoError(t, lt.acquire("n1", "tx2", Shared, time.Second, stop))
}

func TestDetectDeadlocksBreaksCycle(t *testing.T) {
	m := newTestManager(t)
	tx1 := m.BeginVectorTx(types.ReadCommitted)
	time.Sleep(time.Millisecond)
	tx2 := m.BeginVectorTx(types.ReadCommitted)

	require.NoError(t, m.AcquireLock(tx1, "n1", Exclusive))
	require.NoError(t, m.AcquireLock(tx2, "n2", Exclusive))

	go func() { _ = m.AcquireLock(tx1, "n2", Exclusive) }()
	go func() { _ = m.AcquireLock(tx2, "n1", Exclusive) }()

	time.Sleep(20 * time.Millisecond)
	broken, err := m.DetectDeadlocks()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, broken, 0)
}

func TestCreateCheckpointRetainsMostRecent(t *testing.T) {
	m := newTestManager(t)
	for i := 0; i < maxRetainedCheckpoints+3; i++ {
		m.CreateCheckpoint()
	}
	assert.Len(t, m.Checkpoints(), maxRetainedCheckpoints)
}
