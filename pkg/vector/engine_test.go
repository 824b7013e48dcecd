package vector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphmind/codegraph/pkg/types"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.BatchTimeout = 5 * time.Millisecond
	e, err := NewEngine(t.TempDir(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestSubmitInsertAndLookup(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Submit(types.VectorOperation{Kind: types.VectorInsert, NodeID: "n1", Vector: []float32{1, 0, 0}}))

	v, ok := e.Lookup("n1")
	assert.True(t, ok)
	assert.Equal(t, []float32{1, 0, 0}, v)
}

func TestSubmitDeleteTombstonesAcrossSegments(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Submit(types.VectorOperation{Kind: types.VectorInsert, NodeID: "n1", Vector: []float32{1, 0, 0}}))
	require.NoError(t, e.Submit(types.VectorOperation{Kind: types.VectorDelete, NodeID: "n1"}))

	_, ok := e.Lookup("n1")
	assert.False(t, ok)
}

func TestSearchRanksByCosineSimilarity(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Submit(types.VectorOperation{Kind: types.VectorInsert, NodeID: "close", Vector: []float32{1, 0, 0}}))
	require.NoError(t, e.Submit(types.VectorOperation{Kind: types.VectorInsert, NodeID: "orthogonal", Vector: []float32{0, 1, 0}}))

	results := e.Search([]float32{1, 0, 0}, 5, 0.0)
	require.NotEmpty(t, results)
	assert.Equal(t, types.NodeID("close"), results[0].NodeID)
}

func TestUpsertSealsSegmentWhenOverSize(t *testing.T) {
	e := newTestEngine(t)
	e.cfg.MaxSegmentSize = 32 // tiny: a 3-float32 vector plus overhead already exceeds this

	require.NoError(t, e.Submit(types.VectorOperation{Kind: types.VectorInsert, NodeID: "n1", Vector: []float32{1, 2, 3}}))
	require.NoError(t, e.Submit(types.VectorOperation{Kind: types.VectorInsert, NodeID: "n2", Vector: []float32{4, 5, 6}}))

	open, sealed, err := e.VectorSegmentCounts()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, sealed, 1)
	assert.Equal(t, 1, open)
}

func TestMergeSegmentsCombinesSmallSealedSegments(t *testing.T) {
	e := newTestEngine(t)
	e.cfg.MaxSegmentSize = 32

	require.NoError(t, e.Submit(types.VectorOperation{Kind: types.VectorInsert, NodeID: "n1", Vector: []float32{1, 2, 3}}))
	require.NoError(t, e.Submit(types.VectorOperation{Kind: types.VectorInsert, NodeID: "n2", Vector: []float32{4, 5, 6}}))
	require.NoError(t, e.Submit(types.VectorOperation{Kind: types.VectorInsert, NodeID: "n3", Vector: []float32{7, 8, 9}}))

	merged, err := e.MergeEligibleSegments()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, merged, 0)

	v, ok := e.Lookup("n1")
	assert.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, v)
}

func TestStatsTracksOperations(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Submit(types.VectorOperation{Kind: types.VectorInsert, NodeID: "n1", Vector: []float32{1, 0, 0}}))
	require.NoError(t, e.Submit(types.VectorOperation{Kind: types.VectorInsert, NodeID: "n2", Vector: []float32{0, 1, 0}}))

	s := e.Stats()
	assert.Equal(t, int64(2), s.TotalOperations)
	assert.Equal(t, int64(2), s.SuccessfulOperations)
	assert.GreaterOrEqual(t, s.BatchesProcessed, int64(1))
}

func TestRecoveryReplaysWAL(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.BatchTimeout = 5 * time.Millisecond

	e1, err := NewEngine(dir, cfg)
	require.NoError(t, err)
	require.NoError(t, e1.Submit(types.VectorOperation{Kind: types.VectorInsert, NodeID: "n1", Vector: []float32{1, 2, 3}}))
	require.NoError(t, e1.wal.flush())
	require.NoError(t, e1.Close())

	e2, err := NewEngine(dir, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e2.Close() })

	v, ok := e2.Lookup("n1")
	assert.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, v)
}
