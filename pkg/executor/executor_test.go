package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphmind/codegraph/pkg/embedprovider"
	"github.com/graphmind/codegraph/pkg/storage"
	"github.com/graphmind/codegraph/pkg/tools"
	"github.com/graphmind/codegraph/pkg/types"
	"github.com/graphmind/codegraph/pkg/vector"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	db, err := storage.Open(t.TempDir(), 64)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	vecEngine, err := vector.NewEngine(t.TempDir(), vector.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = vecEngine.Close() })

	catalogue := tools.New(db, vecEngine, embedprovider.NewFake(8), nil)

	_, err = db.Nodes.Put(types.TransactionID("setup"), &types.Node{
		ID: "n1", Labels: []string{"Function"}, Properties: map[string]any{"complexity": 3.0},
	})
	require.NoError(t, err)

	ex, err := New(catalogue, DefaultConfig())
	require.NoError(t, err)
	return ex
}

func TestInvokeUnknownToolReturnsSchemaError(t *testing.T) {
	ex := newTestExecutor(t)
	_, err := ex.Invoke(context.Background(), "proj", "does_not_exist", "", nil)
	require.Error(t, err)
}

func TestInvokeMissingRequiredParamErrors(t *testing.T) {
	ex := newTestExecutor(t)
	_, err := ex.Invoke(context.Background(), "proj", "get_transitive_dependencies", "", map[string]any{})
	require.Error(t, err)
}

func TestInvokeCachesRepeatCalls(t *testing.T) {
	ex := newTestExecutor(t)
	params := map[string]any{"node_id": "n1"}

	r1, err := ex.Invoke(context.Background(), "proj", "calculate_coupling_metrics", "", params)
	require.NoError(t, err)
	require.NotNil(t, r1)

	hitsBefore, _, _ := ex.CacheStats()

	r2, err := ex.Invoke(context.Background(), "proj", "calculate_coupling_metrics", "", params)
	require.NoError(t, err)

	hitsAfter, _, _ := ex.CacheStats()
	assert.Greater(t, hitsAfter, hitsBefore)
	assert.Equal(t, r1.Result, r2.Result)
}

func TestClearCacheResetsEntries(t *testing.T) {
	ex := newTestExecutor(t)
	params := map[string]any{"node_id": "n1"}
	_, err := ex.Invoke(context.Background(), "proj", "calculate_coupling_metrics", "", params)
	require.NoError(t, err)

	assert.Equal(t, 1, ex.Cache().Len())
	ex.ClearCache()
	assert.Equal(t, 0, ex.Cache().Len())
}

func TestTruncateResultShrinksOversizedArray(t *testing.T) {
	result := map[string]any{
		"items": []string{"aaaaaaaaaa", "bbbbbbbbbb", "cccccccccc", "dddddddddd"},
	}
	out := truncateResult("fake_tool", result, 60)

	m := out.(map[string]any)
	meta, ok := m["_truncated"].(truncated)
	require.True(t, ok)
	assert.Less(t, meta.KeptItems, meta.OriginalItems)
	assert.Equal(t, meta.OriginalItems-meta.KeptItems, meta.TruncatedItems)
}
