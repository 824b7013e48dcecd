package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphmind/codegraph/pkg/embedprovider"
	"github.com/graphmind/codegraph/pkg/storage"
	"github.com/graphmind/codegraph/pkg/types"
	"github.com/graphmind/codegraph/pkg/vector"
)

func newTestCatalogue(t *testing.T) *Catalogue {
	t.Helper()
	db, err := storage.Open(t.TempDir(), 64)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	vecEngine, err := vector.NewEngine(t.TempDir(), vector.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = vecEngine.Close() })

	return New(db, vecEngine, embedprovider.NewFake(8), nil)
}

func putNode(t *testing.T, c *Catalogue, id types.NodeID, labels []string, props map[string]any) {
	t.Helper()
	_, err := c.db.Nodes.Put(types.TransactionID("setup"), &types.Node{
		ID: id, Labels: labels, Properties: props,
	})
	require.NoError(t, err)
}

func putEdge(t *testing.T, c *Catalogue, from, to types.NodeID, typ types.EdgeType) {
	t.Helper()
	err := c.db.Edges.Put(&types.Edge{
		ID: types.EdgeID(string(from) + "->" + string(to)), From: from, To: to, Type: typ,
	})
	require.NoError(t, err)
}

func buildChain(t *testing.T, c *Catalogue) {
	putNode(t, c, "a", []string{"Function"}, map[string]any{"complexity": 2.0})
	putNode(t, c, "b", []string{"Function"}, map[string]any{"complexity": 8.0})
	putNode(t, c, "c", []string{"Function"}, map[string]any{"complexity": 1.0})
	putEdge(t, c, "a", "b", types.EdgeCalls)
	putEdge(t, c, "b", "c", types.EdgeCalls)
}

func TestTransitiveDependenciesReachesAcrossDepth(t *testing.T) {
	c := newTestCatalogue(t)
	buildChain(t, c)

	tool, err := c.Lookup("get_transitive_dependencies")
	require.NoError(t, err)

	params, err := tool.Schema().ApplyDefaults("test", map[string]any{"node_id": "a"})
	require.NoError(t, err)

	res, err := tool.Execute(context.Background(), c, "", params)
	require.NoError(t, err)

	out := res.(map[string]any)
	deps := out["dependencies"].([]reached)
	assert.Len(t, deps, 2)
	assert.Equal(t, types.NodeID("b"), deps[0].NodeID)
	assert.Equal(t, 1, deps[0].Depth)
	assert.Equal(t, types.NodeID("c"), deps[1].NodeID)
	assert.Equal(t, 2, deps[1].Depth)
}

func TestReverseDependenciesWalksIncomingEdges(t *testing.T) {
	c := newTestCatalogue(t)
	buildChain(t, c)

	tool, err := c.Lookup("get_reverse_dependencies")
	require.NoError(t, err)
	params, err := tool.Schema().ApplyDefaults("test", map[string]any{"node_id": "c", "depth": 2})
	require.NoError(t, err)

	res, err := tool.Execute(context.Background(), c, "", params)
	require.NoError(t, err)

	out := res.(map[string]any)
	deps := out["dependents"].([]reached)
	assert.Len(t, deps, 2)
}

func TestDetectCircularDependenciesFindsSCC(t *testing.T) {
	c := newTestCatalogue(t)
	putNode(t, c, "a", nil, nil)
	putNode(t, c, "b", nil, nil)
	putEdge(t, c, "a", "b", types.EdgeImports)
	putEdge(t, c, "b", "a", types.EdgeImports)

	tool, err := c.Lookup("detect_circular_dependencies")
	require.NoError(t, err)
	params, err := tool.Schema().ApplyDefaults("test", map[string]any{})
	require.NoError(t, err)

	res, err := tool.Execute(context.Background(), c, "", params)
	require.NoError(t, err)

	out := res.(map[string]any)
	cycles := out["cycles"]
	assert.NotNil(t, cycles)
}

func TestTraceCallChainReturnsOrderedPath(t *testing.T) {
	c := newTestCatalogue(t)
	buildChain(t, c)

	tool, err := c.Lookup("trace_call_chain")
	require.NoError(t, err)
	params, err := tool.Schema().ApplyDefaults("test", map[string]any{"from_node": "a"})
	require.NoError(t, err)

	res, err := tool.Execute(context.Background(), c, "", params)
	require.NoError(t, err)

	out := res.(map[string]any)
	paths := out["paths"].([][]types.NodeID)
	require.Len(t, paths, 1)
	assert.Equal(t, []types.NodeID{"a", "b", "c"}, paths[0])
}

func TestCalculateCouplingMetrics(t *testing.T) {
	c := newTestCatalogue(t)
	buildChain(t, c)

	tool, err := c.Lookup("calculate_coupling_metrics")
	require.NoError(t, err)
	params, err := tool.Schema().ApplyDefaults("test", map[string]any{"node_id": "b"})
	require.NoError(t, err)

	res, err := tool.Execute(context.Background(), c, "", params)
	require.NoError(t, err)

	out := res.(map[string]any)
	assert.Equal(t, 1, out["ca"])
	assert.Equal(t, 1, out["ce"])
	assert.Equal(t, 0.5, out["i"])
}

func TestGetHubNodesFiltersByMinDegree(t *testing.T) {
	c := newTestCatalogue(t)
	buildChain(t, c)

	tool, err := c.Lookup("get_hub_nodes")
	require.NoError(t, err)
	params, err := tool.Schema().ApplyDefaults("test", map[string]any{"min_degree": 2})
	require.NoError(t, err)

	res, err := tool.Execute(context.Background(), c, "", params)
	require.NoError(t, err)

	out := res.(map[string]any)
	hubs := out["hubs"]
	assert.NotNil(t, hubs)
}

func TestFindComplexityHotspotsOrdersDescending(t *testing.T) {
	c := newTestCatalogue(t)
	buildChain(t, c)

	tool, err := c.Lookup("find_complexity_hotspots")
	require.NoError(t, err)
	params, err := tool.Schema().ApplyDefaults("test", map[string]any{"min_complexity": 0.0})
	require.NoError(t, err)

	res, err := tool.Execute(context.Background(), c, "", params)
	require.NoError(t, err)

	out := res.(map[string]any)
	hotspots := out["hotspots"]
	require.NotNil(t, hotspots)
}

func TestSemanticCodeSearchEmbedsAndEnriches(t *testing.T) {
	c := newTestCatalogue(t)
	buildChain(t, c)

	tool, err := c.Lookup("semantic_code_search")
	require.NoError(t, err)
	params, err := tool.Schema().ApplyDefaults("test", map[string]any{"query": "find a function", "threshold": -1.0})
	require.NoError(t, err)

	res, err := tool.Execute(context.Background(), c, "", params)
	require.NoError(t, err)

	out := res.(map[string]any)
	assert.Equal(t, "find a function", out["query"])
}

func TestLookupUnknownToolErrors(t *testing.T) {
	c := newTestCatalogue(t)
	_, err := c.Lookup("not_a_tool")
	assert.Error(t, err)
}
