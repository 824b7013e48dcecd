package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphmind/codegraph/pkg/embedprovider"
	"github.com/graphmind/codegraph/pkg/executor"
	"github.com/graphmind/codegraph/pkg/llmprovider"
	"github.com/graphmind/codegraph/pkg/storage"
	"github.com/graphmind/codegraph/pkg/tools"
	"github.com/graphmind/codegraph/pkg/types"
	"github.com/graphmind/codegraph/pkg/vector"
)

func newTestOrchestrator(t *testing.T, responses ...llmprovider.Response) *Orchestrator {
	t.Helper()
	db, err := storage.Open(t.TempDir(), 64)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	vecEngine, err := vector.NewEngine(t.TempDir(), vector.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = vecEngine.Close() })

	catalogue := tools.New(db, vecEngine, embedprovider.NewFake(8), nil)
	ex, err := executor.New(catalogue, executor.DefaultConfig())
	require.NoError(t, err)

	fake := llmprovider.NewFake(responses...)
	return New(fake, ex)
}

func TestRunStopsOnFinalAnswer(t *testing.T) {
	o := newTestOrchestrator(t, llmprovider.Response{
		Message: llmprovider.Message{Content: `{"reasoning":"done","is_final":true,"answer":"no dependencies found"}`},
	})

	var notifications []Notification
	res, err := o.Run(context.Background(), Request{
		AnalysisType: AnalysisCodeSearch,
		Query:        "what does this do",
		Sink:         func(n Notification) { notifications = append(notifications, n) },
	})
	require.NoError(t, err)
	assert.Equal(t, "no dependencies found", res.Answer)
	assert.Equal(t, 1, res.StepsTaken)
	require.Len(t, notifications, 3)
	assert.Equal(t, 0.0, notifications[0].Params.Progress)
	assert.Equal(t, 0.5, notifications[1].Params.Progress)
	assert.Equal(t, 1.0, notifications[2].Params.Progress)
}

func TestRunDispatchesToolCallThenFinishes(t *testing.T) {
	db, err := storage.Open(t.TempDir(), 64)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Nodes.Put(types.TransactionID("setup"), &types.Node{ID: "n1", Labels: []string{"Function"}})
	require.NoError(t, err)

	vecEngine, err := vector.NewEngine(t.TempDir(), vector.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = vecEngine.Close() })

	catalogue := tools.New(db, vecEngine, embedprovider.NewFake(8), nil)
	ex, err := executor.New(catalogue, executor.DefaultConfig())
	require.NoError(t, err)

	fake := llmprovider.NewFake(
		llmprovider.Response{Message: llmprovider.Message{
			Content: `{"reasoning":"check deps","tool_call":{"tool_name":"calculate_coupling_metrics","parameters":{"node_id":"n1"}},"is_final":false}`,
		}},
		llmprovider.Response{Message: llmprovider.Message{
			Content: `{"reasoning":"done","is_final":true,"answer":"node n1 has no coupling"}`,
		}},
	)
	o := New(fake, ex)

	res, err := o.Run(context.Background(), Request{AnalysisType: AnalysisCouplingReview, Query: "analyse n1"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.StepsTaken)
	assert.Equal(t, "node n1 has no coupling", res.Answer)
}

func TestRunDependencyAnalysisBackfillsComponentsFromToolResults(t *testing.T) {
	db, err := storage.Open(t.TempDir(), 64)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Nodes.Put(types.TransactionID("setup"), &types.Node{
		ID: "n1", Labels: []string{"Function"}, Properties: map[string]any{"location": "pkg/foo/bar.go"},
	})
	require.NoError(t, err)
	_, err = db.Nodes.Put(types.TransactionID("setup"), &types.Node{
		ID: "n2", Labels: []string{"Function"}, Properties: map[string]any{"location": "pkg/foo/baz.go"},
	})
	require.NoError(t, err)
	edge := &types.Edge{ID: "e1", From: "n1", To: "n2", Type: types.EdgeCalls, Weight: 1}
	require.NoError(t, db.Edges.Put(edge))

	vecEngine, err := vector.NewEngine(t.TempDir(), vector.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = vecEngine.Close() })

	catalogue := tools.New(db, vecEngine, embedprovider.NewFake(8), nil)
	ex, err := executor.New(catalogue, executor.DefaultConfig())
	require.NoError(t, err)

	fake := llmprovider.NewFake(
		llmprovider.Response{Message: llmprovider.Message{
			Content: `{"reasoning":"walk deps","tool_call":{"tool_name":"get_transitive_dependencies","parameters":{"node_id":"n1"}},"is_final":false}`,
		}},
		llmprovider.Response{Message: llmprovider.Message{
			Content: `{"reasoning":"done","is_final":true,"answer":{"dependencies":["n2"],"summary":"n1 calls n2"}}`,
		}},
	)
	o := New(fake, ex)

	res, err := o.Run(context.Background(), Request{AnalysisType: AnalysisDependencyReview, Query: "what does n1 depend on"})
	require.NoError(t, err)

	structured, ok := res.StructuredOutput.(map[string]any)
	require.True(t, ok, "dependency analysis must produce a structured answer")
	components, ok := structured["components"].([]map[string]any)
	require.True(t, ok, "components must be assembled even though the model omitted them")
	require.Len(t, components, 2)
	var paths []string
	for _, c := range components {
		path, ok := c["file_path"].(string)
		require.True(t, ok)
		assert.NotEmpty(t, path, "every component must carry a non-empty file_path sourced from tool results")
		paths = append(paths, path)
	}
	assert.ElementsMatch(t, []string{"pkg/foo/bar.go", "pkg/foo/baz.go"}, paths)
}

func TestRunStopsAtTierStepCap(t *testing.T) {
	responses := make([]llmprovider.Response, 0, 10)
	for i := 0; i < 10; i++ {
		responses = append(responses, llmprovider.Response{Message: llmprovider.Message{
			Content: `{"reasoning":"still working","tool_call":{"tool_name":"get_hub_nodes","parameters":{}},"is_final":false}`,
		}})
	}
	o := newTestOrchestrator(t, responses...)

	res, err := o.Run(context.Background(), Request{AnalysisType: AnalysisCodeSearch, Query: "q", ContextWindowTokens: 10_000})
	require.NoError(t, err)
	assert.LessOrEqual(t, res.StepsTaken, LimitsFor(TierTerse).MaxToolCalls)
}
