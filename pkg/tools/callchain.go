package tools

import (
	"context"

	"github.com/graphmind/codegraph/pkg/types"
)

// CallChain implements trace_call_chain: every forward path of Calls edges
// from a starting node up to max_depth hops, returned as ordered node-id
// sequences.
type CallChain struct{}

func (t *CallChain) Name() string { return "trace_call_chain" }

func (t *CallChain) Schema() Schema {
	return Schema{
		Required: []string{"from_node"},
		Defaults: map[string]any{"max_depth": 5},
	}
}

func (t *CallChain) Execute(ctx context.Context, c *Catalogue, snapshotID types.SnapshotID, params map[string]any) (any, error) {
	fromNode := types.NodeID(stringParam(params, "from_node"))
	maxDepth := intParam(params, "max_depth")

	if _, err := c.nodeAt(snapshotID, fromNode); err != nil {
		return nil, err
	}

	var paths [][]types.NodeID
	var walk func(path []types.NodeID, visited map[types.NodeID]bool, depth int) error
	walk = func(path []types.NodeID, visited map[types.NodeID]bool, depth int) error {
		current := path[len(path)-1]
		edges, err := c.db.Edges.Outgoing(current)
		if err != nil {
			return err
		}

		var calls []*types.Edge
		for _, e := range edges {
			if e.Type == types.EdgeCalls {
				calls = append(calls, e)
			}
		}

		if len(calls) == 0 || depth >= maxDepth {
			paths = append(paths, append([]types.NodeID{}, path...))
			return nil
		}

		extended := false
		for _, e := range calls {
			if visited[e.To] {
				continue
			}
			extended = true
			visited[e.To] = true
			if err := walk(append(path, e.To), visited, depth+1); err != nil {
				return err
			}
			delete(visited, e.To)
		}
		if !extended {
			paths = append(paths, append([]types.NodeID{}, path...))
		}
		return nil
	}

	if err := walk([]types.NodeID{fromNode}, map[types.NodeID]bool{fromNode: true}, 0); err != nil {
		return nil, err
	}

	return map[string]any{
		"from_node": fromNode,
		"max_depth": maxDepth,
		"paths":     paths,
	}, nil
}
