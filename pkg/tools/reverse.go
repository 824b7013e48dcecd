package tools

import (
	"context"

	"github.com/graphmind/codegraph/pkg/types"
)

// ReverseDependencies implements get_reverse_dependencies: a BFS over
// incoming edges of a given type up to a bounded depth.
type ReverseDependencies struct{}

func (t *ReverseDependencies) Name() string { return "get_reverse_dependencies" }

func (t *ReverseDependencies) Schema() Schema {
	return Schema{
		Required: []string{"node_id"},
		Defaults: map[string]any{"edge_type": string(types.EdgeCalls), "depth": 3},
	}
}

func (t *ReverseDependencies) Execute(ctx context.Context, c *Catalogue, snapshotID types.SnapshotID, params map[string]any) (any, error) {
	nodeID := types.NodeID(stringParam(params, "node_id"))
	edgeType := edgeTypeOrDefault(params, types.EdgeCalls)
	depth := intParam(params, "depth")

	if _, err := c.nodeAt(snapshotID, nodeID); err != nil {
		return nil, err
	}

	out, err := bfs(c.db.Edges, nodeID, edgeType, depth, false)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"node_id":    nodeID,
		"edge_type":  edgeType,
		"dependents": out,
	}, nil
}
