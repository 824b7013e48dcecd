package tools

import (
	"context"

	"github.com/graphmind/codegraph/pkg/types"
)

// TransitiveDependencies implements get_transitive_dependencies: a forward
// BFS over edges of a given type up to a bounded depth.
type TransitiveDependencies struct{}

func (t *TransitiveDependencies) Name() string { return "get_transitive_dependencies" }

func (t *TransitiveDependencies) Schema() Schema {
	return Schema{
		Required: []string{"node_id"},
		Defaults: map[string]any{"edge_type": string(types.EdgeCalls), "depth": 3},
	}
}

func (t *TransitiveDependencies) Execute(ctx context.Context, c *Catalogue, snapshotID types.SnapshotID, params map[string]any) (any, error) {
	nodeID := types.NodeID(stringParam(params, "node_id"))
	edgeType := edgeTypeOrDefault(params, types.EdgeCalls)
	depth := intParam(params, "depth")

	if _, err := c.nodeAt(snapshotID, nodeID); err != nil {
		return nil, err
	}

	out, err := bfs(c.db.Edges, nodeID, edgeType, depth, true)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"node_id":      nodeID,
		"edge_type":    edgeType,
		"dependencies": out,
	}, nil
}
