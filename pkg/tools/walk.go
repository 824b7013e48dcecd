package tools

import "github.com/graphmind/codegraph/pkg/types"

// edgeTypeOrDefault parses a requested edge type, falling back to def when
// params carries no override or an unrecognised one.
func edgeTypeOrDefault(params map[string]any, def types.EdgeType) types.EdgeType {
	s := stringParam(params, "edge_type")
	if s == "" {
		return def
	}
	et := types.EdgeType(s)
	if !types.ValidEdgeTypes[et] {
		return def
	}
	return et
}

// reached is one node found during a bounded BFS, tagged with the depth at
// which it was first reached.
type reached struct {
	NodeID types.NodeID `json:"node_id"`
	Depth  int          `json:"depth"`
}

// bfs walks edges of the given type from start, following either outgoing
// or incoming edges depending on forward, up to maxDepth hops.
func bfs(db interface {
	Outgoing(types.NodeID) ([]*types.Edge, error)
	Incoming(types.NodeID) ([]*types.Edge, error)
}, start types.NodeID, edgeType types.EdgeType, maxDepth int, forward bool) ([]reached, error) {
	visited := map[types.NodeID]int{start: 0}
	order := []reached{}
	queue := []types.NodeID{start}
	depth := 0

	for depth < maxDepth && len(queue) > 0 {
		depth++
		var next []types.NodeID
		for _, id := range queue {
			var edges []*types.Edge
			var err error
			if forward {
				edges, err = db.Outgoing(id)
			} else {
				edges, err = db.Incoming(id)
			}
			if err != nil {
				return nil, err
			}
			for _, e := range edges {
				if e.Type != edgeType {
					continue
				}
				target := e.To
				if !forward {
					target = e.From
				}
				if _, seen := visited[target]; seen {
					continue
				}
				visited[target] = depth
				order = append(order, reached{NodeID: target, Depth: depth})
				next = append(next, target)
			}
		}
		queue = next
	}
	return order, nil
}
