package tools

import (
	"context"
	"sort"

	"github.com/graphmind/codegraph/pkg/types"
)

// CircularDependencies implements detect_circular_dependencies: strongly
// connected components of size > 1, plus self-loops, over edges of one
// type.
type CircularDependencies struct{}

func (t *CircularDependencies) Name() string { return "detect_circular_dependencies" }

func (t *CircularDependencies) Schema() Schema {
	return Schema{Defaults: map[string]any{"edge_type": string(types.EdgeImports)}}
}

func (t *CircularDependencies) Execute(ctx context.Context, c *Catalogue, snapshotID types.SnapshotID, params map[string]any) (any, error) {
	edgeType := edgeTypeOrDefault(params, types.EdgeImports)

	edges, err := c.db.Edges.All()
	if err != nil {
		return nil, err
	}

	adj := map[types.NodeID][]types.NodeID{}
	selfLoops := map[types.NodeID]bool{}
	for _, e := range edges {
		if e.Type != edgeType {
			continue
		}
		if e.From == e.To {
			selfLoops[e.From] = true
		}
		adj[e.From] = append(adj[e.From], e.To)
		if _, ok := adj[e.To]; !ok {
			adj[e.To] = nil
		}
	}

	sccs := tarjanSCC(adj)

	type cycle struct {
		Members []types.NodeID `json:"members"`
		SelfLoop bool          `json:"self_loop"`
	}
	var cycles []cycle
	seen := map[types.NodeID]bool{}
	for _, scc := range sccs {
		if len(scc) > 1 {
			sort.Slice(scc, func(i, j int) bool { return scc[i] < scc[j] })
			cycles = append(cycles, cycle{Members: scc})
			for _, id := range scc {
				seen[id] = true
			}
		}
	}
	for id := range selfLoops {
		if seen[id] {
			continue
		}
		cycles = append(cycles, cycle{Members: []types.NodeID{id}, SelfLoop: true})
	}

	return map[string]any{
		"edge_type": edgeType,
		"cycles":    cycles,
	}, nil
}

// tarjanSCC computes strongly connected components of the directed graph
// described by adj using Tarjan's single-pass algorithm.
func tarjanSCC(adj map[types.NodeID][]types.NodeID) [][]types.NodeID {
	index := 0
	indices := map[types.NodeID]int{}
	lowlink := map[types.NodeID]int{}
	onStack := map[types.NodeID]bool{}
	var stack []types.NodeID
	var result [][]types.NodeID

	nodes := make([]types.NodeID, 0, len(adj))
	for id := range adj {
		nodes = append(nodes, id)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })

	var strongconnect func(v types.NodeID)
	strongconnect = func(v types.NodeID) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range adj[v] {
			if _, ok := indices[w]; !ok {
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if indices[w] < lowlink[v] {
					lowlink[v] = indices[w]
				}
			}
		}

		if lowlink[v] == indices[v] {
			var scc []types.NodeID
			for {
				n := len(stack) - 1
				w := stack[n]
				stack = stack[:n]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			result = append(result, scc)
		}
	}

	for _, v := range nodes {
		if _, ok := indices[v]; !ok {
			strongconnect(v)
		}
	}
	return result
}
