package tools

import (
	"context"
	"sort"

	"github.com/graphmind/codegraph/pkg/types"
)

// ComplexityHotspots implements find_complexity_hotspots: nodes above a
// complexity floor, ordered descending, joined with coupling metrics.
type ComplexityHotspots struct{}

func (t *ComplexityHotspots) Name() string { return "find_complexity_hotspots" }

func (t *ComplexityHotspots) Schema() Schema {
	return Schema{Defaults: map[string]any{"min_complexity": 5.0, "limit": 20}}
}

func (t *ComplexityHotspots) Execute(ctx context.Context, c *Catalogue, snapshotID types.SnapshotID, params map[string]any) (any, error) {
	minComplexity := floatParam(params, "min_complexity")
	limit := intParam(params, "limit")

	nodes, err := c.allNodesAt(snapshotID)
	if err != nil {
		return nil, err
	}

	type hotspot struct {
		NodeID     types.NodeID `json:"node_id"`
		Complexity float64      `json:"complexity"`
		Ca         int          `json:"ca"`
		Ce         int          `json:"ce"`
		I          float64      `json:"i"`
	}
	var hotspots []hotspot
	for _, n := range nodes {
		complexity := n.Complexity()
		if complexity < minComplexity {
			continue
		}
		ca, ce, err := couplingOf(c, n.ID)
		if err != nil {
			return nil, err
		}
		hotspots = append(hotspots, hotspot{
			NodeID: n.ID, Complexity: complexity, Ca: ca, Ce: ce, I: instability(ca, ce),
		})
	}

	sort.Slice(hotspots, func(i, j int) bool { return hotspots[i].Complexity > hotspots[j].Complexity })
	if limit > 0 && len(hotspots) > limit {
		hotspots = hotspots[:limit]
	}

	return map[string]any{
		"min_complexity": minComplexity,
		"hotspots":       hotspots,
	}, nil
}
