package tools

import (
	"context"
	"sort"

	"github.com/graphmind/codegraph/pkg/types"
)

// HubNodes implements get_hub_nodes: nodes whose total degree (Ca+Ce)
// meets a minimum, ordered by total degree descending.
type HubNodes struct{}

func (t *HubNodes) Name() string { return "get_hub_nodes" }

func (t *HubNodes) Schema() Schema {
	return Schema{Defaults: map[string]any{"min_degree": 5}}
}

func (t *HubNodes) Execute(ctx context.Context, c *Catalogue, snapshotID types.SnapshotID, params map[string]any) (any, error) {
	minDegree := intParam(params, "min_degree")

	nodes, err := c.allNodesAt(snapshotID)
	if err != nil {
		return nil, err
	}

	type hub struct {
		NodeID types.NodeID `json:"node_id"`
		Ca     int          `json:"ca"`
		Ce     int          `json:"ce"`
		Degree int          `json:"degree"`
	}
	var hubs []hub
	for _, n := range nodes {
		ca, ce, err := couplingOf(c, n.ID)
		if err != nil {
			return nil, err
		}
		if ca+ce >= minDegree {
			hubs = append(hubs, hub{NodeID: n.ID, Ca: ca, Ce: ce, Degree: ca + ce})
		}
	}

	sort.Slice(hubs, func(i, j int) bool { return hubs[i].Degree > hubs[j].Degree })

	return map[string]any{
		"min_degree": minDegree,
		"hubs":       hubs,
	}, nil
}
