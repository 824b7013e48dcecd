package tools

import (
	"context"

	"github.com/graphmind/codegraph/pkg/types"
)

// couplingOf returns afferent (Ca, incoming) and efferent (Ce, outgoing)
// edge counts across all edge types for a node.
func couplingOf(c *Catalogue, id types.NodeID) (ca, ce int, err error) {
	in, err := c.db.Edges.Incoming(id)
	if err != nil {
		return 0, 0, err
	}
	out, err := c.db.Edges.Outgoing(id)
	if err != nil {
		return 0, 0, err
	}
	return len(in), len(out), nil
}

func instability(ca, ce int) float64 {
	if ca+ce == 0 {
		return 0
	}
	return float64(ce) / float64(ca+ce)
}

// CouplingMetrics implements calculate_coupling_metrics.
type CouplingMetrics struct{}

func (t *CouplingMetrics) Name() string { return "calculate_coupling_metrics" }

func (t *CouplingMetrics) Schema() Schema {
	return Schema{Required: []string{"node_id"}}
}

func (t *CouplingMetrics) Execute(ctx context.Context, c *Catalogue, snapshotID types.SnapshotID, params map[string]any) (any, error) {
	nodeID := types.NodeID(stringParam(params, "node_id"))
	if _, err := c.nodeAt(snapshotID, nodeID); err != nil {
		return nil, err
	}

	ca, ce, err := couplingOf(c, nodeID)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"node_id": nodeID,
		"ca":      ca,
		"ce":      ce,
		"i":       instability(ca, ce),
	}, nil
}
