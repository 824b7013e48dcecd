package tools

import (
	"context"

	"github.com/graphmind/codegraph/pkg/rerank"
	"github.com/graphmind/codegraph/pkg/types"
)

// SemanticCodeSearch implements semantic_code_search: embeds the query,
// runs nearest-neighbour search in the vector engine, enriches hits with
// one hop of graph context, and optionally reranks the candidates.
type SemanticCodeSearch struct{}

func (t *SemanticCodeSearch) Name() string { return "semantic_code_search" }

func (t *SemanticCodeSearch) Schema() Schema {
	return Schema{
		Required: []string{"query"},
		Defaults: map[string]any{"limit": 10, "threshold": 0.6},
	}
}

type searchHit struct {
	NodeID     types.NodeID   `json:"node_id"`
	Score      float64        `json:"score"`
	Node       *types.Node    `json:"node,omitempty"`
	Neighbours []types.NodeID `json:"neighbours"`
}

func (t *SemanticCodeSearch) Execute(ctx context.Context, c *Catalogue, snapshotID types.SnapshotID, params map[string]any) (any, error) {
	query := stringParam(params, "query")
	limit := intParam(params, "limit")
	threshold := floatParam(params, "threshold")

	vec, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	scored := c.vecEngine.Search(vec, limit, threshold)

	hits := make([]searchHit, 0, len(scored))
	candidates := make([]rerank.Candidate, 0, len(scored))
	for _, s := range scored {
		node, err := c.nodeAt(snapshotID, s.NodeID)
		if err != nil {
			continue
		}

		out, err := c.db.Edges.Outgoing(s.NodeID)
		if err != nil {
			return nil, err
		}
		in, err := c.db.Edges.Incoming(s.NodeID)
		if err != nil {
			return nil, err
		}
		neighbours := make([]types.NodeID, 0, len(out)+len(in))
		for _, e := range out {
			neighbours = append(neighbours, e.To)
		}
		for _, e := range in {
			neighbours = append(neighbours, e.From)
		}

		hits = append(hits, searchHit{NodeID: s.NodeID, Score: s.Score, Node: node, Neighbours: neighbours})
		candidates = append(candidates, rerank.Candidate{NodeID: string(s.NodeID), Text: node.Content(), Score: s.Score})
	}

	if c.reranker != nil && len(candidates) > 0 {
		reranked, err := c.reranker.Rerank(ctx, query, candidates, limit)
		if err != nil {
			return nil, err
		}
		byID := make(map[types.NodeID]searchHit, len(hits))
		for _, h := range hits {
			byID[h.NodeID] = h
		}
		reordered := make([]searchHit, 0, len(reranked))
		for _, cand := range reranked {
			h := byID[types.NodeID(cand.NodeID)]
			h.Score = cand.Score
			reordered = append(reordered, h)
		}
		hits = reordered
	}

	return map[string]any{
		"query":     query,
		"threshold": threshold,
		"hits":      hits,
	}, nil
}
