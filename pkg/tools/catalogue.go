package tools

import (
	"context"

	"github.com/graphmind/codegraph/pkg/embedprovider"
	"github.com/graphmind/codegraph/pkg/errs"
	"github.com/graphmind/codegraph/pkg/rerank"
	"github.com/graphmind/codegraph/pkg/storage"
	"github.com/graphmind/codegraph/pkg/types"
	"github.com/graphmind/codegraph/pkg/vector"
)

// Result is the JSON envelope every tool invocation returns.
type Result struct {
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters"`
	Result     any            `json:"result"`
}

// Tool is one named, schema-described, read-only graph query.
type Tool interface {
	Name() string
	Schema() Schema
	Execute(ctx context.Context, c *Catalogue, snapshotID types.SnapshotID, params map[string]any) (any, error)
}

// Catalogue holds the dependencies every tool needs and the fixed registry
// of available tools. It is read-only with respect to storage: tools never
// mutate the graph or the vector index.
type Catalogue struct {
	db        *storage.DB
	vecEngine *vector.Engine
	embedder  embedprovider.Provider
	reranker  rerank.Reranker

	byName map[string]Tool
}

// New builds the fixed tool catalogue over the given storage, vector
// engine, embedding provider, and reranker. reranker may be nil, in which
// case semantic_code_search returns candidates in raw similarity order.
func New(db *storage.DB, vecEngine *vector.Engine, embedder embedprovider.Provider, reranker rerank.Reranker) *Catalogue {
	c := &Catalogue{db: db, vecEngine: vecEngine, embedder: embedder, reranker: reranker}
	c.byName = make(map[string]Tool)
	for _, t := range []Tool{
		&TransitiveDependencies{},
		&ReverseDependencies{},
		&CircularDependencies{},
		&CallChain{},
		&CouplingMetrics{},
		&HubNodes{},
		&SemanticCodeSearch{},
		&ComplexityHotspots{},
	} {
		c.byName[t.Name()] = t
	}
	return c
}

// Lookup returns the named tool, or an error if no such tool exists.
func (c *Catalogue) Lookup(name string) (Tool, error) {
	t, ok := c.byName[name]
	if !ok {
		return nil, errs.NotFound("tools.Catalogue.Lookup", "tool", name)
	}
	return t, nil
}

// Names returns every registered tool name.
func (c *Catalogue) Names() []string {
	out := make([]string, 0, len(c.byName))
	for name := range c.byName {
		out = append(out, name)
	}
	return out
}

// nodeAt resolves a node either at a pinned snapshot (if snapshotID is
// non-empty) or against live current state, giving every tool the same
// single-snapshot consistency for one invocation.
func (c *Catalogue) nodeAt(snapshotID types.SnapshotID, id types.NodeID) (*types.Node, error) {
	if snapshotID != "" {
		return c.db.Snapshots.GetAtSnapshot(snapshotID, id)
	}
	return c.db.Nodes.Get(id)
}

// NodeAt exposes nodeAt to callers outside this package (pkg/orchestrator
// resolves node ids surfaced in tool results back to their file_path when
// assembling a dependency-analysis answer's components array).
func (c *Catalogue) NodeAt(snapshotID types.SnapshotID, id types.NodeID) (*types.Node, error) {
	return c.nodeAt(snapshotID, id)
}

// allNodesAt returns every node live in the store; edges are not
// snapshotted (see pkg/storage doc), so only node content is pinned to
// snapshotID.
func (c *Catalogue) allNodesAt(snapshotID types.SnapshotID) ([]*types.Node, error) {
	all, err := c.db.Nodes.All()
	if err != nil {
		return nil, err
	}
	if snapshotID == "" {
		return all, nil
	}
	out := make([]*types.Node, 0, len(all))
	for _, n := range all {
		pinned, err := c.db.Snapshots.GetAtSnapshot(snapshotID, n.ID)
		if err != nil {
			continue
		}
		out = append(out, pinned)
	}
	return out, nil
}
