package storage

import (
	"encoding/json"

	"github.com/graphmind/codegraph/pkg/errs"
	"github.com/graphmind/codegraph/pkg/types"
	bolt "go.etcd.io/bbolt"
)

// EdgeStore persists directed, typed edges with both a from- and a to-
// index so traversal in either direction is an index scan rather than a
// full table scan. It shares NodeStore's bbolt handle but is simpler:
// edges are not content-addressed, since they carry no large payload and
// are never diffed across snapshots the way node content is.
type EdgeStore struct {
	db *bolt.DB
}

func newEdgeStore(db *bolt.DB) *EdgeStore {
	return &EdgeStore{db: db}
}

func (e *EdgeStore) Put(edge *types.Edge) error {
	payload, err := json.Marshal(edge)
	if err != nil {
		return errs.Storage("storage.EdgeStore.Put", err)
	}
	return e.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketEdges).Put([]byte(edge.ID), payload); err != nil {
			return err
		}
		fromKey := append([]byte(edge.From), byte(0x1f))
		fromKey = append(fromKey, []byte(edge.ID)...)
		if err := tx.Bucket(bucketEdgesByFrom).Put(fromKey, []byte{1}); err != nil {
			return err
		}
		toKey := append([]byte(edge.To), byte(0x1f))
		toKey = append(toKey, []byte(edge.ID)...)
		return tx.Bucket(bucketEdgesByTo).Put(toKey, []byte{1})
	})
}

func (e *EdgeStore) Get(id types.EdgeID) (*types.Edge, error) {
	var edge types.Edge
	err := e.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketEdges).Get([]byte(id))
		if raw == nil {
			return errs.NotFound("storage.EdgeStore.Get", "edge", string(id))
		}
		return json.Unmarshal(raw, &edge)
	})
	if err != nil {
		return nil, err
	}
	return &edge, nil
}

func (e *EdgeStore) Delete(id types.EdgeID) error {
	return e.db.Update(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketEdges).Get([]byte(id))
		if raw == nil {
			return errs.NotFound("storage.EdgeStore.Delete", "edge", string(id))
		}
		var edge types.Edge
		if err := json.Unmarshal(raw, &edge); err != nil {
			return err
		}
		if err := tx.Bucket(bucketEdges).Delete([]byte(id)); err != nil {
			return err
		}
		fromKey := append([]byte(edge.From), byte(0x1f))
		fromKey = append(fromKey, []byte(edge.ID)...)
		_ = tx.Bucket(bucketEdgesByFrom).Delete(fromKey)
		toKey := append([]byte(edge.To), byte(0x1f))
		toKey = append(toKey, []byte(edge.ID)...)
		_ = tx.Bucket(bucketEdgesByTo).Delete(toKey)
		return nil
	})
}

// Outgoing returns every edge whose From field is id.
func (e *EdgeStore) Outgoing(id types.NodeID) ([]*types.Edge, error) {
	return e.scanIndex(bucketEdgesByFrom, id)
}

// Incoming returns every edge whose To field is id.
func (e *EdgeStore) Incoming(id types.NodeID) ([]*types.Edge, error) {
	return e.scanIndex(bucketEdgesByTo, id)
}

func (e *EdgeStore) scanIndex(bucket []byte, id types.NodeID) ([]*types.Edge, error) {
	prefix := append([]byte(id), byte(0x1f))
	var edgeIDs []types.EdgeID
	err := e.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucket).Cursor()
		for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
			edgeIDs = append(edgeIDs, types.EdgeID(k[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	edges := make([]*types.Edge, 0, len(edgeIDs))
	for _, id := range edgeIDs {
		edge, err := e.Get(id)
		if err != nil {
			continue
		}
		edges = append(edges, edge)
	}
	return edges, nil
}

// All returns every edge in the graph.
func (e *EdgeStore) All() ([]*types.Edge, error) {
	var edges []*types.Edge
	err := e.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEdges).ForEach(func(k, v []byte) error {
			var edge types.Edge
			if err := json.Unmarshal(v, &edge); err != nil {
				return err
			}
			edges = append(edges, &edge)
			return nil
		})
	})
	return edges, err
}
