package storage

import (
	"encoding/json"

	"github.com/graphmind/codegraph/pkg/errs"
	"github.com/graphmind/codegraph/pkg/types"
	bolt "go.etcd.io/bbolt"
)

// NodeStore is the node side of the property graph store (edges live in
// EdgeStore): nodes are content-addressed through BlobStore, with secondary
// indices (by label, by property, and by historical version) maintained
// alongside the "current" pointer so lookups never require a full scan.
type NodeStore struct {
	db    *bolt.DB
	blobs *BlobStore
	wal   *WAL
}

func newNodeStore(db *bolt.DB, blobs *BlobStore, wal *WAL) *NodeStore {
	return &NodeStore{db: db, blobs: blobs, wal: wal}
}

// Put stores node as its current version, appends before/after images to
// the WAL, and refreshes the label/property/history indices. txID
// identifies the transaction on whose behalf this write happens; pkg/txn
// calls this once per write in its commit phase, inside its own bbolt
// transaction via PutTx.
func (n *NodeStore) Put(txID types.TransactionID, node *types.Node) (types.ContentHash, error) {
	var hash types.ContentHash
	err := n.db.Update(func(tx *bolt.Tx) error {
		var err error
		hash, err = n.PutTx(tx, txID, node)
		return err
	})
	return hash, err
}

// PutTx is the transactional core of Put, usable from inside a caller-
// managed bbolt transaction (pkg/txn's commit path needs this so the
// write, the WAL entry and the lock release are all atomic).
func (n *NodeStore) PutTx(tx *bolt.Tx, txID types.TransactionID, node *types.Node) (types.ContentHash, error) {
	payload, err := json.Marshal(node)
	if err != nil {
		return "", errs.Storage("storage.NodeStore.Put", err)
	}

	var before []byte
	oldHash, hadOld, err := n.currentHashTx(tx, node.ID)
	if err != nil {
		return "", err
	}
	if hadOld {
		before, _ = n.getBytesTx(tx, oldHash)
		if err := n.unindexTx(tx, node.ID, before); err != nil {
			return "", err
		}
	}

	hash := HashBytes(payload)
	if err := n.putBlobTx(tx, hash, payload); err != nil {
		return "", err
	}

	if err := tx.Bucket(bucketNodesCurrent).Put([]byte(node.ID), []byte(hash)); err != nil {
		return "", errs.Storage("storage.NodeStore.Put", err)
	}
	historyKey := append([]byte(node.ID), byte(0x1f))
	historyKey = append(historyKey, uint64ToBytes(node.Version)...)
	if err := tx.Bucket(bucketNodesHistory).Put(historyKey, []byte(hash)); err != nil {
		return "", errs.Storage("storage.NodeStore.Put", err)
	}

	if err := n.indexTx(tx, node); err != nil {
		return "", err
	}

	if _, err := n.wal.Append(tx, types.WALEntry{
		TransactionID: txID,
		Operation:     types.WriteUpdate,
		NodeID:        node.ID,
		BeforeImage:   before,
		AfterImage:    payload,
	}); err != nil {
		return "", err
	}

	return hash, nil
}

// Get returns the current version of a node.
func (n *NodeStore) Get(id types.NodeID) (*types.Node, error) {
	hash, ok, err := n.currentHash(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.NotFound("storage.NodeStore.Get", "node", string(id))
	}
	return n.getByHash(hash)
}

// GetAtVersion returns a historical version of a node via the history
// index, or NotFound if that node/version pair was never written.
func (n *NodeStore) GetAtVersion(id types.NodeID, version uint64) (*types.Node, error) {
	key := append([]byte(id), byte(0x1f))
	key = append(key, uint64ToBytes(version)...)

	var hash types.ContentHash
	err := n.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketNodesHistory).Get(key)
		if raw == nil {
			return errs.NotFound("storage.NodeStore.GetAtVersion", "node_version", string(id))
		}
		hash = types.ContentHash(raw)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return n.getByHash(hash)
}

// Delete removes a node's current pointer and indices, recording a
// tombstone WAL entry. The underlying blob is left for history/recovery
// and reclaimed independently via BlobStore.Release.
func (n *NodeStore) Delete(txID types.TransactionID, id types.NodeID) error {
	return n.db.Update(func(tx *bolt.Tx) error {
		oldHash, hadOld, err := n.currentHashTx(tx, id)
		if err != nil {
			return err
		}
		if !hadOld {
			return errs.NotFound("storage.NodeStore.Delete", "node", string(id))
		}
		before, _ := n.getBytesTx(tx, oldHash)
		if err := n.unindexTx(tx, id, before); err != nil {
			return err
		}
		if err := tx.Bucket(bucketNodesCurrent).Delete([]byte(id)); err != nil {
			return errs.Storage("storage.NodeStore.Delete", err)
		}
		_, err = n.wal.Append(tx, types.WALEntry{
			TransactionID: txID,
			Operation:     types.WriteDelete,
			NodeID:        id,
			BeforeImage:   before,
		})
		return err
	})
}

// ByLabel returns every node id currently tagged with label.
func (n *NodeStore) ByLabel(label string) ([]types.NodeID, error) {
	var ids []types.NodeID
	prefix := append([]byte(label), byte(0x1f))
	err := n.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketLabelIndex).Cursor()
		for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
			ids = append(ids, types.NodeID(k[len(prefix):]))
		}
		return nil
	})
	return ids, err
}

// ByProperty returns every node id whose Properties[key] canonically
// equals value.
func (n *NodeStore) ByProperty(key string, value any) ([]types.NodeID, error) {
	indexKey, err := PropertyIndexKey(key, value)
	if err != nil {
		return nil, errs.Schema("storage.NodeStore.ByProperty", "unencodable property value")
	}
	prefix := append(indexKey, byte(0x1f))

	var ids []types.NodeID
	err = n.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketPropIndex).Cursor()
		for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
			ids = append(ids, types.NodeID(k[len(prefix):]))
		}
		return nil
	})
	return ids, err
}

// Count returns the number of currently live nodes.
func (n *NodeStore) Count() (int, error) {
	count := 0
	err := n.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(bucketNodesCurrent).Stats().KeyN
		return nil
	})
	return count, err
}

// All returns every currently live node; used by snapshot creation and
// full-graph tool queries.
func (n *NodeStore) All() ([]*types.Node, error) {
	var nodes []*types.Node
	err := n.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNodesCurrent).ForEach(func(k, v []byte) error {
			data, err := n.getBytesTx(tx, types.ContentHash(v))
			if err != nil {
				return err
			}
			var node types.Node
			if err := json.Unmarshal(data, &node); err != nil {
				return err
			}
			nodes = append(nodes, &node)
			return nil
		})
	})
	return nodes, err
}

func (n *NodeStore) currentHash(id types.NodeID) (types.ContentHash, bool, error) {
	var hash types.ContentHash
	var ok bool
	err := n.db.View(func(tx *bolt.Tx) error {
		var err error
		hash, ok, err = n.currentHashTx(tx, id)
		return err
	})
	return hash, ok, err
}

func (n *NodeStore) currentHashTx(tx *bolt.Tx, id types.NodeID) (types.ContentHash, bool, error) {
	raw := tx.Bucket(bucketNodesCurrent).Get([]byte(id))
	if raw == nil {
		return "", false, nil
	}
	return types.ContentHash(raw), true, nil
}

func (n *NodeStore) getByHash(hash types.ContentHash) (*types.Node, error) {
	data, err := n.blobs.Get(hash)
	if err != nil {
		return nil, err
	}
	var node types.Node
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, errs.Storage("storage.NodeStore.getByHash", err)
	}
	return &node, nil
}

func (n *NodeStore) getBytesTx(tx *bolt.Tx, hash types.ContentHash) ([]byte, error) {
	raw := tx.Bucket(bucketBlobs).Get([]byte(hash))
	if raw == nil {
		return nil, errs.NotFound("storage.NodeStore.getBytesTx", "blob", string(hash))
	}
	var blob types.ContentBlob
	if err := json.Unmarshal(raw, &blob); err != nil {
		return nil, errs.Storage("storage.NodeStore.getBytesTx", err)
	}
	return blob.Bytes, nil
}

func (n *NodeStore) putBlobTx(tx *bolt.Tx, hash types.ContentHash, data []byte) error {
	b := tx.Bucket(bucketBlobs)
	existing := b.Get([]byte(hash))

	var blob types.ContentBlob
	if existing != nil {
		if err := json.Unmarshal(existing, &blob); err != nil {
			return err
		}
		blob.RefCount++
	} else {
		blob = types.ContentBlob{Hash: hash, Bytes: data, RefCount: 1}
	}
	encoded, err := json.Marshal(blob)
	if err != nil {
		return err
	}
	return b.Put([]byte(hash), encoded)
}

func (n *NodeStore) indexTx(tx *bolt.Tx, node *types.Node) error {
	labelIdx := tx.Bucket(bucketLabelIndex)
	for _, label := range node.Labels {
		key := append([]byte(label), byte(0x1f))
		key = append(key, []byte(node.ID)...)
		if err := labelIdx.Put(key, []byte{1}); err != nil {
			return errs.Storage("storage.NodeStore.indexTx", err)
		}
	}
	propIdx := tx.Bucket(bucketPropIndex)
	for k, v := range node.Properties {
		indexKey, err := PropertyIndexKey(k, v)
		if err != nil {
			continue // unencodable property values are simply not indexed
		}
		key := append(indexKey, byte(0x1f))
		key = append(key, []byte(node.ID)...)
		if err := propIdx.Put(key, []byte{1}); err != nil {
			return errs.Storage("storage.NodeStore.indexTx", err)
		}
	}
	return nil
}

func (n *NodeStore) unindexTx(tx *bolt.Tx, id types.NodeID, oldPayload []byte) error {
	if oldPayload == nil {
		return nil
	}
	var old types.Node
	if err := json.Unmarshal(oldPayload, &old); err != nil {
		return nil
	}
	labelIdx := tx.Bucket(bucketLabelIndex)
	for _, label := range old.Labels {
		key := append([]byte(label), byte(0x1f))
		key = append(key, []byte(id)...)
		_ = labelIdx.Delete(key)
	}
	propIdx := tx.Bucket(bucketPropIndex)
	for k, v := range old.Properties {
		indexKey, err := PropertyIndexKey(k, v)
		if err != nil {
			continue
		}
		key := append(indexKey, byte(0x1f))
		key = append(key, []byte(id)...)
		_ = propIdx.Delete(key)
	}
	return nil
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

func uint64ToBytes(v uint64) []byte {
	buf := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
	}
	return buf
}
