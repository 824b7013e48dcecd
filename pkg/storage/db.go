// Package storage implements the durable substrate of the property graph:
// a content-addressed blob store, a node/edge store with secondary
// indices, a write-ahead log, a snapshot/version manager and crash
// recovery, all layered on a single embedded go.etcd.io/bbolt database.
// Bucket-per-entity-type and JSON marshal/unmarshal follow the pattern
// cuemby/warren's pkg/storage.BoltStore uses for cluster state.
package storage

import (
	"fmt"
	"path/filepath"

	"github.com/graphmind/codegraph/pkg/errs"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketBlobs        = []byte("blobs")
	bucketNodesCurrent = []byte("nodes_current")  // node id -> content hash
	bucketNodesHistory = []byte("nodes_history")  // node id + version -> content hash
	bucketEdges        = []byte("edges")          // edge id -> Edge JSON
	bucketEdgesByFrom  = []byte("edges_by_from")  // node id + edge id -> struct{}
	bucketEdgesByTo    = []byte("edges_by_to")    // node id + edge id -> struct{}
	bucketLabelIndex   = []byte("label_index")    // label + node id -> struct{}
	bucketPropIndex    = []byte("property_index") // canonical(key,value) + node id -> struct{}
	bucketWAL          = []byte("wal")             // big-endian sequence -> WALEntry JSON
	bucketCheckpoints  = []byte("checkpoints")     // checkpoint id -> Checkpoint JSON
	bucketSnapshots    = []byte("snapshots")       // snapshot id -> Snapshot JSON
	bucketVersions     = []byte("versions")        // version id -> Version JSON
	bucketVersionTags  = []byte("version_tags")    // "tag:<name>" -> version id
	bucketMeta         = []byte("meta")            // singleton counters (wal sequence, etc.)

	allBuckets = [][]byte{
		bucketBlobs, bucketNodesCurrent, bucketNodesHistory, bucketEdges,
		bucketEdgesByFrom, bucketEdgesByTo, bucketLabelIndex, bucketPropIndex,
		bucketWAL, bucketCheckpoints, bucketSnapshots, bucketVersions, bucketVersionTags, bucketMeta,
	}
)

// DB wraps a single bbolt database and exposes the storage subsystems that
// share it: Blobs, Nodes, Edges, WAL and Snapshots.
type DB struct {
	bolt *bolt.DB

	Blobs     *BlobStore
	Nodes     *NodeStore
	Edges     *EdgeStore
	WAL       *WAL
	Snapshots *SnapshotManager
}

// Open opens (creating if absent) the bbolt file at <dataDir>/codegraph.db,
// ensures every bucket this package needs exists, and wires the five
// storage subsystems on top of it.
func Open(dataDir string, blobCacheSize int) (*DB, error) {
	dbPath := filepath.Join(dataDir, "codegraph.db")

	b, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, "storage.Open", err, "failed to open database")
	}

	err = b.Update(func(tx *bolt.Tx) error {
		for _, bucket := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		b.Close()
		return nil, errs.Wrap(errs.KindStorage, "storage.Open", err, "failed to initialize buckets")
	}

	blobs, err := newBlobStore(b, blobCacheSize)
	if err != nil {
		b.Close()
		return nil, err
	}
	wal, err := newWAL(b)
	if err != nil {
		b.Close()
		return nil, err
	}
	nodes := newNodeStore(b, blobs, wal)
	edges := newEdgeStore(b)
	snapshots := newSnapshotManager(b, nodes)

	return &DB{bolt: b, Blobs: blobs, Nodes: nodes, Edges: edges, WAL: wal, Snapshots: snapshots}, nil
}

// Close closes the underlying bbolt database.
func (d *DB) Close() error {
	return d.bolt.Close()
}

// Checkpoint takes a consistent recovery point: the current WAL sequence
// and a freshly created snapshot of every node, recorded together so
// ReplayFromLastCheckpoint knows exactly how far it can trust the snapshot.
func (d *DB) Checkpoint() error {
	return Recover(d).Checkpoint()
}

// TruncateWAL discards WAL entries at or before the last checkpoint's
// sequence number; it is always safe to call and a no-op if no checkpoint
// has been taken yet.
func (d *DB) TruncateWAL() error {
	return Recover(d).TruncateWAL()
}

// NodeCount, EdgeCount and SnapshotCount back pkg/metrics.Source.
func (d *DB) NodeCount() (int, error) { return d.Nodes.Count() }

func (d *DB) EdgeCount() (int, error) {
	n := 0
	err := d.bolt.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketEdges).Stats().KeyN
		return nil
	})
	return n, err
}

func (d *DB) SnapshotCount() (int, error) {
	n := 0
	err := d.bolt.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketSnapshots).Stats().KeyN
		return nil
	})
	return n, err
}
