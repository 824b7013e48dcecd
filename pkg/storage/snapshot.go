package storage

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/graphmind/codegraph/pkg/errs"
	"github.com/graphmind/codegraph/pkg/types"
	bolt "go.etcd.io/bbolt"
)

// SnapshotManager creates immutable point-in-time snapshots of the node
// set, names them with Versions forming a DAG, and computes diffs and
// three-way merges between versions.
type SnapshotManager struct {
	db    *bolt.DB
	nodes *NodeStore
}

func newSnapshotManager(db *bolt.DB, nodes *NodeStore) *SnapshotManager {
	return &SnapshotManager{db: db, nodes: nodes}
}

// Create builds a new snapshot from the current state of every live node,
// parented under parent (empty for the first snapshot ever taken).
func (m *SnapshotManager) Create(txID types.TransactionID, parent types.SnapshotID) (*types.Snapshot, error) {
	nodes, err := m.nodes.All()
	if err != nil {
		return nil, err
	}

	versions := make(map[types.NodeID]types.ContentHash, len(nodes))
	for _, n := range nodes {
		hash, ok, err := m.nodes.currentHash(n.ID)
		if err != nil {
			return nil, err
		}
		if ok {
			versions[n.ID] = hash
		}
	}

	snap := &types.Snapshot{
		ID:             types.SnapshotID(uuid.NewString()),
		CreatedAt:      time.Now(),
		TransactionID:  txID,
		NodeVersions:   versions,
		ParentSnapshot: parent,
	}

	err = m.db.Update(func(tx *bolt.Tx) error {
		if parent != "" {
			if err := m.appendChildTx(tx, parent, snap.ID); err != nil {
				return err
			}
		}
		encoded, err := json.Marshal(snap)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketSnapshots).Put([]byte(snap.ID), encoded)
	})
	if err != nil {
		return nil, errs.Storage("storage.SnapshotManager.Create", err)
	}
	return snap, nil
}

func (m *SnapshotManager) appendChildTx(tx *bolt.Tx, parentID types.SnapshotID, childID types.SnapshotID) error {
	raw := tx.Bucket(bucketSnapshots).Get([]byte(parentID))
	if raw == nil {
		return nil
	}
	var parent types.Snapshot
	if err := json.Unmarshal(raw, &parent); err != nil {
		return err
	}
	parent.Children = append(parent.Children, childID)
	encoded, err := json.Marshal(parent)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketSnapshots).Put([]byte(parentID), encoded)
}

// Get returns a snapshot by id.
func (m *SnapshotManager) Get(id types.SnapshotID) (*types.Snapshot, error) {
	var snap types.Snapshot
	err := m.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketSnapshots).Get([]byte(id))
		if raw == nil {
			return errs.NotFound("storage.SnapshotManager.Get", "snapshot", string(id))
		}
		return json.Unmarshal(raw, &snap)
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// TagVersion creates a named Version pointing at snapshotID.
func (m *SnapshotManager) TagVersion(snapshotID types.SnapshotID, name, author, description string, parents []types.VersionID) (*types.Version, error) {
	v := &types.Version{
		ID:             types.VersionID(uuid.NewString()),
		Name:           name,
		Description:    description,
		Author:         author,
		CreatedAt:      time.Now(),
		SnapshotID:     snapshotID,
		ParentVersions: parents,
	}
	err := m.db.Update(func(tx *bolt.Tx) error {
		encoded, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketVersions).Put([]byte(v.ID), encoded)
	})
	if err != nil {
		return nil, errs.Storage("storage.SnapshotManager.TagVersion", err)
	}
	return v, nil
}

// tagKey formats the version_tags bucket key for a tag name, mirroring
// the original's "tag:<name>" convention.
func tagKey(name string) []byte {
	return []byte("tag:" + name)
}

// Tag binds tagName to versionID, database-wide unique: if tagName already
// points at a different version, that binding is rebound to versionID and
// the old version's Tags entry for tagName is removed.
func (m *SnapshotManager) Tag(versionID types.VersionID, tagName string) error {
	err := m.db.Update(func(tx *bolt.Tx) error {
		versions := tx.Bucket(bucketVersions)

		raw := versions.Get([]byte(versionID))
		if raw == nil {
			return errs.NotFound("storage.SnapshotManager.Tag", "version", string(versionID))
		}
		var v types.Version
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}

		tags := tx.Bucket(bucketVersionTags)
		if existing := tags.Get(tagKey(tagName)); existing != nil {
			oldID := types.VersionID(existing)
			if oldID != versionID {
				if oldRaw := versions.Get([]byte(oldID)); oldRaw != nil {
					var old types.Version
					if err := json.Unmarshal(oldRaw, &old); err != nil {
						return err
					}
					old.Tags = removeTag(old.Tags, tagName)
					oldEncoded, err := json.Marshal(old)
					if err != nil {
						return err
					}
					if err := versions.Put([]byte(oldID), oldEncoded); err != nil {
						return err
					}
				}
			}
		}

		if err := tags.Put(tagKey(tagName), []byte(versionID)); err != nil {
			return err
		}

		if !containsTag(v.Tags, tagName) {
			v.Tags = append(v.Tags, tagName)
		}
		encoded, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return versions.Put([]byte(versionID), encoded)
	})
	if err != nil {
		if errs.Is(err, errs.KindNotFound) {
			return err
		}
		return errs.Storage("storage.SnapshotManager.Tag", err)
	}
	return nil
}

// GetVersionByTag resolves tagName to the version it currently names, or
// NotFound if no version carries that tag.
func (m *SnapshotManager) GetVersionByTag(tagName string) (*types.Version, error) {
	var versionID types.VersionID
	err := m.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketVersionTags).Get(tagKey(tagName))
		if raw == nil {
			return errs.NotFound("storage.SnapshotManager.GetVersionByTag", "tag", tagName)
		}
		versionID = types.VersionID(raw)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m.GetVersion(versionID)
}

func containsTag(tags []string, name string) bool {
	for _, t := range tags {
		if t == name {
			return true
		}
	}
	return false
}

func removeTag(tags []string, name string) []string {
	out := tags[:0]
	for _, t := range tags {
		if t != name {
			out = append(out, t)
		}
	}
	return out
}

func (m *SnapshotManager) GetVersion(id types.VersionID) (*types.Version, error) {
	var v types.Version
	err := m.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketVersions).Get([]byte(id))
		if raw == nil {
			return errs.NotFound("storage.SnapshotManager.GetVersion", "version", string(id))
		}
		return json.Unmarshal(raw, &v)
	})
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetAtSnapshot returns a node's content as recorded in snapshot snapID,
// or NotFound if the snapshot never saw that node. pkg/txn uses this to
// serve RepeatableRead/Serializable reads pinned to the transaction's
// starting snapshot.
func (m *SnapshotManager) GetAtSnapshot(snapID types.SnapshotID, id types.NodeID) (*types.Node, error) {
	snap, err := m.Get(snapID)
	if err != nil {
		return nil, err
	}
	hash, ok := snap.NodeVersions[id]
	if !ok {
		return nil, errs.NotFound("storage.SnapshotManager.GetAtSnapshot", "node", string(id))
	}
	data, err := m.nodes.blobs.Get(hash)
	if err != nil {
		return nil, err
	}
	var node types.Node
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, errs.Storage("storage.SnapshotManager.GetAtSnapshot", err)
	}
	return &node, nil
}

// DiffKind discriminates the three ways a node id can differ between two
// snapshots.
type DiffKind string

const (
	DiffAdded    DiffKind = "added"
	DiffRemoved  DiffKind = "removed"
	DiffModified DiffKind = "modified"
)

// NodeDiff is one node's change between two snapshots.
type NodeDiff struct {
	NodeID   types.NodeID
	Kind     DiffKind
	OldHash  types.ContentHash
	NewHash  types.ContentHash
}

// Diff returns the set of node-level changes from base to other.
func (m *SnapshotManager) Diff(baseID, otherID types.SnapshotID) ([]NodeDiff, error) {
	base, err := m.Get(baseID)
	if err != nil {
		return nil, err
	}
	other, err := m.Get(otherID)
	if err != nil {
		return nil, err
	}

	var diffs []NodeDiff
	for id, newHash := range other.NodeVersions {
		if oldHash, ok := base.NodeVersions[id]; ok {
			if oldHash != newHash {
				diffs = append(diffs, NodeDiff{NodeID: id, Kind: DiffModified, OldHash: oldHash, NewHash: newHash})
			}
		} else {
			diffs = append(diffs, NodeDiff{NodeID: id, Kind: DiffAdded, NewHash: newHash})
		}
	}
	for id, oldHash := range base.NodeVersions {
		if _, ok := other.NodeVersions[id]; !ok {
			diffs = append(diffs, NodeDiff{NodeID: id, Kind: DiffRemoved, OldHash: oldHash})
		}
	}
	return diffs, nil
}

// MergeConflict describes a node that was changed differently on both
// sides of a three-way merge relative to the common ancestor.
type MergeConflict struct {
	NodeID   types.NodeID
	Base     types.ContentHash
	Ours     types.ContentHash
	Theirs   types.ContentHash
}

// MergeResult is the outcome of a three-way merge: a candidate node-version
// map for every node that merged cleanly, plus the conflicts that need a
// caller's resolution before a new snapshot can be committed.
type MergeResult struct {
	Merged    map[types.NodeID]types.ContentHash
	Conflicts []MergeConflict
}

// Merge performs a three-way merge of ours and theirs against their common
// ancestor base, enumerating every node id that both sides changed away
// from base to different content hashes as a conflict rather than guessing
// a resolution.
func (m *SnapshotManager) Merge(baseID, oursID, theirsID types.SnapshotID) (*MergeResult, error) {
	base, err := m.Get(baseID)
	if err != nil {
		return nil, err
	}
	ours, err := m.Get(oursID)
	if err != nil {
		return nil, err
	}
	theirs, err := m.Get(theirsID)
	if err != nil {
		return nil, err
	}

	result := &MergeResult{Merged: make(map[types.NodeID]types.ContentHash)}

	ids := make(map[types.NodeID]struct{})
	for id := range base.NodeVersions {
		ids[id] = struct{}{}
	}
	for id := range ours.NodeVersions {
		ids[id] = struct{}{}
	}
	for id := range theirs.NodeVersions {
		ids[id] = struct{}{}
	}

	for id := range ids {
		baseHash := base.NodeVersions[id]
		ourHash, hasOurs := ours.NodeVersions[id]
		theirHash, hasTheirs := theirs.NodeVersions[id]

		switch {
		case hasOurs && hasTheirs && ourHash == theirHash:
			result.Merged[id] = ourHash
		case hasOurs && !hasTheirs && theirHash == "" && baseHash == ourHash:
			// only base had it identically to ours, theirs deleted it: keep deleted
		case !hasOurs && (!hasTheirs || theirHash == baseHash):
			// ours deleted it, theirs deleted it too or left it as in base: keep deleted
		case ourHash == baseHash && hasTheirs:
			result.Merged[id] = theirHash
		case theirHash == baseHash && hasOurs:
			result.Merged[id] = ourHash
		case hasOurs != hasTheirs, ourHash != theirHash:
			result.Conflicts = append(result.Conflicts, MergeConflict{
				NodeID: id, Base: baseHash, Ours: ourHash, Theirs: theirHash,
			})
		default:
			result.Merged[id] = ourHash
		}
	}

	return result, nil
}
