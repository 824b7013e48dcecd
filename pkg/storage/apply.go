package storage

import (
	"github.com/graphmind/codegraph/pkg/errs"
	"github.com/graphmind/codegraph/pkg/types"
	bolt "go.etcd.io/bbolt"
)

// ApplyWriteSet commits every put and delete belonging to a single
// transaction atomically: all node writes, all node deletes and the WAL
// commit marker land in one bbolt transaction, so a crash between them is
// impossible by construction rather than by recovery logic. pkg/txn calls
// this from its commit phase after validation succeeds and per-node commit
// locks are held.
func (d *DB) ApplyWriteSet(txID types.TransactionID, puts []*types.Node, deletes []types.NodeID) error {
	err := d.bolt.Update(func(tx *bolt.Tx) error {
		for _, node := range puts {
			if _, err := d.Nodes.PutTx(tx, txID, node); err != nil {
				return err
			}
		}
		for _, id := range deletes {
			if err := d.deleteTx(tx, txID, id); err != nil {
				return err
			}
		}
		_, err := d.WAL.AppendMarker(tx, txID, "commit")
		return err
	})
	if err != nil {
		return errs.Storage("storage.DB.ApplyWriteSet", err)
	}
	return nil
}

func (d *DB) deleteTx(tx *bolt.Tx, txID types.TransactionID, id types.NodeID) error {
	oldHash, hadOld, err := d.Nodes.currentHashTx(tx, id)
	if err != nil {
		return err
	}
	if !hadOld {
		return errs.NotFound("storage.DB.deleteTx", "node", string(id))
	}
	before, _ := d.Nodes.getBytesTx(tx, oldHash)
	if err := d.Nodes.unindexTx(tx, id, before); err != nil {
		return err
	}
	if err := tx.Bucket(bucketNodesCurrent).Delete([]byte(id)); err != nil {
		return errs.Storage("storage.DB.deleteTx", err)
	}
	_, err = d.WAL.Append(tx, types.WALEntry{
		TransactionID: txID,
		Operation:     types.WriteDelete,
		NodeID:        id,
		BeforeImage:   before,
	})
	return err
}

// CurrentHash exposes the live content hash of a node for pkg/txn's
// read-set tracking and validation, without handing out a bbolt handle.
func (d *DB) CurrentHash(id types.NodeID) (types.ContentHash, bool, error) {
	return d.Nodes.currentHash(id)
}

// Get is a thin pass-through to Nodes.Get, kept on DB so pkg/txn only
// needs one storage handle.
func (d *DB) Get(id types.NodeID) (*types.Node, error) {
	return d.Nodes.Get(id)
}

// AbortMarker appends an abort control record so recovery never treats an
// aborted transaction's writes as committed.
func (d *DB) AbortMarker(txID types.TransactionID) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		_, err := d.WAL.AppendMarker(tx, txID, "abort")
		return err
	})
}
