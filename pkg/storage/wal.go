package storage

import (
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/graphmind/codegraph/pkg/errs"
	"github.com/graphmind/codegraph/pkg/metrics"
	"github.com/graphmind/codegraph/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var metaKeyWALSequence = []byte("wal_sequence")

// WAL is a durable, strictly ordered, append-only log of write operations,
// backed by a bbolt bucket keyed on big-endian sequence number so a cursor
// scan naturally yields entries in commit order.
type WAL struct {
	db *bolt.DB
}

func newWAL(db *bolt.DB) (*WAL, error) {
	return &WAL{db: db}, nil
}

func seqKey(seq types.WALSequence) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(seq))
	return buf
}

// nextSequence atomically allocates and persists the next WAL sequence
// number within tx.
func nextSequence(tx *bolt.Tx) (types.WALSequence, error) {
	meta := tx.Bucket(bucketMeta)
	raw := meta.Get(metaKeyWALSequence)
	var next uint64
	if raw != nil {
		next = binary.BigEndian.Uint64(raw)
	}
	next++
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next)
	if err := meta.Put(metaKeyWALSequence, buf); err != nil {
		return 0, err
	}
	return types.WALSequence(next), nil
}

// Append durably records entry, assigning it the next sequence number.
// Runs inside the same bbolt transaction as the caller so the WAL entry
// and the data mutation it describes commit atomically.
func (w *WAL) Append(tx *bolt.Tx, entry types.WALEntry) (types.WALSequence, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.WALAppendDuration)

	seq, err := nextSequence(tx)
	if err != nil {
		return 0, errs.Storage("storage.WAL.Append", err)
	}
	entry.SequenceNumber = seq
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	encoded, err := json.Marshal(entry)
	if err != nil {
		return 0, errs.Storage("storage.WAL.Append", err)
	}
	if err := tx.Bucket(bucketWAL).Put(seqKey(seq), encoded); err != nil {
		return 0, errs.Storage("storage.WAL.Append", err)
	}
	metrics.WALSequence.Set(float64(seq))
	return seq, nil
}

// AppendMarker records a control entry (e.g. "commit", "abort") for a
// transaction, multiplexed onto the same monotonic log as write entries so
// recovery can replay both in a single ordered pass.
func (w *WAL) AppendMarker(tx *bolt.Tx, txID types.TransactionID, marker string) (types.WALSequence, error) {
	return w.Append(tx, types.WALEntry{TransactionID: txID, Marker: marker})
}

// ReadFrom returns every WAL entry with sequence number strictly greater
// than after, in ascending order.
func (w *WAL) ReadFrom(after types.WALSequence) ([]types.WALEntry, error) {
	var entries []types.WALEntry
	err := w.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketWAL).Cursor()
		for k, v := c.Seek(seqKey(after + 1)); k != nil; k, v = c.Next() {
			var entry types.WALEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, errs.Storage("storage.WAL.ReadFrom", err)
	}
	return entries, nil
}

// LastSequence returns the highest sequence number written so far, or 0 if
// the log is empty.
func (w *WAL) LastSequence() (types.WALSequence, error) {
	var last types.WALSequence
	err := w.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketMeta).Get(metaKeyWALSequence)
		if raw == nil {
			return nil
		}
		last = types.WALSequence(binary.BigEndian.Uint64(raw))
		return nil
	})
	return last, err
}

// TruncateBefore deletes every WAL entry with sequence number at or below
// upTo, used after a checkpoint makes those entries redundant for
// recovery.
func (w *WAL) TruncateBefore(upTo types.WALSequence) error {
	return w.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWAL)
		c := b.Cursor()
		var keys [][]byte
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if binary.BigEndian.Uint64(k) > uint64(upTo) {
				break
			}
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}
