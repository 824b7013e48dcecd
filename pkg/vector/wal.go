package vector

import (
	"encoding/binary"
	"encoding/json"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/graphmind/codegraph/pkg/errs"
	"github.com/graphmind/codegraph/pkg/log"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketVecWAL = []byte("vector_wal")
	bucketVecMeta = []byte("vector_wal_meta")
	metaKeySeq    = []byte("sequence")
)

// DefaultWALFlushInterval is the default period on which the vector WAL's
// pending entries are flushed to disk regardless of count.
const DefaultWALFlushInterval = 50 * time.Millisecond

// DefaultWALFlushThreshold is the pending-entry count that forces an
// immediate flush ahead of the timer.
const DefaultWALFlushThreshold = 200

// walEntry records one submitted operation ahead of ingestion; once the
// buffer holding it has been flushed, replay restores the operation after a
// crash (see vecWAL for the window before a flush).
type walEntry struct {
	Sequence  uint64          `json:"sequence"`
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Op        walOperation    `json:"op"`
}

type walOperation struct {
	Kind   string    `json:"kind"`
	NodeID string    `json:"node_id,omitempty"`
	Vector []float32 `json:"vector,omitempty"`
}

// vecWAL is a dedicated write-ahead log for the vector engine, backed by its
// own bbolt file so the graph store's WAL never has to model vector
// operations. Entries are buffered and flushed on a timer or threshold
// rather than fsynced per-append, trading a small durability window for
// ingestion throughput (segment application is idempotent on replay).
type vecWAL struct {
	db *bolt.DB

	mu      sync.Mutex
	pending []walEntry

	flushInterval  time.Duration
	flushThreshold int

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func openVecWAL(dataDir string) (*vecWAL, error) {
	db, err := bolt.Open(filepath.Join(dataDir, "vectors_wal.db"), 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errs.Storage("vector.openVecWAL", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketVecWAL); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketVecMeta)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errs.Storage("vector.openVecWAL", err)
	}
	w := &vecWAL{
		db:             db,
		flushInterval:  DefaultWALFlushInterval,
		flushThreshold: DefaultWALFlushThreshold,
		stopCh:         make(chan struct{}),
	}
	w.wg.Add(1)
	go w.flushLoop()
	return w, nil
}

// append buffers entry in memory; it is durably persisted at the next
// timer tick or once the buffer crosses flushThreshold entries.
func (w *vecWAL) append(op walOperation) {
	w.mu.Lock()
	w.pending = append(w.pending, walEntry{ID: uuid.NewString(), Timestamp: time.Now(), Op: op})
	shouldFlush := len(w.pending) >= w.flushThreshold
	w.mu.Unlock()

	if shouldFlush {
		if err := w.flush(); err != nil {
			log.WithComponent("vector.wal").Error().Err(err).Msg("threshold flush failed")
		}
	}
}

func (w *vecWAL) flushLoop() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := w.flush(); err != nil {
				log.WithComponent("vector.wal").Error().Err(err).Msg("periodic flush failed")
			}
		case <-w.stopCh:
			_ = w.flush()
			return
		}
	}
}

func (w *vecWAL) flush() error {
	w.mu.Lock()
	batch := w.pending
	w.pending = nil
	w.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	return w.db.Update(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketVecMeta)
		b := tx.Bucket(bucketVecWAL)

		var seq uint64
		if raw := meta.Get(metaKeySeq); raw != nil {
			seq = binary.BigEndian.Uint64(raw)
		}
		for i := range batch {
			seq++
			batch[i].Sequence = seq
			encoded, err := json.Marshal(batch[i])
			if err != nil {
				return err
			}
			if err := b.Put(seqBytes(seq), encoded); err != nil {
				return err
			}
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, seq)
		return meta.Put(metaKeySeq, buf)
	})
}

func seqBytes(seq uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	return buf
}

// replay returns every durably-flushed entry in sequence order, used to
// rebuild segment state after a crash.
func (w *vecWAL) replay() ([]walEntry, error) {
	var entries []walEntry
	err := w.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketVecWAL).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var e walEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, errs.Storage("vector.vecWAL.replay", err)
	}
	return entries, nil
}

func (w *vecWAL) close() error {
	close(w.stopCh)
	w.wg.Wait()
	return w.db.Close()
}
