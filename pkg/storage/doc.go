/*
Package storage is the durable substrate underneath the rest of the
codegraph engine: a content-addressed blob store, a node/edge store with
label/property/history secondary indices, a write-ahead log, a snapshot and
version manager, and crash recovery, all sharing one embedded
go.etcd.io/bbolt database (Open).

Nodes are content-addressed: NodeStore.Put serializes a node, hashes the
bytes, stores them once in BlobStore (ref-counted, deduplicated), and
updates a "current" pointer plus a per-version history entry. Every write
also appends a WALEntry inside the same bbolt transaction, so the WAL and
the data it describes can never diverge. Snapshots capture the full
node-id-to-content-hash map at a point in time; Versions name a snapshot
and link to parent versions, forming a DAG that supports diff and
three-way merge.

Recovery (recovery.go) replays the WAL from the last Checkpoint, redoing
entries whose transaction committed and undoing (by restoring each entry's
before-image) entries whose transaction never reached a commit marker. Replay
is idempotent: it is itself built from ordinary NodeStore writes, so running
it twice from the same checkpoint converges to the same state.
*/
package storage
