/*
Package types defines the core data model shared by every component of the
codegraph engine: nodes and edges of the property graph, content-addressed
blobs, snapshots and versions, transactions and their write sets, WAL
entries and checkpoints, and vector segments.

# Layering

	┌────────────────────── DATA MODEL ───────────────────────┐
	│                                                           │
	│  Node / Edge            — property graph unit of meaning │
	│  ContentBlob             — SHA-256-addressed payload      │
	│  Snapshot / Version      — immutable point-in-time state  │
	│  Transaction             — MVCC unit of work               │
	│  WALEntry / Checkpoint   — durability record                │
	│  VectorSegment           — append-only (id, vector) set    │
	│                                                           │
	└───────────────────────────────────────────────────────────┘

None of the types here know how to persist themselves; every (de)serialization
and storage decision lives in pkg/storage, pkg/txn and pkg/vector. Keeping the
model package free of I/O keeps it importable from every other package
without cycles.
*/
package types
