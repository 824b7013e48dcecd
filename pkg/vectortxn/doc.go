// Package vectortxn provides the transactional consistency layer over
// pkg/vector: begin/add-op/prepare/commit/abort, a five-mode 2PL lock
// table, wait-for-graph deadlock detection, and periodic checkpoints of
// committed transaction ids.
package vectortxn
