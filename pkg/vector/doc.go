// Package vector implements the incremental vector index: a WAL-backed
// ingestion engine batching Insert/Update/Delete/Batch operations across a
// worker pool into append-only segments, with background merging of small
// sealed segments and brute-force cosine-similarity search.
package vector
