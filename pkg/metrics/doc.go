/*
Package metrics defines and registers the Prometheus collectors for the
codegraph engine: storage (WAL append latency, sequence, checkpoints, blob
cache hits), transactions (commit/abort counters by isolation level, lock
wait latency), the vector engine (segment counts, merges, deadlocks), the
tool executor (dispatch counts/latency, result cache hits, truncations) and
the agentic orchestrator (step counts by tier, session outcomes, session
duration). Handler exposes the scrape endpoint; Collector polls a Source
(implemented by the engine composition root) on a fixed interval to keep
gauge metrics current.
*/
package metrics
