// Package fn provides small generic helpers — a Result type, bounded
// parallel map, a composable Stage pipeline, and retry with backoff — used
// by the vector engine, the resilience package and the LLM/embedding
// provider clients wherever a result needs to
// flow through multiple fallible stages or a batch of independent work
// needs bounded concurrency.
package fn
