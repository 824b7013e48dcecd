// Package tools implements the fixed catalogue of read-only graph-query
// tools the agentic orchestrator can invoke: dependency traversal, cycle
// detection, call-chain tracing, coupling metrics, hub detection, semantic
// search, and complexity hotspots. Every tool resolves against a single
// snapshot for the duration of one call.
package tools
