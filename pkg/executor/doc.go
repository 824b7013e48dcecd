// Package executor dispatches tool-catalogue calls: it validates and
// defaults parameters, serves repeat calls from an LRU result cache,
// truncates oversized results, all while recording prometheus metrics for
// each step. Reranking of semantic search hits happens inside the
// semantic_code_search tool (pkg/tools), not here.
package executor
