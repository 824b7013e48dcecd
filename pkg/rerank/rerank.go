// Package rerank provides pluggable reranking of semantic_code_search
// candidates: a dependency-free keyword-overlap reranker and an
// LLM-cross-encoder reranker that scores each candidate via a chat call.
package rerank

import "context"

// Candidate is one nearest-neighbour search result awaiting reranking.
type Candidate struct {
	NodeID string
	Text   string
	Score  float64
}

// Reranker reorders candidates by relevance to query and returns the top N.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []Candidate, topN int) ([]Candidate, error)
}
