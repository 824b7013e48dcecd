package rerank

import (
	"context"
	"sort"
	"strings"
)

// stopWords mirrors the keyword filter used elsewhere in the pack for
// lightweight query-term extraction.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "do": true, "does": true,
	"did": true, "will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "can": true, "shall": true, "to": true,
	"of": true, "in": true, "for": true, "on": true, "with": true,
	"at": true, "by": true, "from": true, "as": true, "into": true,
	"through": true, "during": true, "before": true, "after": true,
	"what": true, "where": true, "when": true, "how": true, "which": true,
	"who": true, "whom": true, "this": true, "that": true, "these": true,
	"those": true, "i": true, "me": true, "my": true, "it": true,
	"its": true, "and": true, "but": true, "or": true, "not": true,
}

func extractKeywords(text string) []string {
	words := strings.Fields(strings.ToLower(text))
	var keywords []string
	for _, w := range words {
		w = strings.Trim(w, "?.,!;:'\"")
		if len(w) > 2 && !stopWords[w] {
			keywords = append(keywords, w)
		}
	}
	return keywords
}

// TextReranker rescales each candidate's vector-similarity score by its
// keyword overlap with the query, a cheap dependency-free reranking pass
// for when no cross-encoder model is configured.
type TextReranker struct{}

func NewTextReranker() *TextReranker { return &TextReranker{} }

func (r *TextReranker) Rerank(_ context.Context, query string, candidates []Candidate, topN int) ([]Candidate, error) {
	keywords := extractKeywords(query)
	out := make([]Candidate, len(candidates))
	copy(out, candidates)

	for i := range out {
		overlap := keywordOverlap(keywords, out[i].Text)
		out[i].Score = out[i].Score*0.6 + overlap*0.4
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out, nil
}

func keywordOverlap(keywords []string, text string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	hits := 0
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			hits++
		}
	}
	return float64(hits) / float64(len(keywords))
}
