package rerank

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/graphmind/codegraph/pkg/llmprovider"
)

// CrossEncoderReranker scores each candidate against the query with a
// single-purpose chat call asking the model for a 0-1 relevance score,
// trading latency and cost for higher-quality ranking than the keyword
// heuristic.
type CrossEncoderReranker struct {
	provider llmprovider.Provider
}

func NewCrossEncoderReranker(provider llmprovider.Provider) *CrossEncoderReranker {
	return &CrossEncoderReranker{provider: provider}
}

func (r *CrossEncoderReranker) Rerank(ctx context.Context, query string, candidates []Candidate, topN int) ([]Candidate, error) {
	out := make([]Candidate, len(candidates))
	copy(out, candidates)

	for i := range out {
		score, err := r.score(ctx, query, out[i].Text)
		if err != nil {
			return nil, err
		}
		out[i].Score = score
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out, nil
}

func (r *CrossEncoderReranker) score(ctx context.Context, query, candidate string) (float64, error) {
	prompt := fmt.Sprintf(
		"Rate how relevant this code snippet is to the query on a scale from 0.0 to 1.0. "+
			"Respond with only the number.\n\nQuery: %s\n\nSnippet:\n%s", query, candidate)

	resp, err := r.provider.Chat(ctx, llmprovider.Request{
		Messages: []llmprovider.Message{{Role: llmprovider.RoleUser, Content: prompt}},
	})
	if err != nil {
		return 0, err
	}

	score, err := strconv.ParseFloat(strings.TrimSpace(resp.Message.Content), 64)
	if err != nil {
		return 0, nil // treat an unparsable score as zero relevance rather than failing the whole rerank
	}
	return score, nil
}
