package rerank

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphmind/codegraph/pkg/llmprovider"
)

func TestTextRerankerBoostsKeywordOverlap(t *testing.T) {
	r := NewTextReranker()
	candidates := []Candidate{
		{NodeID: "a", Text: "parses JSON configuration files", Score: 0.5},
		{NodeID: "b", Text: "unrelated database migration helper", Score: 0.55},
	}

	out, err := r.Rerank(context.Background(), "parse configuration", candidates, 0)
	require.NoError(t, err)
	assert.Equal(t, "a", out[0].NodeID)
}

func TestTextRerankerRespectsTopN(t *testing.T) {
	r := NewTextReranker()
	candidates := []Candidate{
		{NodeID: "a", Score: 0.9},
		{NodeID: "b", Score: 0.8},
		{NodeID: "c", Score: 0.7},
	}
	out, err := r.Rerank(context.Background(), "", candidates, 2)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestCrossEncoderRerankerParsesScore(t *testing.T) {
	fake := llmprovider.NewFake(
		llmprovider.Response{Message: llmprovider.Message{Content: "0.9"}},
		llmprovider.Response{Message: llmprovider.Message{Content: "0.1"}},
	)
	r := NewCrossEncoderReranker(fake)

	out, err := r.Rerank(context.Background(), "query", []Candidate{
		{NodeID: "low", Text: "x"},
		{NodeID: "high", Text: "y"},
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, "low", out[0].NodeID)
	assert.Equal(t, 0.9, out[0].Score)
}
