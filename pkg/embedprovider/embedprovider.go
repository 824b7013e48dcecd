// Package embedprovider provides pluggable text-embedding backends for
// semantic_code_search query embedding.
package embedprovider

import "context"

// Provider embeds text into the fixed-dimension vector space the segment
// engine indexes.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
