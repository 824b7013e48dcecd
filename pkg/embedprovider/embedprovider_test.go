package embedprovider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeEmbedIsDeterministic(t *testing.T) {
	f := NewFake(16)
	a, err := f.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	b, err := f.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)
}

func TestFakeEmbedDiffersAcrossText(t *testing.T) {
	f := NewFake(8)
	a, _ := f.Embed(context.Background(), "alpha")
	b, _ := f.Embed(context.Background(), "beta")
	assert.NotEqual(t, a, b)
}

func TestFakeEmbedBatch(t *testing.T) {
	f := NewFake(4)
	out, err := f.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, out, 3)
}
