package llmprovider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeReplaysResponsesInOrder(t *testing.T) {
	f := NewFake(
		Response{Message: Message{Role: RoleAssistant, ToolCalls: []ToolCall{{Name: "get_hub_nodes"}}}},
		Response{Message: Message{Role: RoleAssistant, Content: "final answer"}, FinishReason: "stop"},
	)

	r1, err := f.Chat(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "get_hub_nodes", r1.Message.ToolCalls[0].Name)

	r2, err := f.Chat(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "final answer", r2.Message.Content)
	assert.Equal(t, 2, f.CallCount())
}

func TestFakeFallsBackToDoneAfterExhausted(t *testing.T) {
	f := NewFake()
	r, err := f.Chat(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "done", r.Message.Content)
}
