package stream_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weft/internal/agentrun"
	"weft/internal/stream"
)

func TestAccumulatorFoldsToolCallFragments(t *testing.T) {
	t.Parallel()

	acc := stream.NewAccumulator()
	acc.Start(2, agentrun.Part{Type: agentrun.PartToolCall, ToolName: "que", ToolCallID: "call-4"})

	_, err := acc.Apply(2, agentrun.PartDelta{ToolName: "ry", Arguments: `{"term`})
	require.NoError(t, err)
	snap, err := acc.Apply(2, agentrun.PartDelta{Arguments: `":"x"}`})
	require.NoError(t, err)

	assert.Equal(t, "query", snap.ToolName)
	assert.Equal(t, `{"term":"x"}`, snap.Arguments)
	assert.Equal(t, "call-4", snap.ToolCallID)
}

func TestAccumulatorRejectsUnknownIndex(t *testing.T) {
	t.Parallel()

	acc := stream.NewAccumulator()
	_, err := acc.Apply(0, agentrun.PartDelta{Text: "x"})
	assert.Error(t, err)
}

func TestFindToolCallPrefersLowestIndex(t *testing.T) {
	t.Parallel()

	acc := stream.NewAccumulator()
	acc.Start(3, agentrun.Part{Type: agentrun.PartToolCall, ToolName: "mark_done", ToolCallID: "call-b"})
	acc.Start(1, agentrun.Part{Type: agentrun.PartToolCall, ToolName: "mark_done", ToolCallID: "call-a"})
	acc.Start(0, agentrun.Part{Type: agentrun.PartText, Text: "hi"})

	snap, ok := acc.FindToolCall("mark_done")
	require.True(t, ok)
	assert.Equal(t, "call-a", snap.ToolCallID)
}
