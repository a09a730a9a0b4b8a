package task

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weft/internal/thread"
	"weft/internal/thread/memstore"
)

func TestVerboseTransitionsAnnounceToAmbientThread(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	th := thread.New(store)
	ctx := thread.WithCurrent(context.Background(), th)

	tk := New(ctx, Config{Name: "summarize", Verbose: true})
	require.NoError(t, tk.MarkRunning(ctx))
	require.NoError(t, tk.MarkSuccessful(ctx, "a short summary"))

	messages, err := th.GetMessages(ctx, thread.GetOptions{IncludeSystem: true})
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Contains(t, messages[0].Content, "summarize running")
	assert.Contains(t, messages[1].Content, "summarize successful")
	assert.Contains(t, messages[1].Content, "a short summary")
}

func TestNonVerboseTransitionsStaySilent(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	th := thread.New(store)
	ctx := thread.WithCurrent(context.Background(), th)

	tk := New(ctx, Config{Name: "quiet"})
	require.NoError(t, tk.MarkRunning(ctx))
	require.NoError(t, tk.MarkSuccessful(ctx, "ok"))

	messages, err := th.GetMessages(ctx, thread.GetOptions{IncludeSystem: true})
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestVerboseWithoutAmbientThreadIsSafe(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tk := New(ctx, Config{Name: "detached", Verbose: true})
	require.NoError(t, tk.MarkRunning(ctx))
	require.NoError(t, tk.MarkSkipped(ctx))
	assert.Equal(t, StateSkipped, tk.State())
}
