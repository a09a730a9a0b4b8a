package endturn_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weft/internal/task"
	"weft/internal/tools/endturn"
)

func newTask(t *testing.T, cfg task.Config) *task.Task {
	t.Helper()
	return task.New(context.Background(), cfg)
}

func TestMarkSuccessfulDrivesTaskTerminal(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tk := newTask(t, task.Config{Instructions: "pick a color"})
	require.NoError(t, tk.MarkRunning(ctx))

	tool := endturn.MarkSuccessful(tk)
	assert.True(t, tool.Definition().EndTurn)
	assert.Equal(t, tk, tool.Task())

	_, err := tool.Invoke(ctx, map[string]any{"result": "blue"})
	require.NoError(t, err)
	assert.Equal(t, task.StateSuccessful, tk.State())
	assert.Equal(t, "blue", tk.Result())
}

func TestMarkSuccessfulValidatesClassifier(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tk := newTask(t, task.Config{
		Instructions: "classify",
		ResultType:   task.NewLabelStrings("red", "green"),
	})
	require.NoError(t, tk.MarkRunning(ctx))

	tool := endturn.MarkSuccessful(tk)
	_, err := tool.Invoke(ctx, map[string]any{"result": 5})
	require.Error(t, err)
	assert.Equal(t, task.StateRunning, tk.State())

	_, err = tool.Invoke(ctx, map[string]any{"result": 1})
	require.NoError(t, err)
	assert.Equal(t, "green", tk.Result())
}

func TestMarkFailedRecordsMessage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tk := newTask(t, task.Config{Instructions: "doomed"})
	require.NoError(t, tk.MarkRunning(ctx))

	_, err := endturn.MarkFailed(tk).Invoke(ctx, map[string]any{"message": "no data source"})
	require.NoError(t, err)
	assert.Equal(t, task.StateFailed, tk.State())
	assert.Equal(t, "no data source", tk.Result())
}

func TestMarkSkipped(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tk := newTask(t, task.Config{Instructions: "optional"})

	_, err := endturn.MarkSkipped(tk).Invoke(ctx, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, task.StateSkipped, tk.State())
}

func TestForTaskNamesAreDistinct(t *testing.T) {
	t.Parallel()

	tk := newTask(t, task.Config{Instructions: "anything"})
	seen := map[string]bool{}
	for _, tool := range endturn.ForTask(tk) {
		name := tool.Definition().Name
		assert.False(t, seen[name], "duplicate tool name %s", name)
		seen[name] = true
	}
	assert.Len(t, seen, 3)
}
