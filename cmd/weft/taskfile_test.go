package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weft/internal/task"
)

func writeTaskFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTaskFileBuildsGraph(t *testing.T) {
	t.Parallel()

	path := writeTaskFile(t, `
actor:
  name: researcher
  instructions: Be thorough.
raise_on_failure: true
tasks:
  - id: gather
    instructions: Gather sources.
  - id: rate
    instructions: Rate source quality.
    labels: [poor, fair, good]
  - id: write
    instructions: Write the summary.
    depends_on: [gather, rate]
`)

	file, err := LoadTaskFile(path)
	require.NoError(t, err)
	assert.Equal(t, "researcher", file.Actor.Name)
	assert.True(t, file.RaiseOnFailure)

	tasks, err := file.BuildTasks(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, tasks, 3)

	byID := map[string]*task.Task{}
	for _, tk := range tasks {
		byID[tk.ID()] = tk
	}
	assert.True(t, byID["gather"].IsReady())
	assert.True(t, byID["rate"].IsReady())
	assert.False(t, byID["write"].IsReady())

	// The classifier task validates an index.
	got, err := byID["rate"].ResultType().Validate(2)
	require.NoError(t, err)
	assert.Equal(t, "good", got)
}

func TestLoadTaskFileRejectsBadInput(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"no tasks":        "actor:\n  name: a\n",
		"missing id":      "tasks:\n  - instructions: x\n",
		"duplicate id":    "tasks:\n  - id: a\n    instructions: x\n  - id: a\n    instructions: y\n",
		"no instructions": "tasks:\n  - id: a\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadTaskFile(writeTaskFile(t, content))
			assert.Error(t, err)
		})
	}
}

func TestBuildTasksRejectsUnknownReferences(t *testing.T) {
	t.Parallel()

	file, err := LoadTaskFile(writeTaskFile(t, `
tasks:
  - id: a
    instructions: x
    depends_on: [ghost]
`))
	require.NoError(t, err)

	_, err = file.BuildTasks(context.Background(), nil)
	assert.Error(t, err)
}
