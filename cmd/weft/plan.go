package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"weft/internal/task"
)

func newPlanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "plan <taskfile>",
		Short: "Validate a task file and print its execution order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return planTaskFile(cmd.Context(), args[0])
		},
	}
}

// planTaskFile simulates readiness over the graph without running anything:
// each wave lists the tasks that would be ready together.
func planTaskFile(ctx context.Context, path string) error {
	file, err := LoadTaskFile(path)
	if err != nil {
		return err
	}
	tasks, err := file.BuildTasks(ctx, nil)
	if err != nil {
		return err
	}

	remaining := make(map[*task.Task]bool, len(tasks))
	for _, t := range tasks {
		remaining[t] = true
	}

	wave := 0
	for len(remaining) > 0 {
		var ready []*task.Task
		for t := range remaining {
			if t.IsReady() {
				ready = append(ready, t)
			}
		}
		if len(ready) == 0 {
			return fmt.Errorf("no runnable tasks remain; check for dependency cycles")
		}
		sort.Slice(ready, func(i, j int) bool { return ready[i].ID() < ready[j].ID() })

		wave++
		fmt.Printf("Turn %d:\n", wave)
		for _, t := range ready {
			fmt.Printf("  %s  %s\n", t.ID(), t.Instructions())
			if err := t.MarkRunning(ctx); err != nil {
				return err
			}
			if err := t.MarkSkipped(ctx); err != nil {
				return err
			}
			delete(remaining, t)
		}
	}
	return nil
}
