// Package endturn provides the turn-ending tools: invoking one drives its
// associated task to a terminal state and signals the orchestrator that the
// turn is over.
package endturn

import (
	"context"
	"fmt"

	"weft/internal/task"
	"weft/internal/tools"
)

// Tool is a turn-ending tool bound to one task.
type Tool struct {
	def    tools.Definition
	task   *task.Task
	invoke func(ctx context.Context, args map[string]any) (string, error)
}

// Definition implements tools.Handle.
func (t *Tool) Definition() tools.Definition { return t.def }

// Task returns the task this tool drives terminal.
func (t *Tool) Task() *task.Task { return t.task }

// Invoke implements tools.Invoker.
func (t *Tool) Invoke(ctx context.Context, args map[string]any) (string, error) {
	return t.invoke(ctx, args)
}

// MarkSuccessful builds the tool that completes tk with a validated result.
func MarkSuccessful(tk *task.Task) *Tool {
	resultType := tk.ResultType()
	return &Tool{
		def: tools.Definition{
			Name: fmt.Sprintf("mark_%s_successful", tk.ID()),
			Description: fmt.Sprintf(
				"Mark task %q successful. The result must be of type %s. %s",
				tk.Name(), resultType.WireType(), resultType.Describe(),
			),
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"result": map[string]any{
						"description": "The validated task result.",
					},
				},
				"required": []string{"result"},
			},
			EndTurn: true,
		},
		task: tk,
		invoke: func(ctx context.Context, args map[string]any) (string, error) {
			if err := tk.MarkSuccessful(ctx, args["result"]); err != nil {
				return "", err
			}
			return fmt.Sprintf("Task %q marked successful.", tk.Name()), nil
		},
	}
}

// MarkFailed builds the tool that fails tk with an error message.
func MarkFailed(tk *task.Task) *Tool {
	return &Tool{
		def: tools.Definition{
			Name:        fmt.Sprintf("mark_%s_failed", tk.ID()),
			Description: fmt.Sprintf("Mark task %q failed, with a message explaining why.", tk.Name()),
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"message": map[string]any{
						"type":        "string",
						"description": "Why the task could not be completed.",
					},
				},
				"required": []string{"message"},
			},
			EndTurn: true,
		},
		task: tk,
		invoke: func(ctx context.Context, args map[string]any) (string, error) {
			message, _ := args["message"].(string)
			if err := tk.MarkFailed(ctx, message); err != nil {
				return "", err
			}
			return fmt.Sprintf("Task %q marked failed.", tk.Name()), nil
		},
	}
}

// MarkSkipped builds the tool that skips tk.
func MarkSkipped(tk *task.Task) *Tool {
	return &Tool{
		def: tools.Definition{
			Name:        fmt.Sprintf("mark_%s_skipped", tk.ID()),
			Description: fmt.Sprintf("Mark task %q skipped because it no longer needs to run.", tk.Name()),
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
			EndTurn: true,
		},
		task: tk,
		invoke: func(ctx context.Context, args map[string]any) (string, error) {
			if err := tk.MarkSkipped(ctx); err != nil {
				return "", err
			}
			return fmt.Sprintf("Task %q marked skipped.", tk.Name()), nil
		},
	}
}

// ForTask returns the full set of turn-ending tools for one task.
func ForTask(tk *task.Task) []*Tool {
	return []*Tool{MarkSuccessful(tk), MarkFailed(tk), MarkSkipped(tk)}
}
