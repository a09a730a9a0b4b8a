package orchestrator

import (
	"fmt"
	"strings"

	"weft/internal/actor"
	"weft/internal/task"
)

// renderSystemPrompt builds the turn's system message from the actor's
// identity, its standing instructions, the tasks in play, and anything
// recalled from memory.
func renderSystemPrompt(act actor.Actor, ready []*task.Task, recalled []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s.\n", act.Name())
	if instructions := act.Instructions(); instructions != "" {
		b.WriteString(instructions)
		b.WriteString("\n")
	}

	b.WriteString("\nYou are working on the following tasks:\n")
	for _, t := range ready {
		fmt.Fprintf(&b, "\n- Task %s", t.ID())
		if t.Name() != t.ID() {
			fmt.Fprintf(&b, " (%s)", t.Name())
		}
		fmt.Fprintf(&b, "\n  Instructions: %s\n", t.Instructions())
		if desc := t.ResultType().Describe(); desc != "" {
			fmt.Fprintf(&b, "  Expected result: %s\n", desc)
		}
	}

	b.WriteString("\nComplete a task by calling its turn-ending tool, or reply " +
		"with your final answer as plain text to mark every active task successful.\n")

	for _, recall := range recalled {
		b.WriteString("\n")
		b.WriteString(recall)
		b.WriteString("\n")
	}
	return b.String()
}
