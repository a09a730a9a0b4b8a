package memory

import "context"

// Memory is a capability an actor can use to store and recall information
// across turns and runs.
type Memory interface {
	// Key identifies the memory partition.
	Key() string

	// Instructions describes to the actor what this memory holds.
	Instructions() string

	// Add stores content under the memory partition.
	Add(ctx context.Context, id, content string) error

	// Search returns up to n results relevant to query, rendered as text.
	Search(ctx context.Context, query string, n int) (string, error)

	// AutoRecall reports whether the orchestrator should query this memory
	// automatically before each turn.
	AutoRecall() bool
}
