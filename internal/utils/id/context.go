package id

import "context"

type contextKey string

const (
	threadKey contextKey = "weft_thread_id"
	runKey    contextKey = "weft_run_id"
	turnKey   contextKey = "weft_turn"
)

// WithThreadID stores the active thread identifier on the context.
func WithThreadID(ctx context.Context, threadID string) context.Context {
	if threadID == "" {
		return ctx
	}
	return context.WithValue(ctx, threadKey, threadID)
}

// ThreadID returns the thread identifier carried by the context, if any.
func ThreadID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(threadKey).(string); ok {
		return v
	}
	return ""
}

// WithRunID stores the current orchestrator run identifier on the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	if runID == "" {
		return ctx
	}
	return context.WithValue(ctx, runKey, runID)
}

// RunID returns the orchestrator run identifier carried by the context, if any.
func RunID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(runKey).(string); ok {
		return v
	}
	return ""
}

// WithTurn stores the current turn number on the context.
func WithTurn(ctx context.Context, turn int) context.Context {
	return context.WithValue(ctx, turnKey, turn)
}

// Turn returns the turn number carried by the context, or zero.
func Turn(ctx context.Context) int {
	if ctx == nil {
		return 0
	}
	if v, ok := ctx.Value(turnKey).(int); ok {
		return v
	}
	return 0
}
