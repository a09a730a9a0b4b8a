package orchestrator

import "context"

type contextKey struct{}

// WithCurrent scopes the active orchestrator to ctx so nested code can
// discover it without parameter threading.
func WithCurrent(ctx context.Context, o *Orchestrator) context.Context {
	return context.WithValue(ctx, contextKey{}, o)
}

// Current returns the orchestrator scoped to ctx, or nil.
func Current(ctx context.Context) *Orchestrator {
	o, _ := ctx.Value(contextKey{}).(*Orchestrator)
	return o
}
