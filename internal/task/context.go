package task

import "context"

type contextKey struct{}

// WithCurrent scopes the active task onto the context, making it the default
// parent for tasks constructed within the scope.
func WithCurrent(ctx context.Context, t *Task) context.Context {
	if t == nil {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, t)
}

// Current returns the task scoped onto the context, or nil.
func Current(ctx context.Context) *Task {
	if ctx == nil {
		return nil
	}
	if t, ok := ctx.Value(contextKey{}).(*Task); ok {
		return t
	}
	return nil
}
