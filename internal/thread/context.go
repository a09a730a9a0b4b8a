package thread

import "context"

type contextKey struct{}

// WithCurrent scopes the active thread onto the context. The returned context
// is the only carrier of the reference; there is no package-level state, so
// concurrent runs cannot observe each other's thread.
func WithCurrent(ctx context.Context, t *Thread) context.Context {
	if t == nil {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, t)
}

// Current returns the thread scoped onto the context, or nil.
func Current(ctx context.Context) *Thread {
	if ctx == nil {
		return nil
	}
	if t, ok := ctx.Value(contextKey{}).(*Thread); ok {
		return t
	}
	return nil
}
