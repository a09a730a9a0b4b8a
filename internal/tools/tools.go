package tools

import (
	"context"
	"fmt"
)

// Origin tags where a tool name resolved from. Resolution priority is
// native, then server-discovered, then end-turn.
type Origin int

const (
	// OriginUnknown marks a name no map could resolve.
	OriginUnknown Origin = iota
	// OriginNative is a tool declared directly on a task.
	OriginNative
	// OriginServer is a tool discovered from an external tool server.
	OriginServer
	// OriginEndTurn is a turn-ending tool.
	OriginEndTurn
)

func (o Origin) String() string {
	switch o {
	case OriginNative:
		return "native"
	case OriginServer:
		return "server"
	case OriginEndTurn:
		return "end_turn"
	default:
		return "unknown"
	}
}

// Definition is the schema surfaced to the model for one tool.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	// EndTurn marks tools whose invocation ends the turn.
	EndTurn bool `json:"-"`
}

// Handle is anything resolvable by tool name.
type Handle interface {
	Definition() Definition
}

// Invoker is a handle that can also execute.
type Invoker interface {
	Handle
	Invoke(ctx context.Context, args map[string]any) (string, error)
}

// Tool is a caller-declared native tool.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Execute     func(ctx context.Context, args map[string]any) (string, error)
}

// Definition implements Handle.
func (t Tool) Definition() Definition {
	return Definition{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  t.Parameters,
	}
}

// Invoke implements Invoker.
func (t Tool) Invoke(ctx context.Context, args map[string]any) (string, error) {
	if t.Execute == nil {
		return "", fmt.Errorf("tool %q has no executor", t.Name)
	}
	return t.Execute(ctx, args)
}

// Resolver maps tool names to handles across the three origins through a
// single lookup, so the unknown-name fallback lives in one place.
type Resolver struct {
	native  map[string]Handle
	server  map[string]Handle
	endTurn map[string]Handle
}

// NewResolver returns an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{
		native:  make(map[string]Handle),
		server:  make(map[string]Handle),
		endTurn: make(map[string]Handle),
	}
}

// AddNative registers task-declared tools.
func (r *Resolver) AddNative(handles ...Handle) {
	for _, h := range handles {
		r.native[h.Definition().Name] = h
	}
}

// AddServer registers tools discovered from external tool servers.
func (r *Resolver) AddServer(handles ...Handle) {
	for _, h := range handles {
		r.server[h.Definition().Name] = h
	}
}

// AddEndTurn registers turn-ending tools.
func (r *Resolver) AddEndTurn(handles ...Handle) {
	for _, h := range handles {
		r.endTurn[h.Definition().Name] = h
	}
}

// Resolve looks a name up across all origins in priority order.
func (r *Resolver) Resolve(name string) (Origin, Handle, bool) {
	if h, ok := r.native[name]; ok {
		return OriginNative, h, true
	}
	if h, ok := r.server[name]; ok {
		return OriginServer, h, true
	}
	if h, ok := r.endTurn[name]; ok {
		return OriginEndTurn, h, true
	}
	return OriginUnknown, nil, false
}

// EndTurnNames returns the registered turn-ending tool names.
func (r *Resolver) EndTurnNames() []string {
	names := make([]string, 0, len(r.endTurn))
	for name := range r.endTurn {
		names = append(names, name)
	}
	return names
}

// Definitions returns every registered definition, end-turn tools flagged.
func (r *Resolver) Definitions() []Definition {
	out := make([]Definition, 0, len(r.native)+len(r.server)+len(r.endTurn))
	for _, h := range r.native {
		out = append(out, h.Definition())
	}
	for _, h := range r.server {
		out = append(out, h.Definition())
	}
	for _, h := range r.endTurn {
		def := h.Definition()
		def.EndTurn = true
		out = append(out, def)
	}
	return out
}
