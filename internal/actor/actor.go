// Package actor defines the executor abstraction the orchestrator drives:
// something that can take a turn over an agent runtime, optionally backed by
// external tool servers and memories.
package actor

import (
	"context"

	"weft/internal/agentrun"
	"weft/internal/logging"
	"weft/internal/mcp"
	"weft/internal/memory"
	"weft/internal/thread"
)

// Actor performs a task's work for one turn.
type Actor interface {
	Name() string
	Instructions() string

	// Agentlet returns the runner for one turn, given the tools and
	// turn-ending tools the turn offers.
	Agentlet(toolDefs, endTurnDefs []agentrun.ToolDefinition) (agentrun.Runner, error)

	// MCPServers lists the external tool servers this actor wants live.
	MCPServers() []*mcp.Server

	// Memories lists the actor's own memories, merged with task memories.
	Memories() []memory.Memory

	StartTurn(ctx context.Context, th *thread.Thread) error
	EndTurn(ctx context.Context, result agentrun.Result, th *thread.Thread) error
}

// Agent is the standard Actor: a name, instructions, and a runner.
type Agent struct {
	name         string
	instructions string
	runner       agentrun.Runner
	servers      []*mcp.Server
	memories     []memory.Memory
	logger       logging.Logger
}

// Config configures an Agent.
type Config struct {
	Name         string
	Instructions string
	Runner       agentrun.Runner
	MCPServers   []*mcp.Server
	Memories     []memory.Memory
	Logger       logging.Logger
}

// New builds an Agent.
func New(cfg Config) *Agent {
	name := cfg.Name
	if name == "" {
		name = "agent"
	}
	return &Agent{
		name:         name,
		instructions: cfg.Instructions,
		runner:       cfg.Runner,
		servers:      cfg.MCPServers,
		memories:     cfg.Memories,
		logger:       logging.OrNop(cfg.Logger),
	}
}

func (a *Agent) Name() string         { return a.name }
func (a *Agent) Instructions() string { return a.instructions }

// Agentlet implements Actor. The runner receives the tool set again with
// every request, so the configured runner serves every turn.
func (a *Agent) Agentlet(toolDefs, endTurnDefs []agentrun.ToolDefinition) (agentrun.Runner, error) {
	return a.runner, nil
}

func (a *Agent) MCPServers() []*mcp.Server { return a.servers }
func (a *Agent) Memories() []memory.Memory { return a.memories }

// StartTurn implements Actor.
func (a *Agent) StartTurn(ctx context.Context, th *thread.Thread) error {
	a.logger.Debug("Agent %s starting turn", a.name)
	return nil
}

// EndTurn implements Actor.
func (a *Agent) EndTurn(ctx context.Context, result agentrun.Result, th *thread.Thread) error {
	a.logger.Debug("Agent %s ended turn", a.name)
	return nil
}
