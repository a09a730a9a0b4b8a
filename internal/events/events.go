// Package events defines the internal event tagged union streamed from the
// orchestrator to registered handlers, plus the handler fan-out.
package events

import (
	"time"

	"weft/internal/logging"
	"weft/internal/thread"
	"weft/internal/tools"
)

// Event is the tagged union of everything the orchestrator streams outward.
type Event interface {
	EventType() string
}

// UserMessage reports a user message entering the thread.
type UserMessage struct {
	Message thread.Message
}

func (UserMessage) EventType() string { return "user-message" }

// ActorStartTurn reports that an actor is beginning a turn.
type ActorStartTurn struct {
	ActorName string
}

func (ActorStartTurn) EventType() string { return "actor-start-turn" }

// ActorEndTurn reports that an actor finished a turn.
type ActorEndTurn struct {
	ActorName string
}

func (ActorEndTurn) EventType() string { return "actor-end-turn" }

// MessageDelta carries one increment of streamed assistant text together with
// the full accumulated snapshot, so handlers can consume either granularity.
type MessageDelta struct {
	ActorName string
	Delta     string
	Snapshot  string
}

func (MessageDelta) EventType() string { return "message-delta" }

// ToolCall reports a completed tool invocation request. Handle is nil when
// the name resolved against no known origin; the event is still forwarded.
type ToolCall struct {
	ActorName string
	Origin    tools.Origin
	Handle    tools.Handle
	Name      string
	CallID    string
	Arguments string
}

func (ToolCall) EventType() string { return "tool-call" }

// ToolResult carries a tool's textual outcome back into the stream.
type ToolResult struct {
	ActorName string
	Origin    tools.Origin
	Handle    tools.Handle
	Name      string
	CallID    string
	Content   string
	IsError   bool
}

func (ToolResult) EventType() string { return "tool-result" }

// ToolRetry reports that the runtime asked the model to retry a tool call,
// usually after argument validation failed.
type ToolRetry struct {
	ActorName string
	Name      string
	CallID    string
	Content   string
}

func (ToolRetry) EventType() string { return "tool-retry" }

// EndTurnToolResult reports that a turn-ending tool concluded the run.
type EndTurnToolResult struct {
	ActorName string
	Handle    tools.Handle
	Name      string
	CallID    string
}

func (EndTurnToolResult) EventType() string { return "end-turn-tool-result" }

// OrchestratorStart opens a run.
type OrchestratorStart struct {
	StartedAt time.Time
}

func (OrchestratorStart) EventType() string { return "orchestrator-start" }

// OrchestratorEnd closes a run. Emitted on every exit path.
type OrchestratorEnd struct {
	EndedAt time.Time
}

func (OrchestratorEnd) EventType() string { return "orchestrator-end" }

// OrchestratorError reports a fatal run error before the end event.
type OrchestratorError struct {
	Err error
}

func (OrchestratorError) EventType() string { return "orchestrator-error" }

// Handler observes translated events. Handlers must not block for long; the
// orchestrator calls them inline on its own loop.
type Handler interface {
	HandleEvent(event Event)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(event Event)

func (f HandlerFunc) HandleEvent(event Event) { f(event) }

// FanOut delivers each event to every handler in order. A panicking handler
// is logged and skipped so one bad observer cannot abort the run.
type FanOut struct {
	handlers []Handler
	logger   logging.Logger
}

// NewFanOut builds a fan-out over handlers.
func NewFanOut(logger logging.Logger, handlers ...Handler) *FanOut {
	return &FanOut{handlers: handlers, logger: logging.OrNop(logger)}
}

// Add registers another handler.
func (f *FanOut) Add(h Handler) {
	if h != nil {
		f.handlers = append(f.handlers, h)
	}
}

// HandleEvent implements Handler.
func (f *FanOut) HandleEvent(event Event) {
	for _, h := range f.handlers {
		f.dispatch(h, event)
	}
}

func (f *FanOut) dispatch(h Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("Event handler panicked on %s: %v", event.EventType(), r)
		}
	}()
	h.HandleEvent(event)
}

// Collector records every event it sees, mainly for tests and debugging.
type Collector struct {
	Events []Event
}

// HandleEvent implements Handler.
func (c *Collector) HandleEvent(event Event) {
	c.Events = append(c.Events, event)
}

// OfType returns the collected events whose EventType matches kind.
func (c *Collector) OfType(kind string) []Event {
	var out []Event
	for _, e := range c.Events {
		if e.EventType() == kind {
			out = append(out, e)
		}
	}
	return out
}
