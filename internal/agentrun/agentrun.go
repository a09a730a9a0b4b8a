// Package agentrun defines the contract with the external agent runtime: a
// pull-based stream of run events plus a final result. The engine never
// performs model inference itself; it drives whatever implements Runner and
// reacts to the events it yields.
package agentrun

import (
	"context"

	"weft/internal/thread"
)

// DefaultOutputTool is the runtime's synthetic output tool. An end event
// naming it means the final text was already streamed through deltas, not
// that a turn-ending tool ran.
const DefaultOutputTool = "final_result"

// EventKind discriminates the flattened run event stream.
type EventKind string

const (
	// KindUserPrompt echoes the prompt entering the run.
	KindUserPrompt EventKind = "user-prompt"
	// KindPartStart opens an indexed response part.
	KindPartStart EventKind = "part-start"
	// KindPartDelta extends an indexed response part.
	KindPartDelta EventKind = "part-delta"
	// KindFinalResult signals that output shaping completed. It carries no
	// externally meaningful content.
	KindFinalResult EventKind = "final-result"
	// KindToolCall reports a tool invocation with complete arguments.
	KindToolCall EventKind = "tool-call"
	// KindToolResult reports a tool's outcome.
	KindToolResult EventKind = "tool-result"
	// KindToolRetry reports the runtime asking the model to retry a call.
	KindToolRetry EventKind = "tool-retry"
	// KindEnd terminates the run, naming the tool that ended it.
	KindEnd EventKind = "end"
)

// PartType discriminates response parts.
type PartType string

const (
	PartText     PartType = "text"
	PartToolCall PartType = "tool-call"
)

// Part is the initial content of a response part.
type Part struct {
	Type       PartType
	Text       string
	ToolName   string
	ToolCallID string
	Arguments  string
}

// PartDelta is an increment applied to an existing part. Text extends text
// parts; ToolName and Arguments extend tool-call parts.
type PartDelta struct {
	Text      string
	ToolName  string
	Arguments string
}

// Event is one element of the flattened run stream. Which fields are
// meaningful depends on Kind.
type Event struct {
	Kind      EventKind
	Index     int
	Part      Part
	Delta     PartDelta
	ToolName  string
	CallID    string
	Arguments string
	Content   string
	IsError   bool
}

// Stream yields run events in order. Next returns io.EOF when the stream is
// exhausted; any other error aborts the run.
type Stream interface {
	Next(ctx context.Context) (Event, error)
}

// InvokeFunc executes one tool call. The returned content becomes the tool
// result; an error becomes a textual error result fed back to the model
// rather than aborting the run.
type InvokeFunc func(ctx context.Context, args map[string]any) (string, error)

// ToolDefinition describes a tool offered to the runtime.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
	// Invoke executes the tool. Runners call it when the model requests
	// the tool mid-run. Turn-ending tools carry a nil Invoke; the engine
	// interprets those from the run output instead.
	Invoke InvokeFunc
}

// Output is the run's final product: free text, or the turn-ending tool the
// run concluded with. ToolName empty means free text.
type Output struct {
	Text      string
	ToolName  string
	Arguments string
}

// Result is available once the stream is exhausted. Messages lists the
// messages the run produced, prompt first.
type Result struct {
	Output   Output
	Messages []thread.Message
	Usage    thread.Usage
}

// Run is one in-flight agent invocation.
type Run interface {
	Stream() Stream
	// Result reports the run outcome. Calling it before the stream is
	// exhausted is an error.
	Result() (Result, error)
}

// Request carries everything a runner needs for one turn.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	History      []thread.Message
	Tools        []ToolDefinition
}

// Runner starts agent runs. Implementations wrap a concrete model runtime.
type Runner interface {
	Run(ctx context.Context, req Request) (Run, error)
}
