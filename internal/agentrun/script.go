package agentrun

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"weft/internal/thread"
)

// ScriptedRun replays a fixed event sequence and result. It backs the
// deterministic runner used throughout the engine tests. Tool-call events
// whose name matches an invocable request tool are executed: the run
// invokes the tool and follows the call with a tool-result event, errors
// reported as textual error results.
type ScriptedRun struct {
	events []Event
	result Result

	mu      sync.Mutex
	pos     int
	done    bool
	tools   map[string]ToolDefinition
	pending []Event
}

// NewScriptedRun builds a run that yields events in order and then result.
func NewScriptedRun(events []Event, result Result) *ScriptedRun {
	return &ScriptedRun{events: events, result: result}
}

// Stream implements Run.
func (r *ScriptedRun) Stream() Stream { return r }

// bindTools records the request tools so tool-call events can execute.
func (r *ScriptedRun) bindTools(defs []ToolDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools = make(map[string]ToolDefinition, len(defs))
	for _, def := range defs {
		r.tools[def.Name] = def
	}
}

// Next implements Stream.
func (r *ScriptedRun) Next(ctx context.Context) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pending) > 0 {
		ev := r.pending[0]
		r.pending = r.pending[1:]
		return ev, nil
	}
	if r.pos >= len(r.events) {
		r.done = true
		return Event{}, io.EOF
	}
	ev := r.events[r.pos]
	r.pos++
	if ev.Kind == KindToolCall {
		if def, ok := r.tools[ev.ToolName]; ok && def.Invoke != nil {
			r.pending = append(r.pending, r.execute(ctx, def, ev))
		}
	}
	return ev, nil
}

// execute runs one tool call and shapes the follow-up tool-result event.
func (r *ScriptedRun) execute(ctx context.Context, def ToolDefinition, call Event) Event {
	var args map[string]any
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			args = nil
		}
	}
	if args == nil {
		args = map[string]any{}
	}
	content, err := def.Invoke(ctx, args)
	result := Event{
		Kind:     KindToolResult,
		ToolName: call.ToolName,
		CallID:   call.CallID,
		Content:  content,
	}
	if err != nil {
		result.Content = "Error: " + err.Error()
		result.IsError = true
	}
	return result
}

// Result implements Run.
func (r *ScriptedRun) Result() (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.done {
		return Result{}, errors.New("agentrun: result requested before stream exhausted")
	}
	return r.result, nil
}

// ScriptedRunner hands out pre-built runs in order, one per Run call. Each
// run's result messages get the request prompt prepended so callers observe
// the prompt-first message contract.
type ScriptedRunner struct {
	mu   sync.Mutex
	runs []*ScriptedRun
	next int

	// Requests records every request received, for assertions.
	Requests []Request
}

// NewScriptedRunner builds a runner over the given runs.
func NewScriptedRunner(runs ...*ScriptedRun) *ScriptedRunner {
	return &ScriptedRunner{runs: runs}
}

// Append queues another run.
func (r *ScriptedRunner) Append(run *ScriptedRun) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
}

// Run implements Runner.
func (r *ScriptedRunner) Run(ctx context.Context, req Request) (Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Requests = append(r.Requests, req)
	if r.next >= len(r.runs) {
		return nil, errors.New("agentrun: no scripted run left")
	}
	run := r.runs[r.next]
	r.next++

	run.bindTools(req.Tools)

	prompt := thread.Message{Role: thread.RoleUser, Content: req.UserPrompt}
	run.result.Messages = append([]thread.Message{prompt}, run.result.Messages...)
	return run, nil
}

// TextRun builds the common script: stream text as two deltas, then finish
// with free-text output and one assistant message.
func TextRun(text string, usage thread.Usage) *ScriptedRun {
	half := len(text) / 2
	events := []Event{
		{Kind: KindUserPrompt},
		{Kind: KindPartStart, Index: 0, Part: Part{Type: PartText, Text: text[:half]}},
		{Kind: KindPartDelta, Index: 0, Delta: PartDelta{Text: text[half:]}},
		{Kind: KindFinalResult},
		{Kind: KindEnd, ToolName: DefaultOutputTool},
	}
	return NewScriptedRun(events, Result{
		Output:   Output{Text: text},
		Messages: []thread.Message{{Role: thread.RoleAssistant, Content: text}},
		Usage:    usage,
	})
}
