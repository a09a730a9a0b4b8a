// Package orchestrator runs tasks to completion: it computes ready tasks,
// drives the assigned actor through the agent runtime one turn at a time,
// interprets each run against the task state machine, and repeats until all
// tasks are terminal or the turn budget runs out.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kaptinlin/jsonrepair"

	"weft/internal/actor"
	"weft/internal/agentrun"
	"weft/internal/events"
	"weft/internal/logging"
	"weft/internal/mcp"
	"weft/internal/memory"
	"weft/internal/observability"
	"weft/internal/stream"
	"weft/internal/task"
	"weft/internal/thread"
	"weft/internal/tools"
	"weft/internal/tools/endturn"
)

// ErrNoReadyTasks is fatal: incomplete tasks exist but none can run, which
// means the task graph was wired incorrectly upstream.
var ErrNoReadyTasks = errors.New("no tasks are ready to run")

// ErrTurnBudgetExceeded is fatal: the turn budget ran out with incomplete
// tasks remaining.
var ErrTurnBudgetExceeded = errors.New("turn budget exceeded")

// TaskFailedError aborts a run under RaiseOnFailure, naming the failed task.
type TaskFailedError struct {
	Task *task.Task
}

func (e *TaskFailedError) Error() string {
	return fmt.Sprintf("task %q failed: %v", e.Task.Name(), e.Task.Result())
}

// Config configures an Orchestrator.
type Config struct {
	Logger  logging.Logger
	Metrics *observability.Metrics

	// Store backs threads created for runs that supply none.
	Store thread.Store

	// DefaultActor runs tasks without an assignee.
	DefaultActor actor.Actor

	// MaxTurns bounds every run unless RunOptions overrides it. Zero means
	// unbounded.
	MaxTurns int

	// RecallWindow is how many recent messages seed automatic memory
	// recall. Zero means 4.
	RecallWindow int

	// MCPStartupTimeout bounds each tool server's startup.
	MCPStartupTimeout time.Duration

	// ToolCache, when set, caches server tool results across turns.
	// End-turn tools are never cached.
	ToolCache *tools.CacheConfig
}

// Orchestrator owns the run loop. One orchestrator may serve many runs, but
// runs are sequential within one thread context.
type Orchestrator struct {
	logger       logging.Logger
	metrics      *observability.Metrics
	store        thread.Store
	defaultActor actor.Actor
	maxTurns     int
	recallWindow int
	mcpTimeout   time.Duration
	toolCache    *tools.CacheConfig
}

// New builds an Orchestrator.
func New(cfg Config) *Orchestrator {
	recall := cfg.RecallWindow
	if recall <= 0 {
		recall = 4
	}
	logger := cfg.Logger
	if logging.IsNil(logger) {
		logger = logging.NewComponentLogger("Orchestrator")
	}
	return &Orchestrator{
		logger:       logger,
		metrics:      cfg.Metrics,
		store:        cfg.Store,
		defaultActor: cfg.DefaultActor,
		maxTurns:     cfg.MaxTurns,
		recallWindow: recall,
		mcpTimeout:   cfg.MCPStartupTimeout,
		toolCache:    cfg.ToolCache,
	}
}

// RunOptions parameterizes one run.
type RunOptions struct {
	Tasks    []*task.Task
	Thread   *thread.Thread
	Handlers []events.Handler

	// RaiseOnFailure aborts the run as soon as a task fails.
	RaiseOnFailure bool

	// MaxTurns overrides the orchestrator default when positive.
	MaxTurns int
}

// RunResult is the final state of one task after a run.
type RunResult struct {
	Task   *task.Task
	State  task.State
	Result any
}

// Run executes the turn loop until every task is terminal, the budget runs
// out, or a fatal error occurs. Results cover every task in opts.Tasks
// regardless of outcome. Cleanup is guaranteed, on errors and panics
// alike: an error event (if any), then the end event, then tool-server
// shutdown.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (results []RunResult, err error) {
	if len(opts.Tasks) == 0 {
		return nil, errors.New("no tasks to run")
	}

	th := opts.Thread
	if th == nil {
		if o.store == nil {
			return nil, errors.New("no thread and no store to create one")
		}
		th = thread.New(o.store, thread.WithLogger(o.logger))
	}

	fan := events.NewFanOut(o.logger, opts.Handlers...)
	fan.Add(events.HandlerFunc(o.observe))

	manager := mcp.ManagerFrom(ctx)
	ownsManager := manager == nil
	if ownsManager {
		manager = mcp.NewServerManager(mcp.ManagerConfig{
			Logger:         o.logger,
			StartupTimeout: o.mcpTimeout,
		})
		ctx = mcp.WithManager(ctx, manager)
	}

	ctx = thread.WithCurrent(ctx, th)
	ctx = WithCurrent(ctx, o)

	o.metrics.IncActiveRuns()
	defer o.metrics.DecActiveRuns()

	fan.HandleEvent(events.OrchestratorStart{StartedAt: time.Now()})

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Run panicked: %v", r)
			err = fmt.Errorf("orchestrator run panicked: %v", r)
		}
		if err != nil {
			fan.HandleEvent(events.OrchestratorError{Err: err})
		}
		fan.HandleEvent(events.OrchestratorEnd{EndedAt: time.Now()})
		if ownsManager {
			manager.Cleanup()
		}
		results = make([]RunResult, 0, len(opts.Tasks))
		for _, t := range opts.Tasks {
			results = append(results, RunResult{Task: t, State: t.State(), Result: t.Result()})
		}
	}()

	err = o.loop(ctx, opts, th, fan, manager)
	return results, err
}

func (o *Orchestrator) loop(ctx context.Context, opts RunOptions, th *thread.Thread, fan *events.FanOut, manager *mcp.ServerManager) error {
	maxTurns := o.maxTurns
	if opts.MaxTurns > 0 {
		maxTurns = opts.MaxTurns
	}

	turns := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		incomplete := incompleteTasks(opts.Tasks)
		if len(incomplete) == 0 {
			return nil
		}
		if maxTurns > 0 && turns >= maxTurns {
			return fmt.Errorf("%w: %d turn(s) used, %d task(s) incomplete", ErrTurnBudgetExceeded, turns, len(incomplete))
		}

		turns++
		o.metrics.IncTurn()
		if err := o.turn(ctx, opts.Tasks, th, fan, manager); err != nil {
			return err
		}

		if opts.RaiseOnFailure {
			for _, t := range incomplete {
				if t.State() == task.StateFailed {
					return &TaskFailedError{Task: t}
				}
			}
		}
	}
}

// turn runs one actor turn over the current ready set.
func (o *Orchestrator) turn(ctx context.Context, tasks []*task.Task, th *thread.Thread, fan *events.FanOut, manager *mcp.ServerManager) error {
	act, err := o.primaryActor(tasks)
	if err != nil {
		return err
	}

	manager.StartServers(ctx, act.MCPServers())

	ready := o.readyTasksFor(tasks, act)
	if len(ready) == 0 {
		return ErrNoReadyTasks
	}

	for _, t := range ready {
		if err := t.MarkRunning(ctx); err != nil {
			return err
		}
	}

	fan.HandleEvent(events.ActorStartTurn{ActorName: act.Name()})
	if err := act.StartTurn(ctx, th); err != nil {
		return fmt.Errorf("actor %s failed to start turn: %w", act.Name(), err)
	}

	resolver, endTurnDefs := o.buildResolver(ready, manager)
	recalled, err := o.recallMemories(ctx, th, act, ready)
	if err != nil {
		return err
	}

	req, err := o.buildRequest(ctx, th, act, ready, resolver, recalled)
	if err != nil {
		return err
	}

	runner, err := act.Agentlet(req.Tools, endTurnDefs)
	if err != nil {
		return fmt.Errorf("actor %s has no runner: %w", act.Name(), err)
	}
	run, err := runner.Run(ctx, req)
	if err != nil {
		return fmt.Errorf("agent run failed to start: %w", err)
	}

	translator := stream.NewTranslator(stream.Config{
		ActorName: act.Name(),
		Resolver:  resolver,
		Handler:   fan,
		Logger:    o.logger,
	})
	if err := translator.Drive(ctx, run.Stream()); err != nil {
		return fmt.Errorf("agent run stream failed: %w", err)
	}
	o.metrics.AddTranslationErrors(translator.SuppressedErrors())

	result, err := run.Result()
	if err != nil {
		return fmt.Errorf("agent run produced no result: %w", err)
	}

	// The first message duplicates the prompt the run was given.
	newMessages := result.Messages
	if len(newMessages) > 0 {
		newMessages = newMessages[1:]
	}
	if _, err := th.RecordLLMCall(ctx, result.Usage, newMessages); err != nil {
		return err
	}

	o.interpret(ctx, result, ready, resolver)

	fan.HandleEvent(events.ActorEndTurn{ActorName: act.Name()})
	if err := act.EndTurn(ctx, result, th); err != nil {
		o.logger.Warn("Actor %s end-turn hook failed: %v", act.Name(), err)
	}

	for _, t := range ready {
		if state := t.State(); state.Terminal() {
			o.metrics.IncTaskCompletion(string(state))
		}
	}
	return nil
}

// primaryActor is the actor of the first ready task. Multi-actor scheduling
// is deliberately not attempted: one actor takes each turn.
func (o *Orchestrator) primaryActor(tasks []*task.Task) (actor.Actor, error) {
	for _, t := range tasks {
		if !t.IsReady() {
			continue
		}
		if act, ok := t.Assignee().(actor.Actor); ok {
			return act, nil
		}
		if o.defaultActor != nil {
			return o.defaultActor, nil
		}
		return nil, fmt.Errorf("task %q has no actor and no default is configured", t.Name())
	}
	return nil, ErrNoReadyTasks
}

// readyTasksFor selects the ready tasks this actor is responsible for.
func (o *Orchestrator) readyTasksFor(tasks []*task.Task, act actor.Actor) []*task.Task {
	var ready []*task.Task
	for _, t := range tasks {
		if !t.IsReady() {
			continue
		}
		assignee := t.Assignee()
		if assignee == nil || assignee.Name() == act.Name() {
			ready = append(ready, t)
		}
	}
	return ready
}

// buildResolver aggregates the turn's tools across all three origins and
// returns the turn-ending definitions separately for the runner.
func (o *Orchestrator) buildResolver(ready []*task.Task, manager *mcp.ServerManager) (*tools.Resolver, []agentrun.ToolDefinition) {
	resolver := tools.NewResolver()
	for _, t := range ready {
		for _, native := range t.Tools() {
			resolver.AddNative(native)
		}
	}
	for _, served := range manager.Tools() {
		if o.toolCache != nil {
			served = tools.NewCachedInvoker(served, *o.toolCache)
		}
		resolver.AddServer(served)
	}

	var endTurnDefs []agentrun.ToolDefinition
	for _, t := range ready {
		for _, et := range endturn.ForTask(t) {
			resolver.AddEndTurn(et)
			def := et.Definition()
			endTurnDefs = append(endTurnDefs, agentrun.ToolDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			})
		}
	}
	return resolver, endTurnDefs
}

// recallMemories queries auto-recall memories against the recent
// conversation and appends what they return as an informational message.
func (o *Orchestrator) recallMemories(ctx context.Context, th *thread.Thread, act actor.Actor, ready []*task.Task) ([]string, error) {
	memories := act.Memories()
	for _, t := range ready {
		memories = append(memories, t.Memories()...)
	}

	var auto []memory.Memory
	seen := map[string]bool{}
	for _, m := range memories {
		if m == nil || !m.AutoRecall() || seen[m.Key()] {
			continue
		}
		seen[m.Key()] = true
		auto = append(auto, m)
	}
	if len(auto) == 0 {
		return nil, nil
	}

	recent, err := th.GetMessages(ctx, thread.GetOptions{Limit: o.recallWindow, IncludeParent: true})
	if err != nil {
		return nil, err
	}
	var query string
	for _, msg := range recent {
		query += msg.Content + "\n"
	}
	if query == "" {
		return nil, nil
	}

	var recalled []string
	for _, m := range auto {
		found, err := m.Search(ctx, query, 5)
		if err != nil {
			o.logger.Warn("Memory %s recall failed: %v", m.Key(), err)
			continue
		}
		if found == "" {
			continue
		}
		recalled = append(recalled, fmt.Sprintf("Memory (%s):\n%s", m.Key(), found))
		if _, err := th.AddSystemMessage(ctx, fmt.Sprintf("Recalled from memory %s:\n%s", m.Key(), found)); err != nil {
			o.logger.Warn("Failed to record memory recall: %v", err)
		}
	}
	return recalled, nil
}

// buildRequest assembles the outbound prompt: rendered system prompt, prior
// history excluding system messages, and the trailing user message if the
// history ends with one, else a minimal placeholder.
func (o *Orchestrator) buildRequest(ctx context.Context, th *thread.Thread, act actor.Actor, ready []*task.Task, resolver *tools.Resolver, recalled []string) (agentrun.Request, error) {
	history, err := th.GetMessages(ctx, thread.GetOptions{IncludeParent: true})
	if err != nil {
		return agentrun.Request{}, err
	}

	userPrompt := "Continue working on your tasks."
	if n := len(history); n > 0 && history[n-1].Role == thread.RoleUser {
		userPrompt = history[n-1].Content
		history = history[:n-1]
	}

	var toolDefs []agentrun.ToolDefinition
	for _, def := range resolver.Definitions() {
		td := agentrun.ToolDefinition{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  def.Parameters,
		}
		// End-turn tools stay uninvocable from inside the run; interpret
		// applies them from the run output.
		if !def.EndTurn {
			if _, handle, ok := resolver.Resolve(def.Name); ok {
				if invoker, castOK := handle.(tools.Invoker); castOK {
					td.Invoke = o.bindInvoke(def.Name, invoker)
				}
			}
		}
		toolDefs = append(toolDefs, td)
	}

	return agentrun.Request{
		SystemPrompt: renderSystemPrompt(act, ready, recalled),
		UserPrompt:   userPrompt,
		History:      history,
		Tools:        toolDefs,
	}, nil
}

// bindInvoke exposes a resolved tool to the runner. Panics inside the tool
// are confined to the call and surface as errors, which runners report to
// the model as textual error results.
func (o *Orchestrator) bindInvoke(name string, invoker tools.Invoker) agentrun.InvokeFunc {
	return func(ctx context.Context, args map[string]any) (content string, err error) {
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("Tool %q panicked: %v", name, r)
				content = ""
				err = fmt.Errorf("tool %q panicked: %v", name, r)
			}
		}()
		content, err = invoker.Invoke(ctx, args)
		if err != nil {
			o.logger.Warn("Tool %q failed: %v", name, err)
		}
		return content, err
	}
}

// interpret applies the run outcome to the task state machine. A turn-ending
// tool in the output carries its own completion semantics; free text marks
// every still-running ready task successful with the text as its result.
func (o *Orchestrator) interpret(ctx context.Context, result agentrun.Result, ready []*task.Task, resolver *tools.Resolver) {
	if name := result.Output.ToolName; name != "" && name != agentrun.DefaultOutputTool {
		origin, handle, ok := resolver.Resolve(name)
		if !ok || origin != tools.OriginEndTurn {
			o.logger.Warn("Run ended with unknown tool %q; treating output as free text", name)
		} else if invoker, castOK := handle.(tools.Invoker); castOK {
			args := parseArguments(result.Output.Arguments)
			if _, err := invoker.Invoke(ctx, args); err != nil {
				// Validation failures leave the task running; the next
				// turn lets the actor correct itself.
				o.logger.Warn("Turn-ending tool %q failed: %v", name, err)
			}
			return
		}
	}

	for _, t := range ready {
		if t.State() != task.StateRunning {
			continue
		}
		if err := t.MarkSuccessful(ctx, result.Output.Text); err != nil {
			o.logger.Warn("Task %q rejected free-text result: %v", t.Name(), err)
		}
	}
}

// observe feeds stream activity into the metrics.
func (o *Orchestrator) observe(event events.Event) {
	if call, ok := event.(events.ToolCall); ok {
		o.metrics.IncToolCall(call.Origin.String())
	}
}

func incompleteTasks(tasks []*task.Task) []*task.Task {
	var out []*task.Task
	for _, t := range tasks {
		if t.IsIncomplete() {
			out = append(out, t)
		}
	}
	return out
}

// parseArguments decodes a tool-argument JSON object, repairing malformed
// input when possible. Undecodable input becomes an empty argument map.
func parseArguments(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err == nil {
		return args
	}
	if repaired, err := jsonrepair.JSONRepair(raw); err == nil {
		if err := json.Unmarshal([]byte(repaired), &args); err == nil {
			return args
		}
	}
	return map[string]any{}
}
