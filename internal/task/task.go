package task

import (
	"context"
	"fmt"
	"sync"

	"weft/internal/logging"
	"weft/internal/memory"
	"weft/internal/thread"
	"weft/internal/tools"
	id "weft/internal/utils/id"
)

// Assignee names the executor assigned to carry out a task. The orchestrator
// narrows it to a full actor; the task graph only needs the identity.
type Assignee interface {
	Name() string
}

// Task is one unit of work. Tasks are never deleted; they advance through
// the state machine until they reach a terminal state.
type Task struct {
	id           string
	name         string
	instructions string
	resultType   ResultType
	assignee     Assignee
	tools        []tools.Tool
	memories     []memory.Memory
	verbose      bool

	mu     sync.Mutex
	state  State
	result any

	parent    *Task
	dependsOn map[*Task]struct{}
	subtasks  map[*Task]struct{}

	logger logging.Logger
}

// Config captures everything needed to construct a task.
type Config struct {
	ID           string
	Name         string
	Instructions string
	// ResultType defaults to Open.
	ResultType ResultType
	DependsOn  []*Task
	// Parent defaults to the ambient current task on ctx.
	Parent   *Task
	Assignee Assignee
	Tools    []tools.Tool
	Memories []memory.Memory
	// Verbose appends a status message to the ambient thread on every
	// state transition.
	Verbose bool
}

// New constructs a task. When cfg.Parent is nil the task nests under the
// ambient current task, if any.
func New(ctx context.Context, cfg Config) *Task {
	t := &Task{
		id:           cfg.ID,
		name:         cfg.Name,
		instructions: cfg.Instructions,
		resultType:   cfg.ResultType,
		assignee:     cfg.Assignee,
		tools:        cfg.Tools,
		memories:     cfg.Memories,
		verbose:      cfg.Verbose,
		state:        StatePending,
		dependsOn:    make(map[*Task]struct{}),
		subtasks:     make(map[*Task]struct{}),
		logger:       logging.NewComponentLogger("Task"),
	}
	if t.id == "" {
		t.id = id.NewTaskID()
	}
	if t.resultType == nil {
		t.resultType = Open{}
	}
	for _, dep := range cfg.DependsOn {
		t.AddDependency(dep)
	}

	parent := cfg.Parent
	if parent == nil {
		parent = Current(ctx)
	}
	if parent != nil {
		t.SetParent(parent)
	}
	return t
}

// ID returns the task's opaque identifier.
func (t *Task) ID() string { return t.id }

// Name returns the human name, falling back to the identifier.
func (t *Task) Name() string {
	if t.name != "" {
		return t.name
	}
	return t.id
}

// Instructions returns the free-text description of the work.
func (t *Task) Instructions() string { return t.instructions }

// ResultType returns the expected result descriptor.
func (t *Task) ResultType() ResultType { return t.resultType }

// Assignee returns the executor assigned to this task, if any.
func (t *Task) Assignee() Assignee { return t.assignee }

// Tools returns the capability tools declared on the task.
func (t *Task) Tools() []tools.Tool { return t.tools }

// Memories returns the memory capabilities declared on the task.
func (t *Task) Memories() []memory.Memory { return t.memories }

// State returns the current lifecycle state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Result returns the stored result. It is populated only in terminal states:
// the validated value on success, the failure message on failure.
func (t *Task) Result() any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

// Parent returns the parent task, or nil.
func (t *Task) Parent() *Task { return t.parent }

// DependsOn returns the dependency set.
func (t *Task) DependsOn() []*Task {
	out := make([]*Task, 0, len(t.dependsOn))
	for dep := range t.dependsOn {
		out = append(out, dep)
	}
	return out
}

// Subtasks returns the sub-task set.
func (t *Task) Subtasks() []*Task {
	out := make([]*Task, 0, len(t.subtasks))
	for sub := range t.subtasks {
		out = append(out, sub)
	}
	return out
}

// AddDependency records that dep must complete before this task is ready.
func (t *Task) AddDependency(dep *Task) {
	if dep == nil || dep == t {
		return
	}
	t.dependsOn[dep] = struct{}{}
}

// SetParent reassigns the parent, keeping both subtask sets consistent.
// A nil parent detaches the task.
func (t *Task) SetParent(parent *Task) {
	if parent == t {
		return
	}
	if t.parent != nil {
		delete(t.parent.subtasks, t)
	}
	t.parent = parent
	if parent != nil {
		parent.subtasks[t] = struct{}{}
	}
}

// IsComplete reports whether the task reached a terminal state.
func (t *Task) IsComplete() bool {
	return t.State().Terminal()
}

// IsIncomplete reports whether the task has not reached a terminal state.
func (t *Task) IsIncomplete() bool {
	return !t.IsComplete()
}

// IsReady reports whether the task is incomplete and every dependency and
// sub-task is complete.
func (t *Task) IsReady() bool {
	if t.IsComplete() {
		return false
	}
	for dep := range t.dependsOn {
		if dep.IsIncomplete() {
			return false
		}
	}
	for sub := range t.subtasks {
		if sub.IsIncomplete() {
			return false
		}
	}
	return true
}

// MarkRunning transitions pending to running. Calling it on a task that is
// already running is a no-op, since the orchestrator revisits running tasks
// once per turn.
func (t *Task) MarkRunning(ctx context.Context) error {
	t.mu.Lock()
	if t.state.Terminal() {
		state := t.state
		t.mu.Unlock()
		return fmt.Errorf("task %q is already %s", t.Name(), state)
	}
	if t.state == StateRunning {
		t.mu.Unlock()
		return nil
	}
	t.state = StateRunning
	t.mu.Unlock()

	t.announce(ctx, fmt.Sprintf("Task state updated: %s running", t.Name()))
	return nil
}

// MarkSuccessful validates raw against the result type, then transitions to
// successful. A validation failure leaves the task running so the actor may
// retry with corrected input.
func (t *Task) MarkSuccessful(ctx context.Context, raw any) error {
	t.mu.Lock()
	if t.state.Terminal() {
		state := t.state
		t.mu.Unlock()
		return fmt.Errorf("task %q is already %s", t.Name(), state)
	}
	validated, err := t.resultType.Validate(raw)
	if err != nil {
		t.mu.Unlock()
		return fmt.Errorf("invalid result for task %q: %w", t.Name(), err)
	}
	t.state = StateSuccessful
	t.result = validated
	t.mu.Unlock()

	t.announce(ctx, fmt.Sprintf("Task state updated: %s successful with result %v", t.Name(), validated))
	return nil
}

// MarkFailed transitions to failed, storing message as the result.
func (t *Task) MarkFailed(ctx context.Context, message string) error {
	t.mu.Lock()
	if t.state.Terminal() {
		state := t.state
		t.mu.Unlock()
		return fmt.Errorf("task %q is already %s", t.Name(), state)
	}
	t.state = StateFailed
	t.result = message
	t.mu.Unlock()

	t.announce(ctx, fmt.Sprintf("Task state updated: %s failed: %s", t.Name(), message))
	return nil
}

// MarkSkipped transitions to skipped with no result.
func (t *Task) MarkSkipped(ctx context.Context) error {
	t.mu.Lock()
	if t.state.Terminal() {
		state := t.state
		t.mu.Unlock()
		return fmt.Errorf("task %q is already %s", t.Name(), state)
	}
	t.state = StateSkipped
	t.mu.Unlock()

	t.announce(ctx, fmt.Sprintf("Task state updated: %s skipped", t.Name()))
	return nil
}

// announce appends a verbose status message to the ambient thread. Failures
// are logged and never affect the state machine.
func (t *Task) announce(ctx context.Context, text string) {
	if !t.verbose {
		return
	}
	th := thread.Current(ctx)
	if th == nil {
		return
	}
	if _, err := th.AddSystemMessage(ctx, text); err != nil {
		t.logger.Warn("Failed to announce task status: %v", err)
	}
}
