package thread

import (
	"context"
	"fmt"
	"sort"
	"time"

	"weft/internal/logging"
	id "weft/internal/utils/id"
)

// Role tags the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one persisted conversation record. Messages are append-only:
// once stored they are never edited.
type Message struct {
	ID         string    `json:"id"`
	ThreadID   string    `json:"thread_id"`
	LLMCallID  string    `json:"llm_call_id,omitempty"`
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	Name       string    `json:"name,omitempty"`
	ToolCallID string    `json:"tool_call_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Usage accounts tokens consumed by one external agent invocation.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add returns the element-wise sum of two usage records.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
		TotalTokens:  u.TotalTokens + other.TotalTokens,
	}
}

// IsZero reports whether the usage record carries no counts.
func (u Usage) IsZero() bool {
	return u.InputTokens == 0 && u.OutputTokens == 0 && u.TotalTokens == 0
}

// LLMCall records one external agent invocation against a thread.
type LLMCall struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	Usage     Usage     `json:"usage"`
	Timestamp time.Time `json:"timestamp"`
}

// Record is the persisted identity of a thread.
type Record struct {
	ID        string    `json:"id"`
	ParentID  string    `json:"parent_thread_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageQuery filters a message read.
type MessageQuery struct {
	Before        *time.Time
	After         *time.Time
	Limit         int
	IncludeSystem bool
}

// CallQuery filters an LLM-call read to an optional time window.
type CallQuery struct {
	Before *time.Time
	After  *time.Time
}

// Store persists threads, messages, and LLM-call records. All operations are
// context-first; implementations must be safe for concurrent use.
type Store interface {
	// EnsureThread creates the thread row if absent and returns its record.
	EnsureThread(ctx context.Context, threadID, parentID string) (Record, error)

	// GetThread returns the persisted record for a thread.
	GetThread(ctx context.Context, threadID string) (Record, error)

	// AddMessages appends messages to a thread, stamping ids and timestamps.
	AddMessages(ctx context.Context, threadID string, messages []Message) ([]Message, error)

	// Messages returns a thread's own messages in chronological order.
	Messages(ctx context.Context, threadID string, query MessageQuery) ([]Message, error)

	// RecordLLMCall persists a call record and its completion messages.
	RecordLLMCall(ctx context.Context, call LLMCall, messages []Message) (LLMCall, error)

	// LLMCalls returns call records within the window, oldest first.
	LLMCalls(ctx context.Context, threadID string, query CallQuery) ([]LLMCall, error)
}

// Thread is a handle over one append-only conversation log. The underlying
// row is created lazily on first write.
type Thread struct {
	ID       string
	ParentID string

	store   Store
	logger  logging.Logger
	ensured bool
	created time.Time
}

// Option customizes thread construction.
type Option func(*Thread)

// WithID pins the thread identifier instead of generating one.
func WithID(threadID string) Option {
	return func(t *Thread) { t.ID = threadID }
}

// WithParent links the thread to an ancestor whose earlier messages are
// visible through GetMessages.
func WithParent(parentID string) Option {
	return func(t *Thread) { t.ParentID = parentID }
}

// WithLogger overrides the component logger.
func WithLogger(logger logging.Logger) Option {
	return func(t *Thread) { t.logger = logger }
}

// New returns a thread handle backed by store.
func New(store Store, opts ...Option) *Thread {
	t := &Thread{
		ID:     id.NewThreadID(),
		store:  store,
		logger: logging.NewComponentLogger("Thread"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Store exposes the backing store, for callers that need raw access.
func (t *Thread) Store() Store {
	return t.store
}

// CreatedAt returns the persisted creation time, ensuring the row exists.
func (t *Thread) CreatedAt(ctx context.Context) (time.Time, error) {
	if err := t.ensure(ctx); err != nil {
		return time.Time{}, err
	}
	return t.created, nil
}

func (t *Thread) ensure(ctx context.Context) error {
	if t.ensured {
		return nil
	}
	record, err := t.store.EnsureThread(ctx, t.ID, t.ParentID)
	if err != nil {
		return fmt.Errorf("ensure thread %s: %w", t.ID, err)
	}
	t.created = record.CreatedAt
	t.ensured = true
	return nil
}

// AddMessages appends messages to the thread.
func (t *Thread) AddMessages(ctx context.Context, messages ...Message) ([]Message, error) {
	if len(messages) == 0 {
		return nil, nil
	}
	if err := t.ensure(ctx); err != nil {
		return nil, err
	}
	stored, err := t.store.AddMessages(ctx, t.ID, messages)
	if err != nil {
		return nil, fmt.Errorf("add messages to thread %s: %w", t.ID, err)
	}
	t.logger.Debug("Appended %d message(s) to thread %s", len(stored), t.ID)
	return stored, nil
}

// AddUserMessage appends a user-authored text message.
func (t *Thread) AddUserMessage(ctx context.Context, content string) (Message, error) {
	stored, err := t.AddMessages(ctx, Message{Role: RoleUser, Content: content})
	if err != nil {
		return Message{}, err
	}
	return stored[0], nil
}

// AddSystemMessage appends a system-authored text message. System messages
// are filtered out of reads by default.
func (t *Thread) AddSystemMessage(ctx context.Context, content string) (Message, error) {
	stored, err := t.AddMessages(ctx, Message{Role: RoleSystem, Content: content})
	if err != nil {
		return Message{}, err
	}
	return stored[0], nil
}

// GetOptions controls a merged message read.
type GetOptions struct {
	Before        *time.Time
	After         *time.Time
	Limit         int
	IncludeSystem bool
	// IncludeParent merges ancestor messages that predate this thread's
	// creation time.
	IncludeParent bool
}

// GetMessages returns the thread's messages in chronological order,
// optionally merged with the inherited portion of the parent conversation.
func (t *Thread) GetMessages(ctx context.Context, opts GetOptions) ([]Message, error) {
	if err := t.ensure(ctx); err != nil {
		return nil, err
	}

	own, err := t.store.Messages(ctx, t.ID, MessageQuery{
		Before:        opts.Before,
		After:         opts.After,
		IncludeSystem: opts.IncludeSystem,
	})
	if err != nil {
		return nil, fmt.Errorf("read thread %s: %w", t.ID, err)
	}

	merged := own
	if opts.IncludeParent && t.ParentID != "" {
		inherited, err := t.inheritedMessages(ctx, opts)
		if err != nil {
			return nil, err
		}
		merged = append(inherited, own...)
		sort.SliceStable(merged, func(i, j int) bool {
			return merged[i].Timestamp.Before(merged[j].Timestamp)
		})
	}

	if opts.Limit > 0 && len(merged) > opts.Limit {
		merged = merged[len(merged)-opts.Limit:]
	}
	return merged, nil
}

// inheritedMessages walks the ancestor chain, truncating each parent's
// messages at its child's creation time.
func (t *Thread) inheritedMessages(ctx context.Context, opts GetOptions) ([]Message, error) {
	var inherited []Message
	cutoff := t.created
	parentID := t.ParentID

	for parentID != "" {
		record, err := t.store.GetThread(ctx, parentID)
		if err != nil {
			return nil, fmt.Errorf("read parent thread %s: %w", parentID, err)
		}

		before := cutoff
		if opts.Before != nil && opts.Before.Before(before) {
			before = *opts.Before
		}
		messages, err := t.store.Messages(ctx, parentID, MessageQuery{
			Before:        &before,
			After:         opts.After,
			IncludeSystem: opts.IncludeSystem,
		})
		if err != nil {
			return nil, fmt.Errorf("read parent thread %s: %w", parentID, err)
		}
		inherited = append(messages, inherited...)

		cutoff = record.CreatedAt
		parentID = record.ParentID
	}
	return inherited, nil
}

// RecordLLMCall persists one external agent invocation and its completion
// messages, estimating usage when the runtime reported none.
func (t *Thread) RecordLLMCall(ctx context.Context, usage Usage, messages []Message) (LLMCall, error) {
	if err := t.ensure(ctx); err != nil {
		return LLMCall{}, err
	}
	if usage.IsZero() && len(messages) > 0 {
		usage = EstimateUsage(messages)
		t.logger.Debug("No usage reported for thread %s, estimated %d tokens", t.ID, usage.TotalTokens)
	}
	call := LLMCall{
		ID:       id.NewLLMCallID(),
		ThreadID: t.ID,
		Usage:    usage,
	}
	stored, err := t.store.RecordLLMCall(ctx, call, messages)
	if err != nil {
		return LLMCall{}, fmt.Errorf("record llm call on thread %s: %w", t.ID, err)
	}
	return stored, nil
}

// GetLLMCalls returns the thread's call records within the window.
func (t *Thread) GetLLMCalls(ctx context.Context, query CallQuery) ([]LLMCall, error) {
	if err := t.ensure(ctx); err != nil {
		return nil, err
	}
	calls, err := t.store.LLMCalls(ctx, t.ID, query)
	if err != nil {
		return nil, fmt.Errorf("read llm calls for thread %s: %w", t.ID, err)
	}
	return calls, nil
}

// GetUsage aggregates usage over the thread's call records within the window.
func (t *Thread) GetUsage(ctx context.Context, query CallQuery) (Usage, error) {
	calls, err := t.GetLLMCalls(ctx, query)
	if err != nil {
		return Usage{}, err
	}
	var total Usage
	for _, call := range calls {
		total = total.Add(call.Usage)
	}
	return total, nil
}
