package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"weft/internal/thread"
	id "weft/internal/utils/id"
)

// Store is an in-memory thread store. It is the default backend for tests
// and the CLI driver; the Postgres store provides durable persistence.
type Store struct {
	mu       sync.RWMutex
	threads  map[string]thread.Record
	messages map[string][]thread.Message
	calls    map[string][]thread.LLMCall
	lastTime time.Time
	clock    func() time.Time
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		threads:  make(map[string]thread.Record),
		messages: make(map[string][]thread.Message),
		calls:    make(map[string][]thread.LLMCall),
		clock:    time.Now,
	}
}

// SetClock overrides the timestamp source, for tests.
func (s *Store) SetClock(clock func() time.Time) {
	s.mu.Lock()
	s.clock = clock
	s.mu.Unlock()
}

// next returns a strictly increasing timestamp so insertion order is
// recoverable even when the wall clock does not advance between writes.
func (s *Store) next() time.Time {
	now := s.clock()
	if !now.After(s.lastTime) {
		now = s.lastTime.Add(time.Microsecond)
	}
	s.lastTime = now
	return now
}

// EnsureThread creates the thread record if absent.
func (s *Store) EnsureThread(ctx context.Context, threadID, parentID string) (thread.Record, error) {
	if err := ctx.Err(); err != nil {
		return thread.Record{}, err
	}
	if threadID == "" {
		return thread.Record{}, fmt.Errorf("thread ID cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if record, ok := s.threads[threadID]; ok {
		return record, nil
	}
	record := thread.Record{
		ID:        threadID,
		ParentID:  parentID,
		CreatedAt: s.next(),
	}
	s.threads[threadID] = record
	return record, nil
}

// GetThread returns the record for a thread.
func (s *Store) GetThread(ctx context.Context, threadID string) (thread.Record, error) {
	if err := ctx.Err(); err != nil {
		return thread.Record{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.threads[threadID]
	if !ok {
		return thread.Record{}, fmt.Errorf("thread %s not found", threadID)
	}
	return record, nil
}

// AddMessages appends messages, stamping ids and insertion timestamps.
func (s *Store) AddMessages(ctx context.Context, threadID string, messages []thread.Message) ([]thread.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.threads[threadID]; !ok {
		return nil, fmt.Errorf("thread %s not found", threadID)
	}

	stored := make([]thread.Message, 0, len(messages))
	for _, msg := range messages {
		msg.ID = id.NewMessageID()
		msg.ThreadID = threadID
		msg.Timestamp = s.next()
		s.messages[threadID] = append(s.messages[threadID], msg)
		stored = append(stored, msg)
	}
	return stored, nil
}

// Messages returns the thread's messages matching the query, oldest first.
func (s *Store) Messages(ctx context.Context, threadID string, query thread.MessageQuery) ([]thread.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []thread.Message
	for _, msg := range s.messages[threadID] {
		if !query.IncludeSystem && msg.Role == thread.RoleSystem {
			continue
		}
		if query.Before != nil && !msg.Timestamp.Before(*query.Before) {
			continue
		}
		if query.After != nil && !msg.Timestamp.After(*query.After) {
			continue
		}
		out = append(out, msg)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[len(out)-query.Limit:]
	}
	return out, nil
}

// RecordLLMCall persists the call record and links its completion messages.
func (s *Store) RecordLLMCall(ctx context.Context, call thread.LLMCall, messages []thread.Message) (thread.LLMCall, error) {
	if err := ctx.Err(); err != nil {
		return thread.LLMCall{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.threads[call.ThreadID]; !ok {
		return thread.LLMCall{}, fmt.Errorf("thread %s not found", call.ThreadID)
	}
	if call.ID == "" {
		call.ID = id.NewLLMCallID()
	}
	call.Timestamp = s.next()
	s.calls[call.ThreadID] = append(s.calls[call.ThreadID], call)

	for _, msg := range messages {
		msg.ID = id.NewMessageID()
		msg.ThreadID = call.ThreadID
		msg.LLMCallID = call.ID
		msg.Timestamp = s.next()
		s.messages[call.ThreadID] = append(s.messages[call.ThreadID], msg)
	}
	return call, nil
}

// LLMCalls returns call records within the window, oldest first.
func (s *Store) LLMCalls(ctx context.Context, threadID string, query thread.CallQuery) ([]thread.LLMCall, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []thread.LLMCall
	for _, call := range s.calls[threadID] {
		if query.Before != nil && !call.Timestamp.Before(*query.Before) {
			continue
		}
		if query.After != nil && !call.Timestamp.After(*query.After) {
			continue
		}
		out = append(out, call)
	}
	return out, nil
}
