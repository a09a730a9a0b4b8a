package memstore

import (
	"context"
	"testing"
	"time"

	"weft/internal/thread"
)

func TestAddMessagesStampsMonotonicTimestamps(t *testing.T) {
	t.Parallel()

	store := New()
	ctx := context.Background()

	if _, err := store.EnsureThread(ctx, "thread-a", ""); err != nil {
		t.Fatalf("EnsureThread() error = %v", err)
	}

	stored, err := store.AddMessages(ctx, "thread-a", []thread.Message{
		{Role: thread.RoleUser, Content: "one"},
		{Role: thread.RoleAssistant, Content: "two"},
		{Role: thread.RoleUser, Content: "three"},
	})
	if err != nil {
		t.Fatalf("AddMessages() error = %v", err)
	}

	for i := 1; i < len(stored); i++ {
		if !stored[i].Timestamp.After(stored[i-1].Timestamp) {
			t.Fatalf("timestamps not strictly increasing at index %d", i)
		}
	}
}

func TestAddMessagesRejectsUnknownThread(t *testing.T) {
	t.Parallel()

	store := New()
	_, err := store.AddMessages(context.Background(), "missing", []thread.Message{{Role: thread.RoleUser, Content: "x"}})
	if err == nil {
		t.Fatal("expected error for unknown thread")
	}
}

func TestMessagesFiltersSystemByDefault(t *testing.T) {
	t.Parallel()

	store := New()
	ctx := context.Background()
	if _, err := store.EnsureThread(ctx, "thread-a", ""); err != nil {
		t.Fatalf("EnsureThread() error = %v", err)
	}
	_, err := store.AddMessages(ctx, "thread-a", []thread.Message{
		{Role: thread.RoleSystem, Content: "sys"},
		{Role: thread.RoleUser, Content: "hi"},
	})
	if err != nil {
		t.Fatalf("AddMessages() error = %v", err)
	}

	messages, err := store.Messages(ctx, "thread-a", thread.MessageQuery{})
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(messages) != 1 || messages[0].Content != "hi" {
		t.Fatalf("expected only the user message, got %+v", messages)
	}

	all, err := store.Messages(ctx, "thread-a", thread.MessageQuery{IncludeSystem: true})
	if err != nil {
		t.Fatalf("Messages(IncludeSystem) error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected both messages with IncludeSystem, got %d", len(all))
	}
}

func TestRecordLLMCallLinksMessages(t *testing.T) {
	t.Parallel()

	store := New()
	ctx := context.Background()
	if _, err := store.EnsureThread(ctx, "thread-a", ""); err != nil {
		t.Fatalf("EnsureThread() error = %v", err)
	}

	call, err := store.RecordLLMCall(ctx, thread.LLMCall{ThreadID: "thread-a", Usage: thread.Usage{TotalTokens: 7}}, []thread.Message{
		{Role: thread.RoleAssistant, Content: "answer"},
	})
	if err != nil {
		t.Fatalf("RecordLLMCall() error = %v", err)
	}
	if call.ID == "" {
		t.Fatal("expected generated call ID")
	}

	messages, err := store.Messages(ctx, "thread-a", thread.MessageQuery{})
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(messages) != 1 || messages[0].LLMCallID != call.ID {
		t.Fatalf("expected completion message linked to call %s, got %+v", call.ID, messages)
	}

	calls, err := store.LLMCalls(ctx, "thread-a", thread.CallQuery{})
	if err != nil {
		t.Fatalf("LLMCalls() error = %v", err)
	}
	if len(calls) != 1 || calls[0].Usage.TotalTokens != 7 {
		t.Fatalf("expected one call with usage, got %+v", calls)
	}
}

func TestLLMCallsWindowFiltering(t *testing.T) {
	t.Parallel()

	store := New()
	ctx := context.Background()
	if _, err := store.EnsureThread(ctx, "thread-a", ""); err != nil {
		t.Fatalf("EnsureThread() error = %v", err)
	}

	first, err := store.RecordLLMCall(ctx, thread.LLMCall{ThreadID: "thread-a"}, nil)
	if err != nil {
		t.Fatalf("RecordLLMCall() error = %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	cut := time.Now()
	time.Sleep(2 * time.Millisecond)
	second, err := store.RecordLLMCall(ctx, thread.LLMCall{ThreadID: "thread-a"}, nil)
	if err != nil {
		t.Fatalf("RecordLLMCall() error = %v", err)
	}

	before, err := store.LLMCalls(ctx, "thread-a", thread.CallQuery{Before: &cut})
	if err != nil {
		t.Fatalf("LLMCalls(Before) error = %v", err)
	}
	if len(before) != 1 || before[0].ID != first.ID {
		t.Fatalf("expected only the first call before cutoff, got %+v", before)
	}

	after, err := store.LLMCalls(ctx, "thread-a", thread.CallQuery{After: &cut})
	if err != nil {
		t.Fatalf("LLMCalls(After) error = %v", err)
	}
	if len(after) != 1 || after[0].ID != second.ID {
		t.Fatalf("expected only the second call after cutoff, got %+v", after)
	}
}
