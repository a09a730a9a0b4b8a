package id

import (
	"context"
	"strings"
	"testing"
)

func TestThreadIDRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := WithThreadID(context.Background(), "thread-abc")
	if got := ThreadID(ctx); got != "thread-abc" {
		t.Fatalf("ThreadID() = %q, want %q", got, "thread-abc")
	}
}

func TestThreadIDEmptyDoesNotOverwrite(t *testing.T) {
	t.Parallel()

	ctx := WithThreadID(context.Background(), "thread-abc")
	ctx = WithThreadID(ctx, "")
	if got := ThreadID(ctx); got != "thread-abc" {
		t.Fatalf("empty thread ID should be ignored, got %q", got)
	}
}

func TestRunIDMissing(t *testing.T) {
	t.Parallel()

	if got := RunID(context.Background()); got != "" {
		t.Fatalf("RunID() on empty context = %q, want empty", got)
	}
}

func TestNewIdentifiersCarryPrefixes(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		NewThreadID():  "thread-",
		NewTaskID():    "task-",
		NewCallID():    "call-",
		NewLLMCallID(): "llmcall-",
	}
	for value, prefix := range cases {
		if !strings.HasPrefix(value, prefix) {
			t.Fatalf("identifier %q missing prefix %q", value, prefix)
		}
	}
}
