package async

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

type chanLogger struct {
	messages chan string
}

func (l *chanLogger) Error(format string, args ...any) {
	l.messages <- fmt.Sprintf(format, args...)
}

func TestGoRecoversPanic(t *testing.T) {
	logger := &chanLogger{messages: make(chan string, 1)}

	Go(logger, "explode", func() {
		panic("boom")
	})

	select {
	case msg := <-logger.messages:
		if !strings.Contains(msg, "explode") || !strings.Contains(msg, "boom") {
			t.Fatalf("panic report missing name or value: %q", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("panic was never reported")
	}
}

func TestGoRunsFunction(t *testing.T) {
	done := make(chan struct{})

	Go(nil, "", func() {
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("function never ran")
	}
}

func TestGoNilLoggerSurvivesPanic(t *testing.T) {
	after := make(chan struct{})

	Go(nil, "quiet", func() {
		defer close(after)
		panic("silent")
	})

	select {
	case <-after:
	case <-time.After(2 * time.Second):
		t.Fatal("goroutine never finished")
	}
}
