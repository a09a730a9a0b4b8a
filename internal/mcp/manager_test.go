package mcp

import (
	"context"
	"testing"
	"time"

	"weft/internal/logging"
)

func TestStartServersSkipsFailedServer(t *testing.T) {
	manager := NewServerManager(ManagerConfig{
		Logger:         logging.Nop(),
		StartupTimeout: 200 * time.Millisecond,
	})
	defer manager.Cleanup()

	broken := &Server{Name: "broken", Command: "weft-no-such-binary"}
	manager.StartServers(context.Background(), []*Server{broken, nil})

	if manager.ActiveCount() != 0 {
		t.Errorf("Expected no active servers, got %d", manager.ActiveCount())
	}
	if len(manager.Tools()) != 0 {
		t.Error("Failed server must contribute no tools")
	}
}

func TestCleanupIsIdempotent(t *testing.T) {
	manager := NewServerManager(ManagerConfig{Logger: logging.Nop()})

	manager.Cleanup()
	manager.Cleanup()

	if manager.ActiveCount() != 0 {
		t.Error("Expected empty manager after cleanup")
	}
}

func TestStartServersAfterCleanupIgnored(t *testing.T) {
	manager := NewServerManager(ManagerConfig{
		Logger:         logging.Nop(),
		StartupTimeout: 200 * time.Millisecond,
	})
	manager.Cleanup()

	manager.StartServers(context.Background(), []*Server{{Name: "late", Command: "weft-no-such-binary"}})

	if manager.ActiveCount() != 0 {
		t.Error("Servers must not start after cleanup")
	}
}

func TestManagerContextCarriage(t *testing.T) {
	manager := NewServerManager(ManagerConfig{Logger: logging.Nop()})
	defer manager.Cleanup()

	ctx := WithManager(context.Background(), manager)
	if got := ManagerFrom(ctx); got != manager {
		t.Error("Expected the same manager back from context")
	}
	if got := ManagerFrom(context.Background()); got != nil {
		t.Error("Expected nil manager from empty context")
	}
}
