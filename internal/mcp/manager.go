package mcp

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"weft/internal/logging"
	"weft/internal/tools"
)

// Server declares one external tool server. Servers are deduplicated by
// pointer identity: the same *Server started twice within a session reuses
// the live process.
type Server struct {
	Name    string
	Command string
	Args    []string
	Env     map[string]string
}

// started holds one live server within a session.
type started struct {
	client *Client
	tools  []*ServerTool
}

// ServerManager starts each distinct server at most once per logical session
// and tears everything down exactly once at session end.
type ServerManager struct {
	logger         logging.Logger
	startupTimeout time.Duration

	mu      sync.Mutex
	active  map[*Server]*started
	cleaned bool
}

// ManagerConfig configures a ServerManager.
type ManagerConfig struct {
	Logger logging.Logger
	// StartupTimeout bounds each server's start plus handshake. Zero means
	// 30 seconds.
	StartupTimeout time.Duration
}

// NewServerManager builds an empty manager.
func NewServerManager(cfg ManagerConfig) *ServerManager {
	timeout := cfg.StartupTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ServerManager{
		logger:         logging.OrNop(cfg.Logger),
		startupTimeout: timeout,
		active:         make(map[*Server]*started),
	}
}

// StartServers ensures every listed server is running, starting missing ones
// concurrently. A server that fails to start is logged and skipped; it
// simply contributes no tools. Already-tracked servers are left untouched.
func (m *ServerManager) StartServers(ctx context.Context, servers []*Server) {
	m.mu.Lock()
	if m.cleaned {
		m.mu.Unlock()
		m.logger.Warn("StartServers called after cleanup; ignoring")
		return
	}
	var missing []*Server
	for _, srv := range servers {
		if srv == nil {
			continue
		}
		if _, ok := m.active[srv]; !ok {
			missing = append(missing, srv)
		}
	}
	m.mu.Unlock()

	if len(missing) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range missing {
		srv := srv
		g.Go(func() error {
			m.startOne(gctx, srv)
			// Startup failures never fail the group.
			return nil
		})
	}
	_ = g.Wait()
}

func (m *ServerManager) startOne(ctx context.Context, srv *Server) {
	ctx, cancel := context.WithTimeout(ctx, m.startupTimeout)
	defer cancel()

	client := NewClient(srv, m.logger)
	if err := client.Start(ctx); err != nil {
		m.logger.Error("Tool server %s failed to start: %v", srv.Name, err)
		return
	}

	schemas, err := client.ListTools(ctx)
	if err != nil {
		m.logger.Error("Tool server %s failed to list tools: %v", srv.Name, err)
		_ = client.Stop()
		return
	}

	entry := &started{client: client}
	for _, schema := range schemas {
		entry.tools = append(entry.tools, NewServerTool(srv.Name, client, schema, m.logger))
	}

	m.mu.Lock()
	if m.cleaned {
		m.mu.Unlock()
		_ = client.Stop()
		return
	}
	m.active[srv] = entry
	m.mu.Unlock()
}

// Tools returns every tool discovered from live servers.
func (m *ServerManager) Tools() []tools.Invoker {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []tools.Invoker
	for _, entry := range m.active {
		for _, t := range entry.tools {
			out = append(out, t)
		}
	}
	return out
}

// ActiveCount reports how many servers are tracked.
func (m *ServerManager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Cleanup stops every tracked server and clears tracking state. Further
// calls are no-ops. The orchestrator invokes this from its own cleanup
// block; nothing else should.
func (m *ServerManager) Cleanup() {
	m.mu.Lock()
	if m.cleaned {
		m.mu.Unlock()
		return
	}
	m.cleaned = true
	active := m.active
	m.active = make(map[*Server]*started)
	m.mu.Unlock()

	for srv, entry := range active {
		if err := entry.client.Stop(); err != nil {
			m.logger.Warn("Failed to stop tool server %s: %v", srv.Name, err)
		}
	}
}

type managerKey struct{}

// WithManager attaches a manager to ctx so repeated turns within one thread
// context reuse the same live server processes.
func WithManager(ctx context.Context, m *ServerManager) context.Context {
	return context.WithValue(ctx, managerKey{}, m)
}

// ManagerFrom returns the manager carried by ctx, or nil.
func ManagerFrom(ctx context.Context) *ServerManager {
	m, _ := ctx.Value(managerKey{}).(*ServerManager)
	return m
}
