package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"weft/internal/actor"
	"weft/internal/agentrun"
	"weft/internal/config"
	"weft/internal/events"
	"weft/internal/logging"
	"weft/internal/mcp"
	"weft/internal/observability"
	"weft/internal/orchestrator"
	"weft/internal/thread"
	"weft/internal/thread/memstore"
	"weft/internal/thread/postgresstore"
	"weft/internal/tools"
)

func newRunCommand() *cobra.Command {
	var echo bool

	cmd := &cobra.Command{
		Use:   "run <taskfile>",
		Short: "Run a task file to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTaskFile(cmd.Context(), args[0], echo)
		},
	}
	cmd.Flags().BoolVar(&echo, "echo", false, "Use the built-in echo runner instead of a model runtime")
	return cmd
}

func runTaskFile(parent context.Context, path string, echo bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	file, err := LoadTaskFile(path)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.NewComponentLogger("CLI")

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// Only the echo runner ships with the engine; a model runtime plugs in
	// through the same Runner interface.
	if !echo {
		return fmt.Errorf("no model runtime configured; rerun with --echo")
	}

	servers := make([]*mcp.Server, 0, len(file.Actor.MCPServers))
	for _, spec := range file.Actor.MCPServers {
		servers = append(servers, &mcp.Server{
			Name:    spec.Name,
			Command: spec.Command,
			Args:    spec.Args,
			Env:     spec.Env,
		})
	}

	agent := actor.New(actor.Config{
		Name:         file.Actor.Name,
		Instructions: file.Actor.Instructions,
		Runner:       echoRunner{},
		MCPServers:   servers,
		Logger:       logger,
	})

	tasks, err := file.BuildTasks(ctx, agent)
	if err != nil {
		return err
	}

	var threadOpts []thread.Option
	if file.Thread != "" {
		threadOpts = append(threadOpts, thread.WithID(file.Thread))
	}
	th := thread.New(store, threadOpts...)

	var toolCache *tools.CacheConfig
	if cfg.ToolCacheTTL > 0 {
		cacheCfg := tools.DefaultCacheConfig()
		cacheCfg.TTL = cfg.ToolCacheTTL
		toolCache = &cacheCfg
	}

	engine := orchestrator.New(orchestrator.Config{
		Logger:            logger,
		Metrics:           observability.Default(),
		Store:             store,
		DefaultActor:      agent,
		MaxTurns:          cfg.MaxTurns,
		RecallWindow:      cfg.RecallMessageWindow,
		MCPStartupTimeout: cfg.MCPStartupTimeout,
		ToolCache:         toolCache,
	})

	maxTurns := file.MaxTurns
	results, err := engine.Run(ctx, orchestrator.RunOptions{
		Tasks:          tasks,
		Thread:         th,
		Handlers:       []events.Handler{events.HandlerFunc(printEvent)},
		RaiseOnFailure: file.RaiseOnFailure,
		MaxTurns:       maxTurns,
	})

	for _, r := range results {
		fmt.Printf("%-24s %-10s %v\n", r.Task.Name(), r.State, r.Result)
	}
	return err
}

func openStore(ctx context.Context, cfg config.Config) (thread.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		return memstore.New(), func() {}, nil
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	store := postgresstore.New(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool.Close, nil
}

func printEvent(event events.Event) {
	switch e := event.(type) {
	case events.MessageDelta:
		fmt.Print(e.Delta)
	case events.ToolCall:
		fmt.Printf("\n[tool-call %s %s]\n", e.Origin, e.Name)
	case events.ToolResult:
		fmt.Printf("[tool-result %s]\n", e.Name)
	case events.ActorEndTurn:
		fmt.Println()
	case events.OrchestratorError:
		fmt.Fprintf(os.Stderr, "run error: %v\n", e.Err)
	}
}

// echoRunner completes every turn with an acknowledgement of its prompt. It
// exercises the full loop (streaming, persistence, state transitions)
// without a model runtime.
type echoRunner struct{}

func (echoRunner) Run(_ context.Context, req agentrun.Request) (agentrun.Run, error) {
	text := fmt.Sprintf("Acknowledged: %s", req.UserPrompt)
	run := agentrun.TextRun(text, thread.Usage{})
	runner := agentrun.NewScriptedRunner(run)
	return runner.Run(context.Background(), req)
}
