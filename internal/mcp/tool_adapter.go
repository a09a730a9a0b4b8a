package mcp

import (
	"context"
	"fmt"
	"strings"

	"weft/internal/logging"
	"weft/internal/tools"
)

// ToolCaller is the slice of Client the adapter needs.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, arguments map[string]any) (*ToolCallResult, error)
}

// ServerTool adapts one server-advertised tool to the engine's tool
// interfaces. Names are prefixed with the server name so tools from
// different servers never collide.
type ServerTool struct {
	serverName string
	client     ToolCaller
	schema     ToolSchema
	logger     logging.Logger
}

// NewServerTool builds the adapter for one advertised tool.
func NewServerTool(serverName string, client ToolCaller, schema ToolSchema, logger logging.Logger) *ServerTool {
	return &ServerTool{
		serverName: serverName,
		client:     client,
		schema:     schema,
		logger:     logging.OrNop(logger),
	}
}

// Definition implements tools.Handle.
func (t *ServerTool) Definition() tools.Definition {
	return tools.Definition{
		Name:        fmt.Sprintf("mcp__%s__%s", t.serverName, t.schema.Name),
		Description: fmt.Sprintf("[MCP:%s] %s", t.serverName, t.schema.Description),
		Parameters:  t.schema.InputSchema,
	}
}

// Invoke implements tools.Invoker. Server-side errors come back as errors so
// the orchestrator can feed them to the actor as textual results.
func (t *ServerTool) Invoke(ctx context.Context, args map[string]any) (string, error) {
	if err := t.validateArguments(args); err != nil {
		return "", err
	}

	result, err := t.client.CallTool(ctx, t.schema.Name, args)
	if err != nil {
		return "", fmt.Errorf("tool server call failed: %w", err)
	}
	content := formatContent(result.Content, t.logger)
	if result.IsError {
		return "", fmt.Errorf("tool server error: %s", content)
	}
	return content, nil
}

// validateArguments checks required fields against the advertised schema.
func (t *ServerTool) validateArguments(args map[string]any) error {
	required, ok := t.schema.InputSchema["required"].([]any)
	if !ok {
		return nil
	}
	for _, field := range required {
		name, ok := field.(string)
		if !ok {
			continue
		}
		if _, exists := args[name]; !exists {
			return fmt.Errorf("missing required argument: %s", name)
		}
	}
	return nil
}

// formatContent flattens content blocks into one string.
func formatContent(blocks []ContentBlock, logger logging.Logger) string {
	var parts []string
	for _, block := range blocks {
		switch block.Type {
		case "text":
			if block.Text != "" {
				parts = append(parts, block.Text)
			}
		case "image":
			if block.MimeType != "" {
				parts = append(parts, fmt.Sprintf("[Image: %s]", block.MimeType))
			} else {
				parts = append(parts, "[Image]")
			}
		case "resource":
			parts = append(parts, fmt.Sprintf("[Resource: %s]", block.Text))
		default:
			logger.Warn("Unknown content block type: %s", block.Type)
			parts = append(parts, fmt.Sprintf("[%s]", block.Type))
		}
	}
	return strings.Join(parts, "\n\n")
}
