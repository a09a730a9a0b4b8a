package mcp

import (
	"context"
	"errors"
	"strings"
	"testing"

	"weft/internal/logging"
)

type fakeCaller struct {
	result *ToolCallResult
	err    error
	name   string
	args   map[string]any
}

func (f *fakeCaller) CallTool(_ context.Context, name string, args map[string]any) (*ToolCallResult, error) {
	f.name = name
	f.args = args
	return f.result, f.err
}

func testSchema() ToolSchema {
	return ToolSchema{
		Name:        "fetch",
		Description: "Fetch a URL",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{"type": "string"},
			},
			"required": []any{"url"},
		},
	}
}

func TestServerToolDefinitionPrefixed(t *testing.T) {
	tool := NewServerTool("web", &fakeCaller{}, testSchema(), logging.Nop())

	def := tool.Definition()
	if def.Name != "mcp__web__fetch" {
		t.Errorf("Expected prefixed name, got %s", def.Name)
	}
	if !strings.Contains(def.Description, "[MCP:web]") {
		t.Errorf("Expected server context in description, got %s", def.Description)
	}
}

func TestServerToolInvokeFormatsContent(t *testing.T) {
	caller := &fakeCaller{result: &ToolCallResult{Content: []ContentBlock{
		{Type: "text", Text: "first"},
		{Type: "text", Text: "second"},
	}}}
	tool := NewServerTool("web", caller, testSchema(), logging.Nop())

	out, err := tool.Invoke(context.Background(), map[string]any{"url": "https://example.com"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if out != "first\n\nsecond" {
		t.Errorf("Unexpected content: %q", out)
	}
	if caller.name != "fetch" {
		t.Errorf("Expected unprefixed server-side name, got %s", caller.name)
	}
}

func TestServerToolInvokeMissingRequiredArgument(t *testing.T) {
	caller := &fakeCaller{}
	tool := NewServerTool("web", caller, testSchema(), logging.Nop())

	if _, err := tool.Invoke(context.Background(), map[string]any{}); err == nil {
		t.Error("Expected missing-argument error")
	}
	if caller.name != "" {
		t.Error("Call should not reach the server on validation failure")
	}
}

func TestServerToolInvokeServerError(t *testing.T) {
	caller := &fakeCaller{result: &ToolCallResult{
		IsError: true,
		Content: []ContentBlock{{Type: "text", Text: "not found"}},
	}}
	tool := NewServerTool("web", caller, testSchema(), logging.Nop())

	_, err := tool.Invoke(context.Background(), map[string]any{"url": "x"})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("Expected server error with content, got %v", err)
	}
}

func TestServerToolInvokeTransportError(t *testing.T) {
	caller := &fakeCaller{err: errors.New("pipe closed")}
	tool := NewServerTool("web", caller, testSchema(), logging.Nop())

	if _, err := tool.Invoke(context.Background(), map[string]any{"url": "x"}); err == nil {
		t.Error("Expected transport error")
	}
}
