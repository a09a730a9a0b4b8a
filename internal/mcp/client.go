package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"weft/internal/async"
	"weft/internal/logging"
)

// ProtocolVersion is the MCP protocol revision this client speaks.
const ProtocolVersion = "2024-11-05"

const callTimeout = 30 * time.Second

// ServerInfo identifies the server, reported during initialize.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ServerCapabilities lists what the server supports.
type ServerCapabilities struct {
	Tools     *ToolsCapability     `json:"tools,omitempty"`
	Resources *ResourcesCapability `json:"resources,omitempty"`
}

// ToolsCapability indicates the server supports tools.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ResourcesCapability indicates the server supports resources.
type ResourcesCapability struct {
	Subscribe   bool `json:"subscribe,omitempty"`
	ListChanged bool `json:"listChanged,omitempty"`
}

type initializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	ServerInfo      ServerInfo         `json:"serverInfo"`
	Capabilities    ServerCapabilities `json:"capabilities"`
}

// ToolSchema is one tool advertised by a server.
type ToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// ToolCallResult is the outcome of tools/call.
type ToolCallResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// ContentBlock is one piece of tool output.
type ContentBlock struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// Client speaks MCP to one server process over stdio.
type Client struct {
	serverName string
	proc       *process
	idGen      requestIDGenerator
	logger     logging.Logger

	mu           sync.RWMutex
	pendingCalls map[any]chan *Response
	initialized  bool
	serverInfo   ServerInfo
}

// NewClient builds a client for one server definition.
func NewClient(server *Server, logger logging.Logger) *Client {
	logger = logging.OrNop(logger)
	return &Client{
		serverName:   server.Name,
		proc:         newProcess(server.Command, server.Args, server.Env, logger),
		logger:       logger,
		pendingCalls: make(map[any]chan *Response),
	}
}

// Start launches the server process and performs the initialize handshake.
func (c *Client) Start(ctx context.Context) error {
	if err := c.proc.start(); err != nil {
		return fmt.Errorf("failed to start server process: %w", err)
	}

	async.Go(c.logger, "mcp.client.readLoop", c.readLoop)

	if err := c.initialize(ctx); err != nil {
		_ = c.proc.stop(5 * time.Second)
		return fmt.Errorf("initialize handshake failed: %w", err)
	}
	return nil
}

// Stop shuts down the server process.
func (c *Client) Stop() error {
	return c.proc.stop(5 * time.Second)
}

func (c *Client) initialize(ctx context.Context) error {
	params := map[string]any{
		"protocolVersion": ProtocolVersion,
		"clientInfo":      map[string]any{"name": "weft", "version": "0.1.0"},
	}

	result, err := c.call(ctx, "initialize", params)
	if err != nil {
		return err
	}

	var init initializeResult
	if err := unmarshalResult(result, &init); err != nil {
		return fmt.Errorf("failed to parse initialize result: %w", err)
	}
	if init.ProtocolVersion != ProtocolVersion {
		c.logger.Warn("Protocol version mismatch: client=%s server=%s", ProtocolVersion, init.ProtocolVersion)
	}

	c.mu.Lock()
	c.serverInfo = init.ServerInfo
	c.initialized = true
	c.mu.Unlock()

	c.logger.Info("Initialized tool server %s v%s", init.ServerInfo.Name, init.ServerInfo.Version)

	if err := c.notify("notifications/initialized", nil); err != nil {
		c.logger.Warn("Failed to send initialized notification: %v", err)
	}
	return nil
}

// ListTools fetches the server's tool catalog.
func (c *Client) ListTools(ctx context.Context) ([]ToolSchema, error) {
	if !c.IsInitialized() {
		return nil, fmt.Errorf("client not initialized")
	}

	result, err := c.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, fmt.Errorf("tools/list call failed: %w", err)
	}

	var response struct {
		Tools []ToolSchema `json:"tools"`
	}
	if err := unmarshalResult(result, &response); err != nil {
		return nil, fmt.Errorf("failed to parse tools list: %w", err)
	}
	c.logger.Info("Server %s advertises %d tools", c.serverName, len(response.Tools))
	return response.Tools, nil
}

// CallTool executes one tool on the server.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) (*ToolCallResult, error) {
	if !c.IsInitialized() {
		return nil, fmt.Errorf("client not initialized")
	}

	result, err := c.call(ctx, "tools/call", map[string]any{
		"name":      name,
		"arguments": arguments,
	})
	if err != nil {
		return nil, fmt.Errorf("tools/call failed: %w", err)
	}

	var toolResult ToolCallResult
	if err := unmarshalResult(result, &toolResult); err != nil {
		return nil, fmt.Errorf("failed to parse tool result: %w", err)
	}
	return &toolResult, nil
}

func (c *Client) call(ctx context.Context, method string, params map[string]any) (any, error) {
	id := c.idGen.next()
	data, err := json.Marshal(NewRequest(id, method, params))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	data = append(data, '\n')

	respChan := make(chan *Response, 1)
	c.mu.Lock()
	c.pendingCalls[id] = respChan
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pendingCalls, id)
		c.mu.Unlock()
	}()

	c.logger.Debug("Sending request: method=%s id=%v", method, id)
	if err := c.proc.write(data); err != nil {
		return nil, fmt.Errorf("failed to write request: %w", err)
	}

	select {
	case resp := <-respChan:
		if resp.IsError() {
			return nil, resp.Error
		}
		return resp.Result, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
	case <-time.After(callTimeout):
		return nil, fmt.Errorf("request timeout after %v", callTimeout)
	}
}

func (c *Client) notify(method string, params map[string]any) error {
	data, err := json.Marshal(NewNotification(method, params))
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	return c.proc.write(append(data, '\n'))
}

func (c *Client) readLoop() {
	scanner := bufio.NewScanner(c.proc.reader())
	// Large tool results need a bigger buffer than the scanner default.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		resp, err := UnmarshalResponse(scanner.Bytes())
		if err != nil {
			c.logger.Error("Failed to unmarshal response: %v", err)
			continue
		}

		c.mu.RLock()
		ch, ok := c.pendingCalls[resp.ID]
		c.mu.RUnlock()
		if !ok {
			c.logger.Warn("No pending call for response id=%v", resp.ID)
			continue
		}
		select {
		case ch <- resp:
		default:
			c.logger.Warn("Response channel full, dropping response id=%v", resp.ID)
		}
	}

	if err := scanner.Err(); err != nil {
		c.logger.Error("Read loop error: %v", err)
	}
}

// IsInitialized reports whether the handshake completed.
func (c *Client) IsInitialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initialized
}

// GetServerInfo returns the server identity from the handshake.
func (c *Client) GetServerInfo() ServerInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverInfo
}

func unmarshalResult(result any, target any) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}
