package mcp

import (
	"testing"
)

func TestRequestIDGenerator(t *testing.T) {
	var gen requestIDGenerator

	if id := gen.next(); id != "1" {
		t.Errorf("Expected first ID to be 1, got %s", id)
	}
	if id := gen.next(); id != "2" {
		t.Errorf("Expected second ID to be 2, got %s", id)
	}
}

func TestNewRequest(t *testing.T) {
	req := NewRequest("1", "tools/list", map[string]any{"cursor": "abc"})

	if req.JSONRPC != jsonRPCVersion {
		t.Errorf("Expected JSONRPC version %s, got %s", jsonRPCVersion, req.JSONRPC)
	}
	if req.Method != "tools/list" {
		t.Errorf("Expected method 'tools/list', got %s", req.Method)
	}
	if req.Params["cursor"] != "abc" {
		t.Errorf("Expected cursor='abc', got %v", req.Params["cursor"])
	}
}

func TestUnmarshalResponse(t *testing.T) {
	resp, err := UnmarshalResponse([]byte(`{"jsonrpc":"2.0","id":"1","result":{"ok":true}}`))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.IsError() {
		t.Error("Expected success response")
	}
	if resp.ID != "1" {
		t.Errorf("Expected id '1', got %v", resp.ID)
	}
}

func TestUnmarshalResponseError(t *testing.T) {
	resp, err := UnmarshalResponse([]byte(`{"jsonrpc":"2.0","id":"2","error":{"code":-32601,"message":"method not found"}}`))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !resp.IsError() {
		t.Fatal("Expected error response")
	}
	if resp.Error.Code != MethodNotFound {
		t.Errorf("Expected code %d, got %d", MethodNotFound, resp.Error.Code)
	}
}

func TestUnmarshalResponseRejectsBadVersion(t *testing.T) {
	if _, err := UnmarshalResponse([]byte(`{"jsonrpc":"1.0","id":"1"}`)); err == nil {
		t.Error("Expected version error")
	}
}

func TestUnmarshalResponseRejectsBadJSON(t *testing.T) {
	if _, err := UnmarshalResponse([]byte(`{not json`)); err == nil {
		t.Error("Expected parse error")
	}
}
