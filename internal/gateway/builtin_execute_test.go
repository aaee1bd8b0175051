package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

// TestHandleExecuteTool_UnknownTool matches spec.md §8 scenario 5.
func TestHandleExecuteTool_UnknownTool(t *testing.T) {
	result := HandleExecuteTool(context.Background(), scenarioOneCandidates(), nil,
		json.RawMessage(`{"tool_name":"does_not_exist","arguments":{}}`))

	if !result.IsError {
		t.Fatal("expected isError=true for an unknown tool")
	}
	text := result.Content[0].Text
	if !strings.Contains(text, `Tool "does_not_exist" not found`) {
		t.Errorf("expected not-found message, got %q", text)
	}
	for _, name := range []string{"filesystem__read_file", "filesystem__write_file", "web__fetch_url"} {
		if !strings.Contains(text, name) {
			t.Errorf("expected candidate %s listed, got %q", name, text)
		}
	}
	if !strings.Contains(text, "search_tools") {
		t.Errorf("expected a pointer to search_tools, got %q", text)
	}
}

// TestHandleExecuteTool_InvalidArguments matches spec.md §8 scenario 6.
func TestHandleExecuteTool_InvalidArguments(t *testing.T) {
	candidates := []CandidateTool{
		{Tool: Tool{
			Name: "test__tool",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"required": ["path", "mode"],
				"properties": {
					"path": {"type": "string"},
					"mode": {"type": "string", "enum": ["read", "write"]}
				}
			}`),
		}},
	}

	result := HandleExecuteTool(context.Background(), candidates, nil,
		json.RawMessage(`{"tool_name":"test__tool","arguments":{"path":123,"mode":"invalid"}}`))

	if !result.IsError {
		t.Fatal("expected isError=true for invalid arguments")
	}
	text := result.Content[0].Text
	if !strings.Contains(text, "validation failed") {
		t.Errorf("expected validation failed message, got %q", text)
	}
	if !strings.Contains(text, "path") || !strings.Contains(text, "mode") {
		t.Errorf("expected both offending fields named, got %q", text)
	}
	if !strings.Contains(text, `"required"`) && !strings.Contains(text, `"properties"`) {
		t.Errorf("expected pretty-printed input schema included, got %q", text)
	}
}

func TestHandleExecuteTool_RefusesBuiltinsByName(t *testing.T) {
	for _, name := range []string{ToolSearchTools, ToolExecuteTool} {
		result := HandleExecuteTool(context.Background(), nil, nil,
			json.RawMessage(`{"tool_name":"`+name+`","arguments":{}}`))
		if !result.IsError {
			t.Fatalf("expected refusal for builtin %s", name)
		}
		if !strings.Contains(result.Content[0].Text, "Cannot execute builtin tool") {
			t.Errorf("expected cycle-guard message for %s, got %q", name, result.Content[0].Text)
		}
	}
}

func TestHandleExecuteTool_ValidCall_DelegatesToProxy(t *testing.T) {
	candidates := []CandidateTool{
		{Tool: Tool{Name: "filesystem__read_file", InputSchema: json.RawMessage(`{"type":"object"}`)}},
	}
	called := false
	proxy := func(ctx context.Context, toolName string, arguments json.RawMessage) (CallToolResult, error) {
		called = true
		if toolName != "filesystem__read_file" {
			t.Errorf("unexpected tool name passed to proxy: %s", toolName)
		}
		return CallToolResult{Content: []ToolContent{NewTextContent("file contents")}}, nil
	}

	result := HandleExecuteTool(context.Background(), candidates, proxy,
		json.RawMessage(`{"tool_name":"filesystem__read_file","arguments":{"path":"/tmp/x"}}`))

	if !called {
		t.Fatal("expected proxy to be invoked")
	}
	if result.IsError {
		t.Fatalf("expected success, got isError result: %+v", result)
	}
	if result.Content[0].Text != "file contents" {
		t.Errorf("expected proxy result passed through verbatim, got %+v", result)
	}
}

func TestHandleExecuteTool_ProxyError_BecomesIsError(t *testing.T) {
	candidates := []CandidateTool{{Tool: Tool{Name: "flaky__tool"}}}
	proxy := func(ctx context.Context, toolName string, arguments json.RawMessage) (CallToolResult, error) {
		return CallToolResult{}, errors.New("upstream unreachable")
	}

	result := HandleExecuteTool(context.Background(), candidates, proxy,
		json.RawMessage(`{"tool_name":"flaky__tool","arguments":{}}`))

	if !result.IsError {
		t.Fatal("expected proxy error to surface as isError")
	}
	if !strings.Contains(result.Content[0].Text, "upstream unreachable") {
		t.Errorf("expected underlying error message included, got %q", result.Content[0].Text)
	}
}

func TestHandleExecuteTool_MissingSchema_DefaultsPermissive(t *testing.T) {
	candidates := []CandidateTool{{Tool: Tool{Name: "anything__tool"}}}
	proxy := func(ctx context.Context, toolName string, arguments json.RawMessage) (CallToolResult, error) {
		return CallToolResult{Content: []ToolContent{NewTextContent("ok")}}, nil
	}

	result := HandleExecuteTool(context.Background(), candidates, proxy,
		json.RawMessage(`{"tool_name":"anything__tool","arguments":{"whatever":true}}`))

	if result.IsError {
		t.Fatalf("expected a missing inputSchema to default to a permissive object schema, got %+v", result)
	}
}

func TestHandleExecuteTool_MalformedTopLevelArguments(t *testing.T) {
	result := HandleExecuteTool(context.Background(), scenarioOneCandidates(), nil,
		json.RawMessage(`{"tool_name":"filesystem__read_file"}`))
	if !result.IsError {
		t.Fatal("expected isError when arguments is missing entirely")
	}
}

func TestHandleExecuteTool_NullArguments(t *testing.T) {
	result := HandleExecuteTool(context.Background(), scenarioOneCandidates(), nil,
		json.RawMessage(`{"tool_name":"filesystem__read_file","arguments":null}`))
	if !result.IsError {
		t.Fatal("expected isError when arguments is a JSON null")
	}
}
