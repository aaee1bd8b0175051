package gateway

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/revittco/toolmux/internal/resolve"
	"github.com/revittco/toolmux/internal/search"
	"github.com/revittco/toolmux/internal/store"
)

func scenarioOneCandidates() []CandidateTool {
	return []CandidateTool{
		{Tool: Tool{Name: "filesystem__read_file", Description: "Read a file"}, ServerUUID: "srv-fs", ServerName: "filesystem"},
		{Tool: Tool{Name: "filesystem__write_file", Description: "Write a file"}, ServerUUID: "srv-fs", ServerName: "filesystem"},
		{Tool: Tool{Name: "web__fetch_url", Description: "Fetch URL"}, ServerUUID: "srv-web", ServerName: "web"},
	}
}

func TestHandleSearchTools_RegexScenario(t *testing.T) {
	svc := search.NewService(search.NewRegistry(), nil)
	resolved := resolve.ResolvedConfig{SearchMethod: store.SearchRegex, MaxResults: 5}

	result, err := HandleSearchTools(context.Background(), svc, resolved, "ns-1", "ep-1",
		scenarioOneCandidates(), json.RawMessage(`{"query":"file"}`))
	if err != nil {
		t.Fatalf("HandleSearchTools: %v", err)
	}

	if len(result.Content) != 2 {
		t.Fatalf("expected 2 tool_reference blocks, got %d: %+v", len(result.Content), result.Content)
	}
	if result.Content[0].Name != "filesystem__read_file" {
		t.Errorf("expected read_file first, got %s", result.Content[0].Name)
	}
	for _, c := range result.Content {
		if c.Type != "tool_reference" {
			t.Errorf("expected type tool_reference, got %s", c.Type)
		}
		if !strings.Contains(c.Description, "score:") || !strings.Contains(c.Description, "Matched in name, description") {
			t.Errorf("expected formatted description with score and match reason, got %q", c.Description)
		}
	}
}

func TestHandleSearchTools_MaxResultsOverride(t *testing.T) {
	svc := search.NewService(search.NewRegistry(), nil)
	resolved := resolve.ResolvedConfig{SearchMethod: store.SearchRegex, MaxResults: 5}

	result, err := HandleSearchTools(context.Background(), svc, resolved, "ns-1", "ep-1",
		scenarioOneCandidates(), json.RawMessage(`{"query":"file","max_results":1}`))
	if err != nil {
		t.Fatalf("HandleSearchTools: %v", err)
	}
	if len(result.Content) != 1 {
		t.Fatalf("expected max_results argument to override config default, got %d results", len(result.Content))
	}
}

func TestHandleSearchTools_NoDescriptionFallback(t *testing.T) {
	svc := search.NewService(search.NewRegistry(), nil)
	resolved := resolve.ResolvedConfig{SearchMethod: store.SearchRegex, MaxResults: 5}
	candidates := []CandidateTool{{Tool: Tool{Name: "bare__tool"}, ServerUUID: "srv"}}

	result, err := HandleSearchTools(context.Background(), svc, resolved, "ns-1", "ep-1",
		candidates, json.RawMessage(`{"query":"bare"}`))
	if err != nil {
		t.Fatalf("HandleSearchTools: %v", err)
	}
	if len(result.Content) != 1 {
		t.Fatalf("expected 1 result, got %d", len(result.Content))
	}
	if !strings.Contains(result.Content[0].Description, "No description available") {
		t.Errorf("expected fallback description text, got %q", result.Content[0].Description)
	}
}
