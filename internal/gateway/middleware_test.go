package gateway

import (
	"testing"

	"github.com/revittco/toolmux/internal/resolve"
	"github.com/revittco/toolmux/internal/store"
)

func scenarioOneUpstream() []Tool {
	return []Tool{
		{Name: "filesystem__read_file", Description: "Read a file"},
		{Name: "filesystem__write_file", Description: "Write a file"},
		{Name: "web__fetch_url", Description: "Fetch URL"},
	}
}

// TestMiddleware_DeferLoadingFlag matches spec.md §8 scenario 3:
// namespace defaults defer_loading=true/BM25/ALL, endpoint all INHERIT,
// a per-tool override disabling defer-loading for read_file.
func TestMiddleware_DeferLoadingFlag(t *testing.T) {
	resolved := resolve.ResolvedConfig{
		DeferLoadingEnabled: true,
		SearchMethod:        store.SearchBM25,
		ToolVisibility:      store.VisibilityAll,
		ToolOverrides:        map[string]bool{"filesystem__read_file": false},
	}

	out := ApplyDeferLoadingMiddleware(scenarioOneUpstream(), resolved, nil)

	if len(out) != 4 {
		t.Fatalf("expected 3 upstream tools + search_tools, got %d: %+v", len(out), out)
	}

	byName := make(map[string]Tool, len(out))
	for _, tool := range out {
		byName[tool.Name] = tool
	}

	if tool, ok := byName["filesystem__read_file"]; !ok || tool.DeferLoading != nil {
		t.Errorf("expected read_file unflagged (override=false), got %+v", tool)
	}
	if tool, ok := byName["filesystem__write_file"]; !ok || tool.DeferLoading == nil || !*tool.DeferLoading {
		t.Errorf("expected write_file flagged true, got %+v", tool)
	}
	if tool, ok := byName["web__fetch_url"]; !ok || tool.DeferLoading == nil || !*tool.DeferLoading {
		t.Errorf("expected fetch_url flagged true, got %+v", tool)
	}
	if tool, ok := byName[ToolSearchTools]; !ok || tool.DeferLoading != nil {
		t.Errorf("expected search_tools unflagged, got %+v", tool)
	}
}

// TestMiddleware_SearchOnlyVisibility matches spec.md §8 scenario 4.
func TestMiddleware_SearchOnlyVisibility(t *testing.T) {
	resolved := resolve.ResolvedConfig{
		DeferLoadingEnabled: true,
		SearchMethod:        store.SearchBM25,
		ToolVisibility:      store.VisibilitySearchOnly,
		ToolOverrides:        map[string]bool{"filesystem__read_file": false},
	}

	out := ApplyDeferLoadingMiddleware(scenarioOneUpstream(), resolved, nil)

	if len(out) != 1 {
		t.Fatalf("expected advertised list length 1, got %d: %+v", len(out), out)
	}
	if out[0].Name != ToolSearchTools {
		t.Errorf("expected the one tool to be search_tools, got %s", out[0].Name)
	}
}

func TestMiddleware_SearchMethodNone_NoSearchToolsInjected(t *testing.T) {
	resolved := resolve.ResolvedConfig{
		DeferLoadingEnabled: true,
		SearchMethod:        store.SearchNone,
		ToolVisibility:      store.VisibilityAll,
	}

	out := ApplyDeferLoadingMiddleware(scenarioOneUpstream(), resolved, nil)

	if len(out) != 3 {
		t.Fatalf("expected only the 3 upstream tools (NONE means no search_tools), got %d", len(out))
	}
	for _, tool := range out {
		if tool.Name == ToolSearchTools {
			t.Error("search_tools must not be advertised when SearchMethod is NONE")
		}
	}
}

func TestMiddleware_DeferLoadingDisabled_NothingFlagged(t *testing.T) {
	resolved := resolve.ResolvedConfig{
		DeferLoadingEnabled: false,
		SearchMethod:        store.SearchBM25,
		ToolVisibility:      store.VisibilityAll,
	}

	out := ApplyDeferLoadingMiddleware(scenarioOneUpstream(), resolved, nil)

	for _, tool := range out {
		if tool.Name != ToolSearchTools && tool.DeferLoading != nil {
			t.Errorf("expected %s unflagged when defer loading disabled globally", tool.Name)
		}
	}
}

func TestMiddleware_DoesNotMutateUpstreamSlice(t *testing.T) {
	upstream := scenarioOneUpstream()
	resolved := resolve.ResolvedConfig{DeferLoadingEnabled: true, SearchMethod: store.SearchBM25, ToolVisibility: store.VisibilityAll}

	ApplyDeferLoadingMiddleware(upstream, resolved, nil)

	for _, tool := range upstream {
		if tool.DeferLoading != nil {
			t.Errorf("upstream tool %s must not be mutated in place", tool.Name)
		}
	}
}

// TestMiddleware_IdempotentReapplication covers spec.md §8's
// round-trip property: applying the middleware twice yields the same
// list (flag re-application is a no-op).
func TestMiddleware_IdempotentReapplication(t *testing.T) {
	resolved := resolve.ResolvedConfig{DeferLoadingEnabled: true, SearchMethod: store.SearchBM25, ToolVisibility: store.VisibilityAll}

	once := ApplyDeferLoadingMiddleware(scenarioOneUpstream(), resolved, nil)
	twice := ApplyDeferLoadingMiddleware(once, resolved, nil)

	if len(once) != len(twice) {
		t.Fatalf("expected stable length across reapplication: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].Name != twice[i].Name {
			t.Errorf("tool[%d] name changed across reapplication: %s vs %s", i, once[i].Name, twice[i].Name)
		}
		got, want := twice[i].DeferLoading, once[i].DeferLoading
		if (got == nil) != (want == nil) || (got != nil && *got != *want) {
			t.Errorf("tool[%d] %s defer_loading changed across reapplication", i, once[i].Name)
		}
	}
}
