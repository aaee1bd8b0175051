package search

import (
	"context"
	"strings"
	"testing"
)

func filesystemWebTools() []AvailableTool {
	return []AvailableTool{
		{Tool: Tool{Name: "filesystem__read_file", Description: "Read a file"}, ServerUUID: "srv-fs"},
		{Tool: Tool{Name: "filesystem__write_file", Description: "Write a file"}, ServerUUID: "srv-fs"},
		{Tool: Tool{Name: "web__fetch_url", Description: "Fetch URL"}, ServerUUID: "srv-web"},
	}
}

// TestRegexProvider_SearchForFiles matches spec.md §8 scenario 1: a
// REGEX search for "file" over filesystem/web tools returns the two
// filesystem tools, read_file ranked ahead of write_file.
func TestRegexProvider_SearchForFiles(t *testing.T) {
	p := NewRegexProvider()
	if err := p.Initialize(context.Background(), nil); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	results, err := p.Search(context.Background(), Query{Query: "file", MaxResults: 5}, filesystemWebTools())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d: %+v", len(results), results)
	}
	if results[0].Tool.Name != "filesystem__read_file" {
		t.Errorf("expected read_file first, got %s", results[0].Tool.Name)
	}
	if results[1].Tool.Name != "filesystem__write_file" {
		t.Errorf("expected write_file second, got %s", results[1].Tool.Name)
	}
	for _, r := range results {
		if !strings.Contains(r.MatchReason, "Matched in name, description") {
			t.Errorf("expected match reason to list name and description, got %q", r.MatchReason)
		}
	}
}

func TestRegexProvider_EmptyQuery_ReturnsNeutralResults(t *testing.T) {
	p := NewRegexProvider()
	p.Initialize(context.Background(), nil)

	results, err := p.Search(context.Background(), Query{Query: "", MaxResults: 2}, filesystemWebTools())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results (clamped by MaxResults), got %d", len(results))
	}
	for _, r := range results {
		if r.Score != 0.5 {
			t.Errorf("expected neutral score 0.5, got %v", r.Score)
		}
	}
}

func TestRegexProvider_NoMatches_ReturnsEmpty(t *testing.T) {
	p := NewRegexProvider()
	p.Initialize(context.Background(), nil)

	results, err := p.Search(context.Background(), Query{Query: "zzz-nope"}, filesystemWebTools())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestRegexProvider_ConfiguredPatternFailsToCompile_FallsBackToLiteral(t *testing.T) {
	p := NewRegexProvider()
	if err := p.Initialize(context.Background(), []byte(`{"pattern": "("}`)); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	results, err := p.Search(context.Background(), Query{Query: "fetch"}, filesystemWebTools())
	if err != nil {
		t.Fatalf("Search must never error on a bad configured pattern: %v", err)
	}
	if len(results) != 1 || results[0].Tool.Name != "web__fetch_url" {
		t.Fatalf("expected literal-substring fallback to match fetch_url, got %+v", results)
	}
}

func TestRegexProvider_CaseInsensitiveByDefault(t *testing.T) {
	p := NewRegexProvider()
	p.Initialize(context.Background(), nil)

	results, err := p.Search(context.Background(), Query{Query: "FILE"}, filesystemWebTools())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected case-insensitive match of FILE to find 2 tools, got %d", len(results))
	}
}

func TestRegexProvider_MaxResultsClamps(t *testing.T) {
	p := NewRegexProvider()
	p.Initialize(context.Background(), nil)

	results, err := p.Search(context.Background(), Query{Query: "file", MaxResults: 1}, filesystemWebTools())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected results clamped to 1, got %d", len(results))
	}
}
