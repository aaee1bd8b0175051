// Package search implements the pluggable ranked-retrieval engine behind
// the search_tools built-in: a provider contract, concrete NONE/REGEX/BM25
// providers (EMBEDDINGS reserved), and a registry+service layer that
// instantiates, caches, and disposes providers.
package search

import (
	"context"
	"encoding/json"
)

// Tool is the minimal upstream tool shape the search engine ranks over.
// It deliberately does not import the gateway package's wire type, so
// this package has no dependency on the transport layer.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// AvailableTool pairs a tool with the server it came from.
type AvailableTool struct {
	Tool       Tool
	ServerUUID string
}

// Query is the input to Provider.Search.
type Query struct {
	Query         string
	MaxResults    int
	NamespaceUUID string
	EndpointUUID  string
}

// Result is one ranked hit.
type Result struct {
	Tool        Tool
	ServerUUID  string
	Score       float64
	MatchReason string
}

// Provider is the contract every search method implements. Initialize
// must be idempotent for the same config. Search must not retain any
// reference to availableTools between calls — tools are immutable
// during a request but the slice backing them is not guaranteed to
// survive it.
type Provider interface {
	// Name returns the stable method identifier (e.g. "REGEX").
	Name() string
	Initialize(ctx context.Context, config json.RawMessage) error
	Search(ctx context.Context, query Query, availableTools []AvailableTool) ([]Result, error)
	Dispose() error
}

const defaultMaxResults = 5

// clampResults truncates results to maxResults (default 5 when <= 0).
func clampResults(results []Result, maxResults int) []Result {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results
}

// emptyQueryResults implements the empty-query policy shared by REGEX
// and BM25: the first maxResults available tools, neutrally scored.
func emptyQueryResults(availableTools []AvailableTool, maxResults int) []Result {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	n := maxResults
	if n > len(availableTools) {
		n = len(availableTools)
	}
	out := make([]Result, n)
	for i := 0; i < n; i++ {
		out[i] = Result{
			Tool:        availableTools[i].Tool,
			ServerUUID:  availableTools[i].ServerUUID,
			Score:       0.5,
			MatchReason: "No search query provided",
		}
	}
	return out
}
