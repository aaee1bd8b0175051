package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/revittco/toolmux/internal/resolve"
	"github.com/revittco/toolmux/internal/search"
)

const searchToolsInputSchema = `{
	"type": "object",
	"required": ["query"],
	"properties": {
		"query": {"type": "string"},
		"max_results": {"type": "number", "minimum": 1, "maximum": 20}
	}
}`

// SearchToolsDefinition is the built-in search_tools tool (spec.md §4.C).
func SearchToolsDefinition() Tool {
	return Tool{
		Name:        ToolSearchTools,
		Description: "Search for available tools by name and description across connected servers.",
		InputSchema: json.RawMessage(searchToolsInputSchema),
	}
}

// CandidateTool pairs an upstream tool with the server it came from —
// the unit both built-ins operate over.
type CandidateTool struct {
	Tool       Tool
	ServerUUID string
	ServerName string
}

func toSearchAvailable(candidates []CandidateTool) []search.AvailableTool {
	out := make([]search.AvailableTool, len(candidates))
	for i, c := range candidates {
		out[i] = search.AvailableTool{
			Tool: search.Tool{
				Name:        c.Tool.Name,
				Description: c.Tool.Description,
				InputSchema: c.Tool.InputSchema,
			},
			ServerUUID: c.ServerUUID,
		}
	}
	return out
}

type searchToolsArgs struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

// HandleSearchTools implements the search_tools built-in. Unlike
// execute_tool, it does not swallow provider errors (spec.md §7): a
// search failure is returned as a genuine error for the caller to
// surface as an RPC error, not folded into an isError result.
func HandleSearchTools(
	ctx context.Context,
	svc *search.Service,
	resolved resolve.ResolvedConfig,
	namespaceUUID, endpointUUID string,
	candidates []CandidateTool,
	rawArgs json.RawMessage,
) (CallToolResult, error) {
	var args searchToolsArgs
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return CallToolResult{}, fmt.Errorf("invalid search_tools arguments: %w", err)
		}
	}

	q := search.Query{
		Query:         args.Query,
		MaxResults:    args.MaxResults,
		NamespaceUUID: namespaceUUID,
		EndpointUUID:  endpointUUID,
	}

	results, err := svc.Search(ctx, q, toSearchAvailable(candidates), resolved)
	if err != nil {
		return CallToolResult{}, fmt.Errorf("search_tools: %w", err)
	}

	content := make([]ToolContent, len(results))
	for i, r := range results {
		content[i] = NewToolReferenceContent(r.Tool.Name, formatToolReferenceDescription(r))
	}
	return CallToolResult{Content: content}, nil
}

func formatToolReferenceDescription(r search.Result) string {
	desc := r.Tool.Description
	if desc == "" {
		desc = "No description available"
	}
	return fmt.Sprintf("%s (score: %.2f, %s)", desc, r.Score, r.MatchReason)
}
