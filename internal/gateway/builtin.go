package gateway

// Public names of the two built-in virtual tools. Spelled identically
// wherever they're compared — execute_tool's cycle guard checks these
// constants by name, never by any tool metadata flag.
const (
	ToolSearchTools = "search_tools"
	ToolExecuteTool = "execute_tool"
)

func isBuiltinName(name string) bool {
	return name == ToolSearchTools || name == ToolExecuteTool
}

func errorResult(text string) CallToolResult {
	return CallToolResult{Content: []ToolContent{NewTextContent(text)}, IsError: true}
}
