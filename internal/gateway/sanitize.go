package gateway

import "github.com/revittco/toolmux/internal/toolname"

// SanitizeServerName implements spec.md §4.E's sanitize(): trim, then
// replace runs of non-word characters with a single underscore. The
// mapping must stay stable forever — it forms half of every public
// tool name.
func SanitizeServerName(name string) string {
	return toolname.Sanitize(name)
}

// PublicToolName builds the "sanitize(serverName) + __ + toolName"
// public name every advertised tool is keyed by.
func PublicToolName(serverName, toolName string) string {
	return toolname.Public(serverName, toolName)
}
