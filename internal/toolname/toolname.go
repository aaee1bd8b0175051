// Package toolname builds the public names advertised tools are keyed
// by. It sits below both internal/gateway and internal/store/sqlite so
// neither has to depend on the other just to share this mapping.
package toolname

import (
	"regexp"
	"strings"
)

var nonWordRun = regexp.MustCompile(`[^A-Za-z0-9]+`)

// Sanitize implements spec.md §4.E's sanitize(): trim, then replace
// runs of non-word characters with a single underscore. The mapping
// must stay stable forever — it forms half of every public tool name.
func Sanitize(name string) string {
	return nonWordRun.ReplaceAllString(strings.TrimSpace(name), "_")
}

// Public builds the "sanitize(serverName) + __ + toolName" public name
// every advertised tool is keyed by.
func Public(serverName, toolName string) string {
	return Sanitize(serverName) + "__" + toolName
}
