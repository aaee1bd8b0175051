package gateway

import (
	"fmt"
	"log/slog"

	"github.com/revittco/toolmux/internal/resolve"
	"github.com/revittco/toolmux/internal/store"
)

// ApplyDeferLoadingMiddleware runs the three-step advertise-tools
// pipeline in order (spec.md §4.F): conditionally inject search_tools,
// flag defer-loadable tools without mutating the inputs, then filter by
// visibility. Any internal failure is caught and returns the upstream
// list unchanged — defer flags are never partially applied.
func ApplyDeferLoadingMiddleware(upstream []Tool, resolved resolve.ResolvedConfig, logger *slog.Logger) []Tool {
	if logger == nil {
		logger = slog.Default()
	}

	result, err := applyMiddleware(upstream, resolved)
	if err != nil {
		logger.Error("defer-loading middleware failed, returning upstream list unchanged", "error", err)
		return upstream
	}
	return result
}

func applyMiddleware(upstream []Tool, resolved resolve.ResolvedConfig) (out []Tool, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("panic in defer-loading middleware: %v", r)
		}
	}()

	candidate := make([]Tool, len(upstream), len(upstream)+1)
	copy(candidate, upstream)

	// Step 1: search_tools is advertised iff deferLoadingEnabled and
	// search is not disabled. execute_tool's advertisement is left to
	// the caller (spec.md's open question permits but does not require
	// it) — toolmux does not advertise it unconditionally, since doing
	// so would make SEARCH_ONLY's single-builtin invariant caller-
	// specific rather than a property of the resolved config alone.
	if resolved.DeferLoadingEnabled && resolved.SearchMethod != store.SearchNone && !containsTool(candidate, ToolSearchTools) {
		candidate = append(candidate, SearchToolsDefinition())
	}

	// Step 2: flag per tool, producing clones rather than mutating.
	flagged := make([]Tool, len(candidate))
	for i, t := range candidate {
		flagged[i] = applyDeferFlag(t, resolved)
	}

	// Step 3: visibility filter.
	return applyVisibility(flagged, resolved.ToolVisibility), nil
}

func containsTool(tools []Tool, name string) bool {
	for _, t := range tools {
		if t.Name == name {
			return true
		}
	}
	return false
}

func applyDeferFlag(t Tool, resolved resolve.ResolvedConfig) Tool {
	if isBuiltinName(t.Name) {
		return t
	}
	if enabled, ok := resolved.ToolOverrides[t.Name]; ok {
		if enabled {
			return t.WithDeferLoading()
		}
		return t
	}
	if resolved.DeferLoadingEnabled {
		return t.WithDeferLoading()
	}
	return t
}

func applyVisibility(tools []Tool, visibility store.ToolVisibility) []Tool {
	if visibility != store.VisibilitySearchOnly {
		return tools
	}
	out := make([]Tool, 0, len(tools))
	for _, t := range tools {
		if isBuiltinName(t.Name) {
			out = append(out, t)
		}
	}
	return out
}
