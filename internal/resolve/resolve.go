// Package resolve implements the config resolver (spec.md §4.E): the
// pure function that collapses a namespace's defaults, an endpoint's
// tri-state overrides, and a namespace's per-tool defer-loading
// overrides into one inherit-free ResolvedConfig, plus the process-local
// single-flight cache that fronts it.
package resolve

import (
	"encoding/json"

	"github.com/revittco/toolmux/internal/store"
)

const defaultMaxResults = 5

// ResolvedConfig is the ephemeral, per-endpoint, INHERIT-free view a
// single request resolves once and uses throughout.
type ResolvedConfig struct {
	DeferLoadingEnabled bool
	SearchMethod        store.SearchMethod
	ToolVisibility      store.ToolVisibility
	ToolOverrides       map[string]bool // publicToolName -> enabled; INHERIT never appears
	MaxResults          int
	ProviderConfig      json.RawMessage
}

// FailSafe is the value returned when the namespace is missing or the
// backing fetch fails — deliberately inert (search disabled, no
// defer-loading, everything visible) rather than partially resolved.
func FailSafe() ResolvedConfig {
	return ResolvedConfig{
		DeferLoadingEnabled: false,
		SearchMethod:        store.SearchNone,
		ToolVisibility:      store.VisibilityAll,
		ToolOverrides:       map[string]bool{},
		MaxResults:          defaultMaxResults,
		ProviderConfig:      nil,
	}
}

// Resolve is the pure collapsing function. endpoint may be nil (no
// endpoint bound — namespace defaults apply unmodified). toolOverrides
// must already be pre-filtered to only ENABLED/DISABLED entries, keyed
// by public tool name (invariant 3: INHERIT never appears in a
// ResolvedConfig). cfg may be nil (no ToolSearchConfig row — defaults
// of maxResults=5, providerConfig=nil apply, per invariant 1).
func Resolve(
	ns *store.Namespace,
	endpoint *store.Endpoint,
	toolOverrides map[string]bool,
	cfg *store.ToolSearchConfig,
) ResolvedConfig {
	rc := ResolvedConfig{
		ToolOverrides: toolOverrides,
		MaxResults:    defaultMaxResults,
	}
	if rc.ToolOverrides == nil {
		rc.ToolOverrides = map[string]bool{}
	}

	rc.DeferLoadingEnabled = resolveDeferLoading(ns, endpoint)
	rc.SearchMethod = resolveSearchMethod(ns, endpoint)
	rc.ToolVisibility = resolveToolVisibility(ns, endpoint)

	if cfg != nil {
		rc.MaxResults = cfg.MaxResults
		rc.ProviderConfig = cfg.ProviderConfig
	}

	return rc
}

func resolveDeferLoading(ns *store.Namespace, endpoint *store.Endpoint) bool {
	if endpoint != nil {
		switch endpoint.OverrideDeferLoading {
		case store.DeferEnabled:
			return true
		case store.DeferDisabled:
			return false
		}
	}
	return ns.DefaultDeferLoading
}

func resolveSearchMethod(ns *store.Namespace, endpoint *store.Endpoint) store.SearchMethod {
	if endpoint != nil && !endpoint.InheritsSearchMethod() {
		return endpoint.OverrideSearchMethod
	}
	return ns.DefaultSearchMethod
}

func resolveToolVisibility(ns *store.Namespace, endpoint *store.Endpoint) store.ToolVisibility {
	if endpoint != nil && !endpoint.InheritsToolVisibility() {
		return endpoint.OverrideToolVisibility
	}
	if ns.DefaultToolVisibility == "" {
		return store.VisibilityAll
	}
	return ns.DefaultToolVisibility
}
