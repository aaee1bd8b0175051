package resolve

import (
	"testing"

	"github.com/revittco/toolmux/internal/store"
)

func baseNamespace() *store.Namespace {
	return &store.Namespace{
		UUID:                  "ns-1",
		DefaultDeferLoading:   true,
		DefaultSearchMethod:   store.SearchBM25,
		DefaultToolVisibility: store.VisibilityAll,
	}
}

func TestResolve_NoEndpoint_UsesNamespaceDefaults(t *testing.T) {
	ns := baseNamespace()
	rc := Resolve(ns, nil, nil, nil)

	if !rc.DeferLoadingEnabled {
		t.Error("expected defer loading enabled from namespace default")
	}
	if rc.SearchMethod != store.SearchBM25 {
		t.Errorf("SearchMethod = %s, want BM25", rc.SearchMethod)
	}
	if rc.ToolVisibility != store.VisibilityAll {
		t.Errorf("ToolVisibility = %s, want ALL", rc.ToolVisibility)
	}
	if rc.MaxResults != 5 {
		t.Errorf("MaxResults = %d, want default 5", rc.MaxResults)
	}
	if rc.ToolOverrides == nil {
		t.Error("ToolOverrides must never be nil")
	}
}

func TestResolve_EndpointOverridesWin(t *testing.T) {
	ns := baseNamespace()
	ep := &store.Endpoint{
		NamespaceUUID:          ns.UUID,
		OverrideDeferLoading:   store.DeferDisabled,
		OverrideSearchMethod:   store.SearchRegex,
		OverrideToolVisibility: store.VisibilitySearchOnly,
	}

	rc := Resolve(ns, ep, nil, nil)

	if rc.DeferLoadingEnabled {
		t.Error("expected defer loading disabled by endpoint override")
	}
	if rc.SearchMethod != store.SearchRegex {
		t.Errorf("SearchMethod = %s, want REGEX", rc.SearchMethod)
	}
	if rc.ToolVisibility != store.VisibilitySearchOnly {
		t.Errorf("ToolVisibility = %s, want SEARCH_ONLY", rc.ToolVisibility)
	}
}

func TestResolve_EndpointInherit_FallsBackToNamespace(t *testing.T) {
	ns := baseNamespace()
	ep := &store.Endpoint{
		NamespaceUUID:          ns.UUID,
		OverrideDeferLoading:   store.DeferInherit,
		OverrideSearchMethod:   "",
		OverrideToolVisibility: "",
	}
	rc := Resolve(ns, ep, nil, nil)

	if !rc.DeferLoadingEnabled {
		t.Error("expected inherited defer loading from namespace")
	}
	if rc.SearchMethod != store.SearchBM25 {
		t.Errorf("SearchMethod = %s, want inherited BM25", rc.SearchMethod)
	}
	if rc.ToolVisibility != store.VisibilityAll {
		t.Errorf("ToolVisibility = %s, want inherited ALL", rc.ToolVisibility)
	}
}

func TestResolve_ToolOverridesNeverContainInherit(t *testing.T) {
	ns := baseNamespace()
	overrides := map[string]bool{
		"filesystem__write_file": false,
		"web__fetch_url":         true,
	}
	rc := Resolve(ns, nil, overrides, nil)

	if len(rc.ToolOverrides) != 2 {
		t.Fatalf("expected 2 overrides, got %d", len(rc.ToolOverrides))
	}
	if rc.ToolOverrides["filesystem__write_file"] != false {
		t.Error("expected DISABLED override to resolve false")
	}
	if rc.ToolOverrides["web__fetch_url"] != true {
		t.Error("expected ENABLED override to resolve true")
	}
}

func TestResolve_MissingSearchConfig_Defaults(t *testing.T) {
	ns := baseNamespace()
	rc := Resolve(ns, nil, nil, nil)
	if rc.MaxResults != 5 {
		t.Errorf("MaxResults = %d, want 5", rc.MaxResults)
	}
	if rc.ProviderConfig != nil {
		t.Error("expected nil ProviderConfig when no ToolSearchConfig row exists")
	}
}

func TestResolve_PresentSearchConfig(t *testing.T) {
	ns := baseNamespace()
	cfg := &store.ToolSearchConfig{NamespaceUUID: ns.UUID, MaxResults: 12}
	rc := Resolve(ns, nil, nil, cfg)
	if rc.MaxResults != 12 {
		t.Errorf("MaxResults = %d, want 12", rc.MaxResults)
	}
}

func TestResolve_NamespaceVisibilityDefaultsToAllWhenUnset(t *testing.T) {
	ns := baseNamespace()
	ns.DefaultToolVisibility = ""
	rc := Resolve(ns, nil, nil, nil)
	if rc.ToolVisibility != store.VisibilityAll {
		t.Errorf("ToolVisibility = %s, want ALL fallback", rc.ToolVisibility)
	}
}

func TestFailSafe(t *testing.T) {
	fs := FailSafe()
	if fs.DeferLoadingEnabled {
		t.Error("fail-safe must disable defer loading")
	}
	if fs.SearchMethod != store.SearchNone {
		t.Errorf("fail-safe SearchMethod = %s, want NONE", fs.SearchMethod)
	}
	if fs.ToolVisibility != store.VisibilityAll {
		t.Errorf("fail-safe ToolVisibility = %s, want ALL", fs.ToolVisibility)
	}
	if len(fs.ToolOverrides) != 0 {
		t.Error("fail-safe ToolOverrides must be empty")
	}
	if fs.MaxResults != 5 {
		t.Errorf("fail-safe MaxResults = %d, want 5", fs.MaxResults)
	}
}
