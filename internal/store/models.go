package store

import (
	"encoding/json"
	"time"
)

// DeferLoading is a tri-state inherit sentinel. Never model it as a
// nullable bool: that loses the difference between "unset" and
// "deliberately false".
type DeferLoading string

const (
	DeferInherit  DeferLoading = "INHERIT"
	DeferEnabled  DeferLoading = "ENABLED"
	DeferDisabled DeferLoading = "DISABLED"
)

// SearchMethod identifies a tool-search provider family.
type SearchMethod string

const (
	SearchNone       SearchMethod = "NONE"
	SearchRegex      SearchMethod = "REGEX"
	SearchBM25       SearchMethod = "BM25"
	SearchEmbeddings SearchMethod = "EMBEDDINGS"
)

// ToolVisibility controls which tools an endpoint advertises.
type ToolVisibility string

const (
	VisibilityAll        ToolVisibility = "ALL"
	VisibilitySearchOnly ToolVisibility = "SEARCH_ONLY"
)

// ToolMappingStatus is whether a mapping participates in aggregation at all.
type ToolMappingStatus string

const (
	ToolActive   ToolMappingStatus = "ACTIVE"
	ToolInactive ToolMappingStatus = "INACTIVE"
)

// Namespace groups a set of downstream servers and carries the defaults
// every endpoint bound to it inherits.
type Namespace struct {
	UUID                  string       `json:"uuid"`
	Name                  string       `json:"name"`
	OwnerID               string       `json:"owner_id,omitempty"` // empty = public, any caller may mutate
	DefaultDeferLoading   bool         `json:"default_defer_loading"`
	DefaultSearchMethod   SearchMethod `json:"default_search_method"`
	DefaultToolVisibility ToolVisibility `json:"default_tool_visibility"`
	CreatedAt             time.Time    `json:"created_at"`
	UpdatedAt             time.Time    `json:"updated_at"`
}

// Endpoint is a client-visible projection of a namespace that may
// override its defaults. Overrides are tri-state: INHERIT means "defer
// to the namespace", never "nullable absence".
type Endpoint struct {
	UUID                    string         `json:"uuid"`
	NamespaceUUID           string         `json:"namespace_uuid"`
	Name                    string         `json:"name"`
	OverrideDeferLoading    DeferLoading   `json:"override_defer_loading"`
	OverrideSearchMethod    SearchMethod   `json:"override_search_method"` // "" or INHERIT means inherit
	OverrideToolVisibility  ToolVisibility `json:"override_tool_visibility"`
	CreatedAt               time.Time      `json:"created_at"`
	UpdatedAt               time.Time      `json:"updated_at"`
}

// InheritsSearchMethod reports whether the endpoint's override is the
// inherit sentinel (empty string and the literal "INHERIT" both count,
// since the column is nullable in storage but never nullable in code).
func (e Endpoint) InheritsSearchMethod() bool {
	return e.OverrideSearchMethod == "" || e.OverrideSearchMethod == SearchMethod(DeferInherit)
}

// InheritsToolVisibility reports whether the endpoint's visibility
// override is unset.
func (e Endpoint) InheritsToolVisibility() bool {
	return e.OverrideToolVisibility == "" || e.OverrideToolVisibility == ToolVisibility(DeferInherit)
}

// NormalizeOverrides fills any blank tri-state override with its
// explicit INHERIT sentinel, so storage never holds an ambiguous empty
// string alongside the literal "INHERIT".
func (e *Endpoint) NormalizeOverrides() {
	if e.OverrideDeferLoading == "" {
		e.OverrideDeferLoading = DeferInherit
	}
	if e.OverrideSearchMethod == "" {
		e.OverrideSearchMethod = SearchMethod(DeferInherit)
	}
	if e.OverrideToolVisibility == "" {
		e.OverrideToolVisibility = ToolVisibility(DeferInherit)
	}
}

// ToolMapping is the per (namespace, upstream-server, tool) record that
// carries the tool's activation status and per-tool defer-loading
// override. Uniqueness: (NamespaceUUID, ServerUUID, ToolName).
type ToolMapping struct {
	UUID          string            `json:"uuid"`
	NamespaceUUID string            `json:"namespace_uuid"`
	ServerUUID    string            `json:"server_uuid"`
	ServerName    string            `json:"server_name"`
	ToolName      string            `json:"tool_name"`
	Status        ToolMappingStatus `json:"status"`
	DeferLoading  DeferLoading      `json:"defer_loading"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// PublicName returns the stable public tool name sanitize(ServerName)+"__"+ToolName.
func (m ToolMapping) PublicName(sanitize func(string) string) string {
	return sanitize(m.ServerName) + "__" + m.ToolName
}

// ToolSearchConfig is the per-namespace tuning record for the search
// providers. Uniqueness: NamespaceUUID.
type ToolSearchConfig struct {
	NamespaceUUID  string          `json:"namespace_uuid"`
	MaxResults     int             `json:"max_results"` // [1,20]
	ProviderConfig json.RawMessage `json:"provider_config,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// DownstreamServer identifies an upstream MCP server belonging to a
// namespace. OAuth/workspace fields are deliberately absent — those
// belong to the auth/transport collaborators this repository treats
// as external.
type DownstreamServer struct {
	UUID          string          `json:"uuid"`
	NamespaceUUID string          `json:"namespace_uuid"`
	Name          string          `json:"name"`
	Transport     string          `json:"transport"` // "stdio" | "http"
	Command       string          `json:"command,omitempty"`
	Args          json.RawMessage `json:"args,omitempty"`
	URL           *string         `json:"url,omitempty"`
	IdleTimeoutSec int            `json:"idle_timeout_sec"`
	Disabled      bool            `json:"disabled"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
