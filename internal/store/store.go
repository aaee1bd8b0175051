package store

import "context"

// Store is the composite interface the core reads configuration through
// and external collaborators write through. It is a narrow persistence
// contract (spec.md §4.G): the core never prescribes storage layout
// beyond these entities.
type Store interface {
	NamespaceStore
	EndpointStore
	ToolMappingStore
	ToolSearchConfigStore
	DownstreamServerStore
	Tx(ctx context.Context, fn func(Store) error) error
	Ping(ctx context.Context) error
	Close() error
}

// NamespaceStore manages namespace records. DeleteNamespace cascades to
// that namespace's ToolSearchConfig and ToolMappings (invariant 2).
type NamespaceStore interface {
	CreateNamespace(ctx context.Context, n *Namespace) error
	FindNamespace(ctx context.Context, uuid string) (*Namespace, error)
	GetNamespaceByName(ctx context.Context, name string) (*Namespace, error)
	ListNamespaces(ctx context.Context) ([]Namespace, error)
	UpdateNamespace(ctx context.Context, n *Namespace) error
	DeleteNamespace(ctx context.Context, uuid string) error
}

// EndpointStore manages endpoint records.
type EndpointStore interface {
	CreateEndpoint(ctx context.Context, e *Endpoint) error
	FindEndpoint(ctx context.Context, uuid string) (*Endpoint, error)
	ListEndpoints(ctx context.Context) ([]Endpoint, error)
	EndpointsByNamespace(ctx context.Context, namespaceUUID string) ([]Endpoint, error)
	UpdateEndpoint(ctx context.Context, e *Endpoint) error
	DeleteEndpoint(ctx context.Context, uuid string) error
}

// ToolMappingStore manages per (namespace, server, tool) records,
// including the per-tool defer-loading override.
type ToolMappingStore interface {
	CreateToolMapping(ctx context.Context, m *ToolMapping) error
	GetToolMapping(ctx context.Context, namespaceUUID, serverUUID, toolName string) (*ToolMapping, error)
	FindToolMappingByUUIDs(ctx context.Context, namespaceUUID, toolUUID, serverUUID string) (*ToolMapping, error)
	ListToolMappings(ctx context.Context, namespaceUUID string) ([]ToolMapping, error)
	UpdateToolMapping(ctx context.Context, m *ToolMapping) error
	UpdateToolDeferLoading(ctx context.Context, namespaceUUID, toolUUID, serverUUID string, deferLoading DeferLoading) error
	DeleteToolMapping(ctx context.Context, uuid string) error

	// FindToolDeferLoadingOverrides returns only entries whose defer_loading
	// is ENABLED or DISABLED, keyed by the joined public tool name.
	FindToolDeferLoadingOverrides(ctx context.Context, namespaceUUID string) (map[string]bool, error)
}

// ToolSearchConfigStore manages the per-namespace search tuning record.
type ToolSearchConfigStore interface {
	FindToolSearchConfig(ctx context.Context, namespaceUUID string) (*ToolSearchConfig, error)
	UpsertToolSearchConfig(ctx context.Context, c *ToolSearchConfig) error
}

// DownstreamServerStore manages the ambient downstream-server records
// the gateway needs to actually reach an upstream MCP server. Not part
// of the CORE's tested contract (spec.md treats upstream transport as
// an external collaborator) but required to make the repository runnable.
type DownstreamServerStore interface {
	CreateDownstreamServer(ctx context.Context, d *DownstreamServer) error
	GetDownstreamServer(ctx context.Context, uuid string) (*DownstreamServer, error)
	ListDownstreamServers(ctx context.Context) ([]DownstreamServer, error)
	ListDownstreamServersByNamespace(ctx context.Context, namespaceUUID string) ([]DownstreamServer, error)
	UpdateDownstreamServer(ctx context.Context, d *DownstreamServer) error
	DeleteDownstreamServer(ctx context.Context, uuid string) error
}
