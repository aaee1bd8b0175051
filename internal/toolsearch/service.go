// Package toolsearch implements the small CRUD surface spec.md §4.H
// exposes over ToolSearchConfig and per-tool defer-loading: get,
// upsert, and updateToolDeferLoading, each returning a {success,
// data?, message?} result rather than a bare error, and each driving
// resolver cache invalidation on write.
package toolsearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/revittco/toolmux/internal/apperr"
	"github.com/revittco/toolmux/internal/resolve"
	"github.com/revittco/toolmux/internal/search"
	"github.com/revittco/toolmux/internal/store"
)

// Authorizer is the external collaborator consulted before any write
// touches the store (spec.md §4.H: "Authorization is provided by an
// external collaborator and consulted before the store is touched").
type Authorizer interface {
	// CanMutate reports whether callerID may mutate a namespace owned by
	// ownerID. A blank ownerID means the namespace is public.
	CanMutate(ctx context.Context, callerID, ownerID string) bool
}

// Result is the uniform RPC-shaped envelope every method returns.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func ok(data any) Result         { return Result{Success: true, Data: data} }
func fail(message string) Result { return Result{Success: false, Message: message} }

// Service implements the tool-search config CRUD surface.
type Service struct {
	store    store.Store
	resolver *resolve.Resolver
	authz    Authorizer
}

// NewService builds a Service. resolver may be nil if cache
// invalidation is not wired (e.g. in a batch/import context); authz
// may be nil to allow every caller (single-tenant deployments).
func NewService(s store.Store, resolver *resolve.Resolver, authz Authorizer) *Service {
	return &Service{store: s, resolver: resolver, authz: authz}
}

// Get fetches the ToolSearchConfig for a namespace. A missing row is
// not an error: {success: true, data: nil}.
func (svc *Service) Get(ctx context.Context, namespaceUUID string) Result {
	cfg, err := svc.store.FindToolSearchConfig(ctx, namespaceUUID)
	if errors.Is(err, store.ErrNotFound) {
		return ok(nil)
	}
	if err != nil {
		return fail(err.Error())
	}
	return ok(cfg)
}

// UpsertParams is the validated input to Upsert.
type UpsertParams struct {
	NamespaceUUID  string
	MaxResults     int
	ProviderConfig []byte
}

// Upsert creates or updates the ToolSearchConfig for a namespace.
// providerConfig is validated against the namespace's default search
// method before it is stored — an out-of-range tuning parameter
// reaches the provider verbatim otherwise. Store errors (e.g. an FK
// violation on an unknown namespace) are re-raised rather than wrapped
// in a failure Result, per spec.md §4.H.
func (svc *Service) Upsert(ctx context.Context, p UpsertParams) (Result, error) {
	if p.MaxResults < 1 || p.MaxResults > 20 {
		return fail("maxResults must be between 1 and 20"), nil
	}

	ns, err := svc.store.FindNamespace(ctx, p.NamespaceUUID)
	if errors.Is(err, store.ErrNotFound) {
		return fail("Namespace not found"), nil
	}
	if err != nil {
		return fail(err.Error()), nil
	}

	if err := validateProviderConfig(ns.DefaultSearchMethod, p.ProviderConfig); err != nil {
		return fail(err.Error()), nil
	}

	cfg := &store.ToolSearchConfig{
		NamespaceUUID:  p.NamespaceUUID,
		MaxResults:     p.MaxResults,
		ProviderConfig: p.ProviderConfig,
	}
	if err := svc.store.UpsertToolSearchConfig(ctx, cfg); err != nil {
		return Result{}, err
	}
	svc.invalidateNamespace(ctx, p.NamespaceUUID)
	return ok(cfg), nil
}

// validateProviderConfig rejects out-of-range BM25/EMBEDDINGS tuning
// parameters before they reach the store: BM25 k1 ∈ [0,3] and
// b ∈ [0,1]; EMBEDDINGS similarity_threshold ∈ [0,1]. An unset
// (zero-value) field falls back to the provider's own default and is
// never rejected. REGEX and NONE carry no tunable provider config.
func validateProviderConfig(method store.SearchMethod, raw json.RawMessage) error {
	if len(raw) == 0 {
		return nil
	}
	switch method {
	case store.SearchBM25:
		var cfg search.BM25Config
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return fmt.Errorf("invalid BM25 provider config: %w", err)
		}
		if cfg.K1 < 0 || cfg.K1 > 3 {
			return fmt.Errorf("BM25 k1 must be between 0 and 3")
		}
		if cfg.B < 0 || cfg.B > 1 {
			return fmt.Errorf("BM25 b must be between 0 and 1")
		}
	case store.SearchEmbeddings:
		var cfg search.EmbeddingsConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return fmt.Errorf("invalid EMBEDDINGS provider config: %w", err)
		}
		if cfg.SimilarityThreshold < 0 || cfg.SimilarityThreshold > 1 {
			return fmt.Errorf("EMBEDDINGS similarity_threshold must be between 0 and 1")
		}
	}
	return nil
}

// UpdateToolDeferLoadingParams is the validated input to UpdateToolDeferLoading.
type UpdateToolDeferLoadingParams struct {
	CallerID      string
	NamespaceUUID string
	ToolUUID      string
	ServerUUID    string
	DeferLoading  store.DeferLoading
}

// UpdateToolDeferLoading changes one tool mapping's per-tool
// defer-loading override, after confirming the namespace exists, the
// tool mapping belongs to it, and the caller is authorized.
func (svc *Service) UpdateToolDeferLoading(ctx context.Context, p UpdateToolDeferLoadingParams) Result {
	switch p.DeferLoading {
	case store.DeferInherit, store.DeferEnabled, store.DeferDisabled:
	default:
		return fail("deferLoading must be ENABLED, DISABLED, or INHERIT")
	}

	ns, err := svc.store.FindNamespace(ctx, p.NamespaceUUID)
	if errors.Is(err, store.ErrNotFound) {
		return fail("Namespace not found")
	}
	if err != nil {
		return fail(err.Error())
	}

	if svc.authz != nil && ns.OwnerID != "" && !svc.authz.CanMutate(ctx, p.CallerID, ns.OwnerID) {
		return fail("Access denied")
	}

	if _, err := svc.store.FindToolMappingByUUIDs(ctx, p.NamespaceUUID, p.ToolUUID, p.ServerUUID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fail("Tool not found in namespace")
		}
		return fail(err.Error())
	}

	if err := svc.store.UpdateToolDeferLoading(ctx, p.NamespaceUUID, p.ToolUUID, p.ServerUUID, p.DeferLoading); err != nil {
		if appErr, isApp := apperr.As(err); isApp {
			return fail(appErr.Message)
		}
		return fail(err.Error())
	}

	svc.invalidateNamespace(ctx, p.NamespaceUUID)
	return Result{Success: true}
}

// invalidateNamespace drops the resolver's cached entry for every
// endpoint bound to namespaceUUID, per spec.md §4.G's invalidation
// contract. Failures are swallowed: a stale cache entry self-heals at
// its TTL, and the write itself already succeeded.
func (svc *Service) invalidateNamespace(ctx context.Context, namespaceUUID string) {
	if svc.resolver == nil {
		return
	}
	endpoints, err := svc.store.EndpointsByNamespace(ctx, namespaceUUID)
	if err != nil {
		return
	}
	for _, ep := range endpoints {
		svc.resolver.Invalidate(ep.UUID)
	}
}
