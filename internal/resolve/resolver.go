package resolve

import (
	"context"
	"fmt"
	"time"

	"github.com/revittco/toolmux/internal/cache"
	"github.com/revittco/toolmux/internal/store"
)

// resolverCacheSize bounds the resolver cache at roughly one entry per
// endpoint for a reasonably sized deployment; entries beyond that LRU-evict.
const resolverCacheSize = 4096

// resolverCacheTTL is generous: cache entries are invalidated explicitly
// on every write that affects them, so the TTL only guards against a
// missed invalidation signal rather than driving normal freshness.
const resolverCacheTTL = 1 * time.Hour

// Resolver builds ResolvedConfig snapshots on demand and caches them
// keyed by endpoint UUID, coalescing concurrent fetches for the same
// endpoint into one store round-trip via cache.Cache's GetOrLoad.
type Resolver struct {
	store store.Store
	cache *cache.Cache[string, ResolvedConfig]
}

// NewResolver constructs a Resolver backed by s.
func NewResolver(s store.Store) *Resolver {
	return &Resolver{
		store: s,
		cache: cache.New[string, ResolvedConfig](resolverCacheSize, resolverCacheTTL),
	}
}

// GetResolvedConfig returns the cached ResolvedConfig for endpointUUID,
// or single-flight-fetches and resolves it. On fetch failure (missing
// namespace, store error) it returns the fail-safe config and does not
// cache it, so a retry after recovery can succeed.
func (r *Resolver) GetResolvedConfig(ctx context.Context, namespaceUUID, endpointUUID string) ResolvedConfig {
	cfg, err := r.cache.GetOrLoad(endpointUUID, func() (ResolvedConfig, error) {
		return r.fetchAndResolve(ctx, namespaceUUID, endpointUUID)
	})
	if err != nil {
		return FailSafe()
	}
	return cfg
}

func (r *Resolver) fetchAndResolve(ctx context.Context, namespaceUUID, endpointUUID string) (ResolvedConfig, error) {
	ns, err := r.store.FindNamespace(ctx, namespaceUUID)
	if err != nil {
		return ResolvedConfig{}, fmt.Errorf("find namespace %s: %w", namespaceUUID, err)
	}

	var endpoint *store.Endpoint
	if endpointUUID != "" {
		endpoint, err = r.store.FindEndpoint(ctx, endpointUUID)
		if err != nil {
			return ResolvedConfig{}, fmt.Errorf("find endpoint %s: %w", endpointUUID, err)
		}
	}

	overrides, err := r.store.FindToolDeferLoadingOverrides(ctx, namespaceUUID)
	if err != nil {
		return ResolvedConfig{}, fmt.Errorf("find tool overrides for namespace %s: %w", namespaceUUID, err)
	}

	searchCfg, err := r.store.FindToolSearchConfig(ctx, namespaceUUID)
	if err != nil && err != store.ErrNotFound {
		return ResolvedConfig{}, fmt.Errorf("find tool search config for namespace %s: %w", namespaceUUID, err)
	}

	return Resolve(ns, endpoint, overrides, searchCfg), nil
}

// Invalidate drops the cached entry for one endpoint. Write operations
// on Namespace, Endpoint, or ToolMapping must call this for every
// affected endpoint UUID.
func (r *Resolver) Invalidate(endpointUUID string) {
	r.cache.Invalidate(endpointUUID)
}

// Clear drops every cached entry.
func (r *Resolver) Clear() {
	r.cache.Flush()
}
