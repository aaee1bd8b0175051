package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/revittco/toolmux/internal/cache"
	"github.com/revittco/toolmux/internal/resolve"
	"github.com/revittco/toolmux/internal/store"
)

// providerCacheSize bounds the number of live providers kept warm, per
// spec.md §5's suggested ~32-entry LRU budget.
const providerCacheSize = 32

// providerCacheTTL is generous: providers are cheap to keep warm. An
// entry older than this is dropped by the inner cache and a fresh
// provider is created on the next Search.
const providerCacheTTL = 30 * time.Minute

// Service is the single public operation the rest of the system calls:
// Search. It owns the provider cache (keyed by method + canonical
// config) and disposes providers removed by ClearCache/ClearMethod.
// Providers dropped by the cache's LRU capacity limit or TTL are not
// disposed.
type Service struct {
	registry *Registry
	cache    *providerCache
	logger   *slog.Logger
}

// NewService builds a Service around registry, logging disposal
// failures (which are swallowed, never surfaced) to logger.
func NewService(registry *Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry: registry,
		cache:    newProviderCache(providerCacheSize, logger),
		logger:   logger,
	}
}

// Search is the service's one public operation. For SearchNone it
// returns every available tool at a neutral score, bypassing the
// provider machinery entirely. Otherwise it obtains or lazily creates a
// cached provider and delegates to it verbatim.
func (s *Service) Search(
	ctx context.Context,
	query Query,
	availableTools []AvailableTool,
	resolved resolve.ResolvedConfig,
) ([]Result, error) {
	if query.MaxResults <= 0 {
		query.MaxResults = resolved.MaxResults
	}

	if resolved.SearchMethod == store.SearchNone {
		return noneResults(availableTools, query.MaxResults), nil
	}

	provider, err := s.cache.getOrCreate(ctx, s.registry, resolved.SearchMethod, resolved.ProviderConfig)
	if err != nil {
		return nil, fmt.Errorf("obtain provider for %s: %w", resolved.SearchMethod, err)
	}

	return provider.Search(ctx, query, availableTools)
}

// ClearCache disposes every cached provider.
func (s *Service) ClearCache() {
	s.cache.clear()
}

// ClearMethod disposes only the providers cached for one method.
func (s *Service) ClearMethod(method store.SearchMethod) {
	s.cache.clearMethod(method)
}

func noneResults(availableTools []AvailableTool, maxResults int) []Result {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	n := maxResults
	if n > len(availableTools) {
		n = len(availableTools)
	}
	out := make([]Result, n)
	for i := 0; i < n; i++ {
		out[i] = Result{
			Tool:        availableTools[i].Tool,
			ServerUUID:  availableTools[i].ServerUUID,
			Score:       0.5,
			MatchReason: "Search disabled (method: NONE)",
		}
	}
	return out
}

// providerKey identifies a cached provider by method and canonical JSON
// of its config, matching spec.md §4.B's cache key.
type providerKey struct {
	method       store.SearchMethod
	canonicalCfg string
}

func canonicalJSON(config json.RawMessage) string {
	if len(config) == 0 {
		return "null"
	}
	var v any
	if err := json.Unmarshal(config, &v); err != nil {
		return string(config)
	}
	canon, err := json.Marshal(v)
	if err != nil {
		return string(config)
	}
	return string(canon)
}

// providerCache wraps the generic cache.Cache with dispose-on-clear,
// which the generic cache doesn't have; entries the inner cache evicts
// on its own (capacity or TTL) are not disposed and stay in the shadow
// map until the next clear. It keeps its own shadow map of
// live providers rather than reaching into cache.Cache's internals
// (InvalidateFunc's predicate runs under the cache's lock, so calling
// back into Get/Invalidate from inside it would deadlock) — this is a
// thin, single-caller wrapper rather than an extension of the shared
// generic cache's API.
type providerCache struct {
	inner  *cache.Cache[providerKey, Provider]
	mu     sync.Mutex
	known  map[providerKey]Provider
	logger *slog.Logger
}

func newProviderCache(size int, logger *slog.Logger) *providerCache {
	return &providerCache{
		inner:  cache.New[providerKey, Provider](size, providerCacheTTL),
		known:  make(map[providerKey]Provider),
		logger: logger,
	}
}

func (pc *providerCache) getOrCreate(
	ctx context.Context, registry *Registry, method store.SearchMethod, config json.RawMessage,
) (Provider, error) {
	key := providerKey{method: method, canonicalCfg: canonicalJSON(config)}

	p, err := pc.inner.GetOrLoad(key, func() (Provider, error) {
		np, err := registry.Create(method)
		if err != nil {
			return nil, err
		}
		if err := np.Initialize(ctx, config); err != nil {
			return nil, fmt.Errorf("initialize %s provider: %w", method, err)
		}
		return np, nil
	})
	if err != nil {
		return nil, err
	}

	pc.mu.Lock()
	pc.known[key] = p
	pc.mu.Unlock()
	return p, nil
}

// clear disposes every cached provider and empties the cache. Disposal
// errors are logged and swallowed, per spec.md §4.B.
func (pc *providerCache) clear() {
	pc.disposeAll(func(providerKey) bool { return true })
}

func (pc *providerCache) clearMethod(method store.SearchMethod) {
	pc.disposeAll(func(k providerKey) bool { return k.method == method })
}

func (pc *providerCache) disposeAll(predicate func(providerKey) bool) {
	pc.mu.Lock()
	var victims []providerKey
	for k := range pc.known {
		if predicate(k) {
			victims = append(victims, k)
		}
	}
	pc.mu.Unlock()

	for _, k := range victims {
		pc.mu.Lock()
		p, ok := pc.known[k]
		delete(pc.known, k)
		pc.mu.Unlock()

		pc.inner.Invalidate(k)

		if ok && p != nil {
			if err := p.Dispose(); err != nil {
				pc.logger.Warn("provider dispose failed", "error", err)
			}
		}
	}
}
