package resolve

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/revittco/toolmux/internal/store"
)

type fakeStore struct {
	store.Store // embed nil: only the methods below are exercised by the resolver

	mu          sync.Mutex
	namespace   *store.Namespace
	endpoint    *store.Endpoint
	overrides   map[string]bool
	searchCfg   *store.ToolSearchConfig
	findNSCalls int32
	delay       time.Duration
	failNS      bool
}

func (f *fakeStore) FindNamespace(ctx context.Context, uuid string) (*store.Namespace, error) {
	atomic.AddInt32(&f.findNSCalls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.failNS {
		return nil, store.ErrNotFound
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.namespace, nil
}

func (f *fakeStore) FindEndpoint(ctx context.Context, uuid string) (*store.Endpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.endpoint, nil
}

func (f *fakeStore) FindToolDeferLoadingOverrides(ctx context.Context, namespaceUUID string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.overrides, nil
}

func (f *fakeStore) FindToolSearchConfig(ctx context.Context, namespaceUUID string) (*store.ToolSearchConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.searchCfg == nil {
		return nil, store.ErrNotFound
	}
	return f.searchCfg, nil
}

func TestResolver_CachesAfterFirstFetch(t *testing.T) {
	fs := &fakeStore{
		namespace: &store.Namespace{UUID: "ns-1", DefaultSearchMethod: store.SearchBM25, DefaultToolVisibility: store.VisibilityAll},
		endpoint:  &store.Endpoint{UUID: "ep-1", NamespaceUUID: "ns-1"},
	}
	r := NewResolver(fs)

	rc1 := r.GetResolvedConfig(context.Background(), "ns-1", "ep-1")
	rc2 := r.GetResolvedConfig(context.Background(), "ns-1", "ep-1")

	if rc1.SearchMethod != rc2.SearchMethod {
		t.Fatal("expected identical resolved config across cached calls")
	}
	if atomic.LoadInt32(&fs.findNSCalls) != 1 {
		t.Errorf("expected 1 store fetch, got %d", fs.findNSCalls)
	}
}

func TestResolver_SingleFlightCoalescesConcurrentFetches(t *testing.T) {
	fs := &fakeStore{
		namespace: &store.Namespace{UUID: "ns-1", DefaultSearchMethod: store.SearchRegex},
		endpoint:  &store.Endpoint{UUID: "ep-1", NamespaceUUID: "ns-1"},
		delay:     20 * time.Millisecond,
	}
	r := NewResolver(fs)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.GetResolvedConfig(context.Background(), "ns-1", "ep-1")
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&fs.findNSCalls); got != 1 {
		t.Errorf("expected exactly 1 store fetch from concurrent callers, got %d", got)
	}
}

func TestResolver_MissingNamespace_FailSafeNotCached(t *testing.T) {
	fs := &fakeStore{failNS: true}
	r := NewResolver(fs)

	rc := r.GetResolvedConfig(context.Background(), "missing", "ep-1")
	if rc.SearchMethod != store.SearchNone {
		t.Errorf("expected fail-safe SearchMethod NONE, got %s", rc.SearchMethod)
	}

	// Recovery: namespace becomes available, retry must succeed and not
	// be poisoned by the earlier failed attempt.
	fs.failNS = false
	fs.namespace = &store.Namespace{UUID: "ns-1", DefaultSearchMethod: store.SearchBM25}
	rc2 := r.GetResolvedConfig(context.Background(), "ns-1", "ep-1")
	if rc2.SearchMethod != store.SearchBM25 {
		t.Errorf("expected recovered SearchMethod BM25, got %s", rc2.SearchMethod)
	}
}

func TestResolver_InvalidateForcesRefetch(t *testing.T) {
	fs := &fakeStore{
		namespace: &store.Namespace{UUID: "ns-1", DefaultSearchMethod: store.SearchBM25},
		endpoint:  &store.Endpoint{UUID: "ep-1", NamespaceUUID: "ns-1"},
	}
	r := NewResolver(fs)

	r.GetResolvedConfig(context.Background(), "ns-1", "ep-1")
	r.Invalidate("ep-1")
	r.GetResolvedConfig(context.Background(), "ns-1", "ep-1")

	if got := atomic.LoadInt32(&fs.findNSCalls); got != 2 {
		t.Errorf("expected 2 fetches after invalidate, got %d", got)
	}
}

func TestResolver_ClearDropsAllEntries(t *testing.T) {
	fs := &fakeStore{
		namespace: &store.Namespace{UUID: "ns-1", DefaultSearchMethod: store.SearchBM25},
		endpoint:  &store.Endpoint{UUID: "ep-1", NamespaceUUID: "ns-1"},
	}
	r := NewResolver(fs)

	r.GetResolvedConfig(context.Background(), "ns-1", "ep-1")
	r.Clear()
	r.GetResolvedConfig(context.Background(), "ns-1", "ep-1")

	if got := atomic.LoadInt32(&fs.findNSCalls); got != 2 {
		t.Errorf("expected 2 fetches after clear, got %d", got)
	}
}
