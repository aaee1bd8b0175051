package toolsearch

import (
	"context"
	"testing"

	"github.com/revittco/toolmux/internal/store"
)

type fakeToolSearchStore struct {
	store.Store

	namespaces    map[string]*store.Namespace
	searchConfigs map[string]*store.ToolSearchConfig
	mappings      map[string]*store.ToolMapping // keyed by namespace+tool+server
	upsertCalls   int
	deferCalls    int
}

func newFakeStore() *fakeToolSearchStore {
	return &fakeToolSearchStore{
		namespaces:    map[string]*store.Namespace{},
		searchConfigs: map[string]*store.ToolSearchConfig{},
		mappings:      map[string]*store.ToolMapping{},
	}
}

func (f *fakeToolSearchStore) FindNamespace(ctx context.Context, uuid string) (*store.Namespace, error) {
	ns, ok := f.namespaces[uuid]
	if !ok {
		return nil, store.ErrNotFound
	}
	return ns, nil
}

func (f *fakeToolSearchStore) FindToolSearchConfig(ctx context.Context, namespaceUUID string) (*store.ToolSearchConfig, error) {
	cfg, ok := f.searchConfigs[namespaceUUID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cfg, nil
}

func (f *fakeToolSearchStore) UpsertToolSearchConfig(ctx context.Context, c *store.ToolSearchConfig) error {
	f.upsertCalls++
	f.searchConfigs[c.NamespaceUUID] = c
	return nil
}

func (f *fakeToolSearchStore) FindToolMappingByUUIDs(ctx context.Context, namespaceUUID, toolUUID, serverUUID string) (*store.ToolMapping, error) {
	m, ok := f.mappings[namespaceUUID+toolUUID+serverUUID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return m, nil
}

func (f *fakeToolSearchStore) UpdateToolDeferLoading(ctx context.Context, namespaceUUID, toolUUID, serverUUID string, deferLoading store.DeferLoading) error {
	f.deferCalls++
	return nil
}

func (f *fakeToolSearchStore) EndpointsByNamespace(ctx context.Context, namespaceUUID string) ([]store.Endpoint, error) {
	return nil, nil
}

func TestService_Get_MissingConfigReturnsSuccessWithNilData(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs, nil, nil)

	result := svc.Get(context.Background(), "ns-1")
	if !result.Success || result.Data != nil {
		t.Fatalf("expected success with nil data, got %+v", result)
	}
}

func TestService_Upsert_RejectsOutOfRangeMaxResults(t *testing.T) {
	fs := newFakeStore()
	fs.namespaces["ns-1"] = &store.Namespace{UUID: "ns-1", DefaultSearchMethod: store.SearchBM25}
	svc := NewService(fs, nil, nil)

	result, err := svc.Upsert(context.Background(), UpsertParams{NamespaceUUID: "ns-1", MaxResults: 50})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure for maxResults out of [1,20]")
	}
	if fs.upsertCalls != 0 {
		t.Fatal("expected store not to be touched on validation failure")
	}
}

func TestService_Upsert_Succeeds(t *testing.T) {
	fs := newFakeStore()
	fs.namespaces["ns-1"] = &store.Namespace{UUID: "ns-1", DefaultSearchMethod: store.SearchBM25}
	svc := NewService(fs, nil, nil)

	result, err := svc.Upsert(context.Background(), UpsertParams{NamespaceUUID: "ns-1", MaxResults: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || fs.upsertCalls != 1 {
		t.Fatalf("expected successful upsert, got %+v (calls=%d)", result, fs.upsertCalls)
	}
}

func TestService_Upsert_NamespaceNotFound(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs, nil, nil)

	result, err := svc.Upsert(context.Background(), UpsertParams{NamespaceUUID: "missing", MaxResults: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success || result.Message != "Namespace not found" {
		t.Fatalf("expected Namespace not found, got %+v", result)
	}
}

func TestService_Upsert_RejectsOutOfRangeBM25K1(t *testing.T) {
	fs := newFakeStore()
	fs.namespaces["ns-1"] = &store.Namespace{UUID: "ns-1", DefaultSearchMethod: store.SearchBM25}
	svc := NewService(fs, nil, nil)

	result, err := svc.Upsert(context.Background(), UpsertParams{
		NamespaceUUID: "ns-1", MaxResults: 10, ProviderConfig: []byte(`{"k1": 5}`),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure for BM25 k1 out of [0,3]")
	}
	if fs.upsertCalls != 0 {
		t.Fatal("expected store not to be touched on validation failure")
	}
}

func TestService_Upsert_RejectsOutOfRangeBM25B(t *testing.T) {
	fs := newFakeStore()
	fs.namespaces["ns-1"] = &store.Namespace{UUID: "ns-1", DefaultSearchMethod: store.SearchBM25}
	svc := NewService(fs, nil, nil)

	result, err := svc.Upsert(context.Background(), UpsertParams{
		NamespaceUUID: "ns-1", MaxResults: 10, ProviderConfig: []byte(`{"b": -0.5}`),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure for BM25 b out of [0,1]")
	}
	if fs.upsertCalls != 0 {
		t.Fatal("expected store not to be touched on validation failure")
	}
}

func TestService_Upsert_RejectsOutOfRangeEmbeddingsSimilarityThreshold(t *testing.T) {
	fs := newFakeStore()
	fs.namespaces["ns-1"] = &store.Namespace{UUID: "ns-1", DefaultSearchMethod: store.SearchEmbeddings}
	svc := NewService(fs, nil, nil)

	result, err := svc.Upsert(context.Background(), UpsertParams{
		NamespaceUUID: "ns-1", MaxResults: 10, ProviderConfig: []byte(`{"similarity_threshold": 1.5}`),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure for similarity_threshold out of [0,1]")
	}
	if fs.upsertCalls != 0 {
		t.Fatal("expected store not to be touched on validation failure")
	}
}

func TestService_Upsert_AcceptsInRangeBM25Config(t *testing.T) {
	fs := newFakeStore()
	fs.namespaces["ns-1"] = &store.Namespace{UUID: "ns-1", DefaultSearchMethod: store.SearchBM25}
	svc := NewService(fs, nil, nil)

	result, err := svc.Upsert(context.Background(), UpsertParams{
		NamespaceUUID: "ns-1", MaxResults: 10, ProviderConfig: []byte(`{"k1": 1.2, "b": 0.75}`),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || fs.upsertCalls != 1 {
		t.Fatalf("expected successful upsert, got %+v (calls=%d)", result, fs.upsertCalls)
	}
}

func TestService_UpdateToolDeferLoading_NamespaceNotFound(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs, nil, nil)

	result := svc.UpdateToolDeferLoading(context.Background(), UpdateToolDeferLoadingParams{
		NamespaceUUID: "missing", ToolUUID: "t1", ServerUUID: "s1", DeferLoading: store.DeferEnabled,
	})
	if result.Success || result.Message != "Namespace not found" {
		t.Fatalf("expected Namespace not found, got %+v", result)
	}
}

func TestService_UpdateToolDeferLoading_ToolNotFound(t *testing.T) {
	fs := newFakeStore()
	fs.namespaces["ns-1"] = &store.Namespace{UUID: "ns-1"}
	svc := NewService(fs, nil, nil)

	result := svc.UpdateToolDeferLoading(context.Background(), UpdateToolDeferLoadingParams{
		NamespaceUUID: "ns-1", ToolUUID: "missing-tool", ServerUUID: "s1", DeferLoading: store.DeferEnabled,
	})
	if result.Success || result.Message != "Tool not found in namespace" {
		t.Fatalf("expected Tool not found in namespace, got %+v", result)
	}
}

type denyAllAuthorizer struct{}

func (denyAllAuthorizer) CanMutate(ctx context.Context, callerID, ownerID string) bool { return false }

func TestService_UpdateToolDeferLoading_AccessDeniedForOwnedNamespace(t *testing.T) {
	fs := newFakeStore()
	fs.namespaces["ns-1"] = &store.Namespace{UUID: "ns-1", OwnerID: "alice"}
	svc := NewService(fs, nil, denyAllAuthorizer{})

	result := svc.UpdateToolDeferLoading(context.Background(), UpdateToolDeferLoadingParams{
		CallerID: "bob", NamespaceUUID: "ns-1", ToolUUID: "t1", ServerUUID: "s1", DeferLoading: store.DeferEnabled,
	})
	if result.Success || result.Message != "Access denied" {
		t.Fatalf("expected Access denied, got %+v", result)
	}
}

func TestService_UpdateToolDeferLoading_PublicNamespaceAcceptsAnyCaller(t *testing.T) {
	fs := newFakeStore()
	fs.namespaces["ns-1"] = &store.Namespace{UUID: "ns-1"} // no OwnerID: public
	fs.mappings["ns-1t1s1"] = &store.ToolMapping{UUID: "t1", NamespaceUUID: "ns-1", ServerUUID: "s1"}
	svc := NewService(fs, nil, denyAllAuthorizer{})

	result := svc.UpdateToolDeferLoading(context.Background(), UpdateToolDeferLoadingParams{
		CallerID: "anyone", NamespaceUUID: "ns-1", ToolUUID: "t1", ServerUUID: "s1", DeferLoading: store.DeferDisabled,
	})
	if !result.Success || fs.deferCalls != 1 {
		t.Fatalf("expected public namespace to accept the update, got %+v (calls=%d)", result, fs.deferCalls)
	}
}
