package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/revittco/toolmux/internal/store"
)

// Service wraps store.Store with request-level validation the sqlite
// layer doesn't enforce (cross-entity references, namespace-scoped
// uniqueness) and an Export that serializes the live store back into a
// FileConfig for backup or diffing against a checked-in seed file.
type Service struct {
	store store.Store
}

// NewService builds a config Service around s.
func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// CreateNamespace validates and creates a namespace.
func (svc *Service) CreateNamespace(ctx context.Context, n *store.Namespace) error {
	if n.Name == "" {
		return &ValidationError{Errors: []string{"name is required"}}
	}
	if err := validateSearchMethod(string(n.DefaultSearchMethod)); err != nil {
		return &ValidationError{Errors: []string{err.Error()}}
	}
	if err := validateToolVisibility(string(n.DefaultToolVisibility)); err != nil {
		return &ValidationError{Errors: []string{err.Error()}}
	}
	if existing, _ := svc.store.GetNamespaceByName(ctx, n.Name); existing != nil {
		return &ValidationError{Errors: []string{fmt.Sprintf("namespace %q already exists", n.Name)}}
	}
	return svc.store.CreateNamespace(ctx, n)
}

// UpdateNamespace validates and updates a namespace in place.
func (svc *Service) UpdateNamespace(ctx context.Context, n *store.Namespace) error {
	if err := validateSearchMethod(string(n.DefaultSearchMethod)); err != nil {
		return &ValidationError{Errors: []string{err.Error()}}
	}
	if err := validateToolVisibility(string(n.DefaultToolVisibility)); err != nil {
		return &ValidationError{Errors: []string{err.Error()}}
	}
	return svc.store.UpdateNamespace(ctx, n)
}

// CreateEndpoint validates the namespace reference and tri-state
// override fields before creating the endpoint.
func (svc *Service) CreateEndpoint(ctx context.Context, e *store.Endpoint) error {
	if err := svc.checkEndpoint(ctx, e); err != nil {
		return err
	}
	e.NormalizeOverrides()
	return svc.store.CreateEndpoint(ctx, e)
}

// UpdateEndpoint validates and updates an endpoint in place.
func (svc *Service) UpdateEndpoint(ctx context.Context, e *store.Endpoint) error {
	if err := svc.checkEndpoint(ctx, e); err != nil {
		return err
	}
	e.NormalizeOverrides()
	return svc.store.UpdateEndpoint(ctx, e)
}

func (svc *Service) checkEndpoint(ctx context.Context, e *store.Endpoint) error {
	if e.NamespaceUUID == "" {
		return &ValidationError{Errors: []string{"namespace_uuid is required"}}
	}
	if _, err := svc.store.FindNamespace(ctx, e.NamespaceUUID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &ValidationError{Errors: []string{fmt.Sprintf("unknown namespace %q", e.NamespaceUUID)}}
		}
		return err
	}
	var errs []string
	if err := validateTriState(string(e.OverrideDeferLoading), "INHERIT", "ENABLED", "DISABLED"); err != nil {
		errs = append(errs, "override_defer_loading: "+err.Error())
	}
	if err := validateTriState(string(e.OverrideSearchMethod), "INHERIT", "NONE", "REGEX", "BM25", "EMBEDDINGS"); err != nil {
		errs = append(errs, "override_search_method: "+err.Error())
	}
	if err := validateTriState(string(e.OverrideToolVisibility), "INHERIT", "ALL", "SEARCH_ONLY"); err != nil {
		errs = append(errs, "override_tool_visibility: "+err.Error())
	}
	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// CreateDownstreamServer validates the namespace reference, transport
// shape, and per-namespace name uniqueness before creating.
func (svc *Service) CreateDownstreamServer(ctx context.Context, d *store.DownstreamServer) error {
	if err := svc.checkDownstreamServer(ctx, d); err != nil {
		return err
	}
	if err := svc.checkServerNameUnique(ctx, d); err != nil {
		return err
	}
	return svc.store.CreateDownstreamServer(ctx, d)
}

// UpdateDownstreamServer validates and updates a downstream server in place.
func (svc *Service) UpdateDownstreamServer(ctx context.Context, d *store.DownstreamServer) error {
	if err := svc.checkDownstreamServer(ctx, d); err != nil {
		return err
	}
	if err := svc.checkServerNameUnique(ctx, d); err != nil {
		return err
	}
	return svc.store.UpdateDownstreamServer(ctx, d)
}

func (svc *Service) checkDownstreamServer(ctx context.Context, d *store.DownstreamServer) error {
	if d.Name == "" {
		return &ValidationError{Errors: []string{"name is required"}}
	}
	if _, err := svc.store.FindNamespace(ctx, d.NamespaceUUID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &ValidationError{Errors: []string{fmt.Sprintf("unknown namespace %q", d.NamespaceUUID)}}
		}
		return err
	}
	if err := validateTransport(d.Transport); err != nil {
		return &ValidationError{Errors: []string{err.Error()}}
	}
	if d.Transport == "stdio" && d.Command == "" {
		return &ValidationError{Errors: []string{"stdio transport requires command"}}
	}
	if d.Transport == "http" && (d.URL == nil || *d.URL == "") {
		return &ValidationError{Errors: []string{"http transport requires url"}}
	}
	return nil
}

func (svc *Service) checkServerNameUnique(ctx context.Context, d *store.DownstreamServer) error {
	existing, err := svc.store.ListDownstreamServersByNamespace(ctx, d.NamespaceUUID)
	if err != nil {
		return err
	}
	for _, e := range existing {
		if e.Name == d.Name && e.UUID != d.UUID {
			return &ValidationError{Errors: []string{fmt.Sprintf("server %q already exists in this namespace", d.Name)}}
		}
	}
	return nil
}

// CreateToolMapping validates the namespace/server reference before creating.
func (svc *Service) CreateToolMapping(ctx context.Context, m *store.ToolMapping) error {
	if err := svc.checkToolMapping(ctx, m); err != nil {
		return err
	}
	return svc.store.CreateToolMapping(ctx, m)
}

// UpdateToolMapping validates and updates a tool mapping in place.
func (svc *Service) UpdateToolMapping(ctx context.Context, m *store.ToolMapping) error {
	if err := svc.checkToolMapping(ctx, m); err != nil {
		return err
	}
	return svc.store.UpdateToolMapping(ctx, m)
}

func (svc *Service) checkToolMapping(ctx context.Context, m *store.ToolMapping) error {
	if m.ToolName == "" {
		return &ValidationError{Errors: []string{"tool_name is required"}}
	}
	if _, err := svc.store.GetDownstreamServer(ctx, m.ServerUUID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &ValidationError{Errors: []string{fmt.Sprintf("unknown server %q", m.ServerUUID)}}
		}
		return err
	}
	var errs []string
	if err := validateEnum(string(m.Status), "status", "ACTIVE", "INACTIVE"); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateTriState(string(m.DeferLoading), "INHERIT", "ENABLED", "DISABLED"); err != nil {
		errs = append(errs, "defer_loading: "+err.Error())
	}
	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// Export serializes the live store back into a FileConfig, e.g. for
// backing up a namespace before a risky manual edit.
func (svc *Service) Export(ctx context.Context) (*FileConfig, error) {
	namespaces, err := svc.store.ListNamespaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	nsNameByUUID := make(map[string]string, len(namespaces))

	cfg := &FileConfig{}
	for _, ns := range namespaces {
		nsNameByUUID[ns.UUID] = ns.Name
		cfg.Namespaces = append(cfg.Namespaces, namespaceConfig{
			Name:                  ns.Name,
			OwnerID:               ns.OwnerID,
			DefaultDeferLoading:   ns.DefaultDeferLoading,
			DefaultSearchMethod:   string(ns.DefaultSearchMethod),
			DefaultToolVisibility: string(ns.DefaultToolVisibility),
		})

		if sc, err := svc.store.FindToolSearchConfig(ctx, ns.UUID); err == nil {
			cfg.Namespaces[len(cfg.Namespaces)-1].MaxResults = sc.MaxResults
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("find tool search config for %s: %w", ns.Name, err)
		}
	}

	endpoints, err := svc.store.ListEndpoints(ctx)
	if err != nil {
		return nil, fmt.Errorf("list endpoints: %w", err)
	}
	for _, ep := range endpoints {
		cfg.Endpoints = append(cfg.Endpoints, endpointConfig{
			Name:                   ep.Name,
			Namespace:              nsNameByUUID[ep.NamespaceUUID],
			OverrideDeferLoading:   string(ep.OverrideDeferLoading),
			OverrideSearchMethod:   string(ep.OverrideSearchMethod),
			OverrideToolVisibility: string(ep.OverrideToolVisibility),
		})
	}

	servers, err := svc.store.ListDownstreamServers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list downstream servers: %w", err)
	}
	serverNameByUUID := make(map[string]string, len(servers))
	for _, s := range servers {
		serverNameByUUID[s.UUID] = s.Name
		var args []string
		if len(s.Args) > 0 {
			_ = json.Unmarshal(s.Args, &args)
		}
		entry := downstreamServerConfig{
			Name:           s.Name,
			Namespace:      nsNameByUUID[s.NamespaceUUID],
			Transport:      s.Transport,
			Command:        s.Command,
			Args:           args,
			IdleTimeoutSec: s.IdleTimeoutSec,
			Disabled:       s.Disabled,
		}
		if s.URL != nil {
			entry.URL = *s.URL
		}
		cfg.DownstreamServers = append(cfg.DownstreamServers, entry)
	}

	for _, ns := range namespaces {
		mappings, err := svc.store.ListToolMappings(ctx, ns.UUID)
		if err != nil {
			return nil, fmt.Errorf("list tool mappings for %s: %w", ns.Name, err)
		}
		for _, m := range mappings {
			cfg.ToolMappings = append(cfg.ToolMappings, toolMappingConfig{
				Namespace:    ns.Name,
				Server:       serverNameByUUID[m.ServerUUID],
				ToolName:     m.ToolName,
				Status:       string(m.Status),
				DeferLoading: string(m.DeferLoading),
			})
		}
	}

	return cfg, nil
}
