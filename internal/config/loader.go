// Package config loads the on-disk YAML seed file and exposes a
// validated CRUD Service in front of store.Store, covering
// namespace/endpoint/downstream-server/tool-mapping entities.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/revittco/toolmux/internal/store"
	"gopkg.in/yaml.v3"
)

// FileConfig represents the top-level toolmux.yaml structure.
type FileConfig struct {
	Namespaces        []namespaceConfig        `yaml:"namespaces"`
	Endpoints         []endpointConfig         `yaml:"endpoints"`
	DownstreamServers []downstreamServerConfig `yaml:"downstream_servers"`
	ToolMappings      []toolMappingConfig      `yaml:"tool_mappings,omitempty"`
}

type namespaceConfig struct {
	Name                  string `yaml:"name"`
	OwnerID               string `yaml:"owner_id,omitempty"`
	DefaultDeferLoading   bool   `yaml:"default_defer_loading"`
	DefaultSearchMethod   string `yaml:"default_search_method"`
	DefaultToolVisibility string `yaml:"default_tool_visibility"`
	MaxResults            int    `yaml:"max_results,omitempty"`
}

type endpointConfig struct {
	Name                   string `yaml:"name"`
	Namespace              string `yaml:"namespace"`
	OverrideDeferLoading   string `yaml:"override_defer_loading,omitempty"`
	OverrideSearchMethod   string `yaml:"override_search_method,omitempty"`
	OverrideToolVisibility string `yaml:"override_tool_visibility,omitempty"`
}

type downstreamServerConfig struct {
	Name           string   `yaml:"name"`
	Namespace      string   `yaml:"namespace"`
	Transport      string   `yaml:"transport"`
	Command        string   `yaml:"command,omitempty"`
	Args           []string `yaml:"args,omitempty"`
	URL            string   `yaml:"url,omitempty"`
	IdleTimeoutSec int      `yaml:"idle_timeout_sec"`
	Disabled       bool     `yaml:"disabled,omitempty"`
}

type toolMappingConfig struct {
	Namespace    string `yaml:"namespace"`
	Server       string `yaml:"server"`
	ToolName     string `yaml:"tool_name"`
	Status       string `yaml:"status,omitempty"`
	DeferLoading string `yaml:"defer_loading,omitempty"`
}

// LoadFile reads, parses, and validates a YAML config file.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates YAML config data.
func Parse(data []byte) (*FileConfig, error) {
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Apply upserts namespaces, endpoints, downstream servers, and tool
// mappings from cfg into the store in one transaction: namespaces
// first (endpoints and servers reference them by name), then the rest.
func Apply(ctx context.Context, s store.Store, cfg *FileConfig) error {
	return s.Tx(ctx, func(tx store.Store) error {
		nsByName, err := applyNamespaces(ctx, tx, cfg.Namespaces)
		if err != nil {
			return err
		}
		if err := applyEndpoints(ctx, tx, cfg.Endpoints, nsByName); err != nil {
			return err
		}
		serversByKey, err := applyDownstreamServers(ctx, tx, cfg.DownstreamServers, nsByName)
		if err != nil {
			return err
		}
		return applyToolMappings(ctx, tx, cfg.ToolMappings, nsByName, serversByKey)
	})
}

func applyNamespaces(ctx context.Context, tx store.Store, items []namespaceConfig) (map[string]string, error) {
	existing, err := tx.ListNamespaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	byName := make(map[string]store.Namespace, len(existing))
	for _, n := range existing {
		byName[n.Name] = n
	}

	out := make(map[string]string, len(items))
	for _, item := range items {
		ns := store.Namespace{
			Name:                  item.Name,
			OwnerID:               item.OwnerID,
			DefaultDeferLoading:   item.DefaultDeferLoading,
			DefaultSearchMethod:   store.SearchMethod(item.DefaultSearchMethod),
			DefaultToolVisibility: store.ToolVisibility(item.DefaultToolVisibility),
		}
		if found, ok := byName[item.Name]; ok {
			ns.UUID = found.UUID
			if err := tx.UpdateNamespace(ctx, &ns); err != nil {
				return nil, fmt.Errorf("update namespace %s: %w", item.Name, err)
			}
		} else if err := tx.CreateNamespace(ctx, &ns); err != nil {
			return nil, fmt.Errorf("create namespace %s: %w", item.Name, err)
		}
		out[item.Name] = ns.UUID

		if item.MaxResults > 0 {
			cfg := &store.ToolSearchConfig{NamespaceUUID: ns.UUID, MaxResults: item.MaxResults}
			if err := tx.UpsertToolSearchConfig(ctx, cfg); err != nil {
				return nil, fmt.Errorf("upsert tool search config for %s: %w", item.Name, err)
			}
		}
	}
	return out, nil
}

func applyEndpoints(ctx context.Context, tx store.Store, items []endpointConfig, nsByName map[string]string) error {
	existing, err := tx.ListEndpoints(ctx)
	if err != nil {
		return fmt.Errorf("list endpoints: %w", err)
	}
	byName := make(map[string]store.Endpoint, len(existing))
	for _, e := range existing {
		byName[e.Name] = e
	}

	for _, item := range items {
		nsUUID, ok := nsByName[item.Namespace]
		if !ok {
			return fmt.Errorf("endpoint %s: unknown namespace %q", item.Name, item.Namespace)
		}
		ep := store.Endpoint{
			Name:                   item.Name,
			NamespaceUUID:          nsUUID,
			OverrideDeferLoading:   store.DeferLoading(item.OverrideDeferLoading),
			OverrideSearchMethod:   store.SearchMethod(item.OverrideSearchMethod),
			OverrideToolVisibility: store.ToolVisibility(item.OverrideToolVisibility),
		}
		if found, ok := byName[item.Name]; ok {
			ep.UUID = found.UUID
			if err := tx.UpdateEndpoint(ctx, &ep); err != nil {
				return fmt.Errorf("update endpoint %s: %w", item.Name, err)
			}
		} else if err := tx.CreateEndpoint(ctx, &ep); err != nil {
			return fmt.Errorf("create endpoint %s: %w", item.Name, err)
		}
	}
	return nil
}

type serverKey struct{ namespace, name string }

func applyDownstreamServers(ctx context.Context, tx store.Store, items []downstreamServerConfig, nsByName map[string]string) (map[serverKey]string, error) {
	out := make(map[serverKey]string, len(items))

	for _, item := range items {
		nsUUID, ok := nsByName[item.Namespace]
		if !ok {
			return nil, fmt.Errorf("downstream server %s: unknown namespace %q", item.Name, item.Namespace)
		}
		existing, err := tx.ListDownstreamServersByNamespace(ctx, nsUUID)
		if err != nil {
			return nil, fmt.Errorf("list servers for %s: %w", item.Namespace, err)
		}
		var found *store.DownstreamServer
		for i := range existing {
			if existing[i].Name == item.Name {
				found = &existing[i]
				break
			}
		}

		args, _ := json.Marshal(item.Args)
		srv := store.DownstreamServer{
			NamespaceUUID:  nsUUID,
			Name:           item.Name,
			Transport:      item.Transport,
			Command:        item.Command,
			Args:           args,
			IdleTimeoutSec: item.IdleTimeoutSec,
			Disabled:       item.Disabled,
		}
		if item.URL != "" {
			srv.URL = &item.URL
		}

		if found != nil {
			srv.UUID = found.UUID
			if err := tx.UpdateDownstreamServer(ctx, &srv); err != nil {
				return nil, fmt.Errorf("update server %s: %w", item.Name, err)
			}
		} else if err := tx.CreateDownstreamServer(ctx, &srv); err != nil {
			return nil, fmt.Errorf("create server %s: %w", item.Name, err)
		}
		out[serverKey{item.Namespace, item.Name}] = srv.UUID
	}
	return out, nil
}

func applyToolMappings(ctx context.Context, tx store.Store, items []toolMappingConfig, nsByName map[string]string, serversByKey map[serverKey]string) error {
	for _, item := range items {
		nsUUID, ok := nsByName[item.Namespace]
		if !ok {
			return fmt.Errorf("tool mapping %s: unknown namespace %q", item.ToolName, item.Namespace)
		}
		serverUUID, ok := serversByKey[serverKey{item.Namespace, item.Server}]
		if !ok {
			return fmt.Errorf("tool mapping %s: unknown server %q in namespace %q", item.ToolName, item.Server, item.Namespace)
		}

		existing, err := tx.GetToolMapping(ctx, nsUUID, serverUUID, item.ToolName)
		if err != nil && err != store.ErrNotFound {
			return fmt.Errorf("get tool mapping %s: %w", item.ToolName, err)
		}

		m := store.ToolMapping{
			NamespaceUUID: nsUUID,
			ServerUUID:    serverUUID,
			ServerName:    item.Server,
			ToolName:      item.ToolName,
			Status:        store.ToolMappingStatus(item.Status),
			DeferLoading:  store.DeferLoading(item.DeferLoading),
		}
		if m.DeferLoading == "" {
			m.DeferLoading = store.DeferInherit
		}
		if existing != nil {
			m.UUID = existing.UUID
			if err := tx.UpdateToolMapping(ctx, &m); err != nil {
				return fmt.Errorf("update tool mapping %s: %w", item.ToolName, err)
			}
			continue
		}
		if err := tx.CreateToolMapping(ctx, &m); err != nil {
			return fmt.Errorf("create tool mapping %s: %w", item.ToolName, err)
		}
	}
	return nil
}
