package main

import (
	"context"
	"fmt"

	"github.com/revittco/toolmux/internal/store/sqlite"
)

// cmdStatus prints a one-shot summary of the configured store.
func cmdStatus() error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := sqlite.Open(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close() //nolint:errcheck

	namespaces, err := db.ListNamespaces(ctx)
	if err != nil {
		return fmt.Errorf("list namespaces: %w", err)
	}

	fmt.Printf("toolmux status (db: %s)\n", cfg.DBDSN)
	for _, ns := range namespaces {
		servers, err := db.ListDownstreamServersByNamespace(ctx, ns.UUID)
		if err != nil {
			return fmt.Errorf("list servers for %s: %w", ns.Name, err)
		}
		endpoints, err := db.EndpointsByNamespace(ctx, ns.UUID)
		if err != nil {
			return fmt.Errorf("list endpoints for %s: %w", ns.Name, err)
		}
		mappings, err := db.ListToolMappings(ctx, ns.UUID)
		if err != nil {
			return fmt.Errorf("list tool mappings for %s: %w", ns.Name, err)
		}
		fmt.Printf("  namespace %-20s servers=%-3d endpoints=%-3d tool_mappings=%d\n",
			ns.Name, len(servers), len(endpoints), len(mappings))
	}
	return nil
}
