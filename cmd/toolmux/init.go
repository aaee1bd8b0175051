package main

import (
	"context"
	"fmt"
	"os"

	"github.com/revittco/toolmux/internal/config"
	"github.com/revittco/toolmux/internal/store/sqlite"
)

// cmdInit creates the sqlite database and a starter toolmux.yaml if
// neither already exists.
func cmdInit() error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := sqlite.Open(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("create database: %w", err)
	}
	defer db.Close() //nolint:errcheck

	if err := config.SeedDefaultNamespace(ctx, db); err != nil {
		return fmt.Errorf("seed default namespace: %w", err)
	}
	fmt.Printf("Database ready: %s\n", cfg.DBDSN)

	if _, err := os.Stat(cfg.ConfigFile); os.IsNotExist(err) {
		starter := `# toolmux seed config
namespaces:
  - name: default
    default_search_method: NONE
    default_tool_visibility: ALL
endpoints: []
downstream_servers: []
tool_mappings: []
`
		if err := os.WriteFile(cfg.ConfigFile, []byte(starter), 0o644); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("Config file created: %s\n", cfg.ConfigFile)
	} else {
		fmt.Printf("Config file already exists: %s\n", cfg.ConfigFile)
	}

	return nil
}
