package main

import (
	"context"
	"fmt"
	"os"

	"github.com/revittco/toolmux/internal/config"
	"github.com/revittco/toolmux/internal/store/sqlite"
	"gopkg.in/yaml.v3"
)

// cmdExport serializes the live store back to YAML, printing to stdout
// or writing to the path given by --out=.
func cmdExport(args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var outPath string
	for _, arg := range args {
		if v, ok := flagValue(arg, "--out="); ok {
			outPath = v
		}
	}

	db, err := sqlite.Open(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close() //nolint:errcheck

	svc := config.NewService(db)
	fileCfg, err := svc.Export(ctx)
	if err != nil {
		return fmt.Errorf("export config: %w", err)
	}

	data, err := yaml.Marshal(fileCfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if outPath == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(outPath, data, 0o644)
}
