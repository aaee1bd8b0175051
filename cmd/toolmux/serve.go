package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/revittco/toolmux/internal/audit"
	"github.com/revittco/toolmux/internal/config"
	"github.com/revittco/toolmux/internal/downstream"
	"github.com/revittco/toolmux/internal/gateway"
	"github.com/revittco/toolmux/internal/resolve"
	"github.com/revittco/toolmux/internal/search"
	"github.com/revittco/toolmux/internal/store/sqlite"
)

// cmdServe runs one gateway process bound to a single namespace/endpoint
// pair over stdio, per spec.md's one-process-per-endpoint transport model.
func cmdServe(args []string) error {
	ctx, cancel := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM,
	)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyFlags(cfg, args)

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	db, err := sqlite.Open(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close() //nolint:errcheck

	if err := config.SeedDefaultNamespace(ctx, db); err != nil {
		return fmt.Errorf("seed default namespace: %w", err)
	}

	if cfg.ConfigFile != "" {
		if _, err := os.Stat(cfg.ConfigFile); err == nil {
			fileCfg, err := config.LoadFile(cfg.ConfigFile)
			if err != nil {
				return fmt.Errorf("load config file: %w", err)
			}
			if err := config.Apply(ctx, db, fileCfg); err != nil {
				return fmt.Errorf("apply config: %w", err)
			}
			logger.Info("loaded config", "file", cfg.ConfigFile)
		}
	}

	ns, err := db.GetNamespaceByName(ctx, cfg.NamespaceName)
	if err != nil {
		return fmt.Errorf("namespace %q not found: %w", cfg.NamespaceName, err)
	}

	endpointUUID, err := resolveEndpointUUID(ctx, db, ns.UUID, cfg.EndpointName)
	if err != nil {
		return err
	}

	resolver := resolve.NewResolver(db)
	svc := search.NewService(search.NewRegistry(), logger)
	manager := downstream.NewManager(db)
	defer manager.Shutdown(ctx) //nolint:errcheck

	auditor := audit.NewLogger(logger)
	handler := gateway.NewHandler(db, resolver, svc, manager, auditor, ns.UUID, endpointUUID, logger)
	gw := gateway.NewServer(handler, logger)

	logger.Info("starting toolmux gateway", "namespace", ns.Name, "endpoint", cfg.EndpointName)
	return gw.RunStdio(ctx)
}

// resolveEndpointUUID looks up the named endpoint within ns, or returns
// an empty UUID if none was requested: Handler treats that as "no
// endpoint bound", applying namespace defaults unmodified.
func resolveEndpointUUID(ctx context.Context, db *sqlite.DB, namespaceUUID, name string) (string, error) {
	if name == "" {
		return "", nil
	}
	endpoints, err := db.EndpointsByNamespace(ctx, namespaceUUID)
	if err != nil {
		return "", fmt.Errorf("list endpoints: %w", err)
	}
	for _, ep := range endpoints {
		if ep.Name == name {
			return ep.UUID, nil
		}
	}
	return "", fmt.Errorf("endpoint %q not found in namespace", name)
}

// applyFlags parses --namespace=X and --endpoint=X flags from the args list.
func applyFlags(cfg *Config, args []string) {
	for _, arg := range args {
		if v, ok := flagValue(arg, "--namespace="); ok {
			cfg.NamespaceName = v
		}
		if v, ok := flagValue(arg, "--endpoint="); ok {
			cfg.EndpointName = v
		}
	}
}

func flagValue(arg, prefix string) (string, bool) {
	if len(arg) > len(prefix) && arg[:len(prefix)] == prefix {
		return arg[len(prefix):], true
	}
	return "", false
}
