package config

import (
	"context"
	"log/slog"

	"github.com/revittco/toolmux/internal/store"
)

// SeedDefaultNamespace creates a "default" namespace on first run, so a
// fresh database is immediately usable without requiring a seed file.
func SeedDefaultNamespace(ctx context.Context, s store.Store) error {
	existing, err := s.ListNamespaces(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	ns := &store.Namespace{
		Name:                  "default",
		DefaultSearchMethod:   store.SearchNone,
		DefaultToolVisibility: store.VisibilityAll,
	}
	if err := s.CreateNamespace(ctx, ns); err != nil {
		return err
	}
	slog.Info("seeded default namespace", "uuid", ns.UUID)
	return nil
}
