package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/revittco/toolmux/internal/store"
)

func (d *DB) FindToolSearchConfig(ctx context.Context, namespaceUUID string) (*store.ToolSearchConfig, error) {
	row := d.q.QueryRowContext(ctx, `
		SELECT namespace_uuid, max_results, provider_config, created_at, updated_at
		FROM tool_search_configs WHERE namespace_uuid = ?`, namespaceUUID)

	var c store.ToolSearchConfig
	var createdAt, updatedAt string
	var providerConfig sql.NullString
	err := row.Scan(&c.NamespaceUUID, &c.MaxResults, &providerConfig, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if providerConfig.Valid {
		c.ProviderConfig = json.RawMessage(providerConfig.String)
	}
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

// UpsertToolSearchConfig creates or replaces the one-per-namespace
// ToolSearchConfig row (invariant 1's uniqueness).
func (d *DB) UpsertToolSearchConfig(ctx context.Context, c *store.ToolSearchConfig) error {
	now := time.Now().UTC()
	existing, err := d.FindToolSearchConfig(ctx, c.NamespaceUUID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if existing != nil {
		c.CreatedAt = existing.CreatedAt
	} else {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	_, err = d.q.ExecContext(ctx, `
		INSERT INTO tool_search_configs (namespace_uuid, max_results, provider_config, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(namespace_uuid) DO UPDATE SET
			max_results = excluded.max_results,
			provider_config = excluded.provider_config,
			updated_at = excluded.updated_at`,
		c.NamespaceUUID, c.MaxResults, nullableJSON(c.ProviderConfig),
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
	)
	return mapConstraintError(err)
}
