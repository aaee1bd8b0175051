package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/revittco/toolmux/internal/store"
	"github.com/revittco/toolmux/internal/toolname"
)

func (d *DB) CreateToolMapping(ctx context.Context, m *store.ToolMapping) error {
	if m.UUID == "" {
		m.UUID = uuid.NewString()
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	if m.Status == "" {
		m.Status = store.ToolActive
	}
	if m.DeferLoading == "" {
		m.DeferLoading = store.DeferInherit
	}

	_, err := d.q.ExecContext(ctx, `
		INSERT INTO tool_mappings
			(uuid, namespace_uuid, server_uuid, server_name, tool_name, status,
			 defer_loading, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.UUID, m.NamespaceUUID, m.ServerUUID, m.ServerName, m.ToolName,
		string(m.Status), string(m.DeferLoading), formatTime(m.CreatedAt), formatTime(m.UpdatedAt),
	)
	return mapConstraintError(err)
}

func (d *DB) GetToolMapping(ctx context.Context, namespaceUUID, serverUUID, toolName string) (*store.ToolMapping, error) {
	row := d.q.QueryRowContext(ctx, `
		SELECT uuid, namespace_uuid, server_uuid, server_name, tool_name, status,
		       defer_loading, created_at, updated_at
		FROM tool_mappings WHERE namespace_uuid = ? AND server_uuid = ? AND tool_name = ?`,
		namespaceUUID, serverUUID, toolName)
	return scanToolMapping(row)
}

func (d *DB) FindToolMappingByUUIDs(ctx context.Context, namespaceUUID, toolUUID, serverUUID string) (*store.ToolMapping, error) {
	row := d.q.QueryRowContext(ctx, `
		SELECT uuid, namespace_uuid, server_uuid, server_name, tool_name, status,
		       defer_loading, created_at, updated_at
		FROM tool_mappings WHERE namespace_uuid = ? AND uuid = ? AND server_uuid = ?`,
		namespaceUUID, toolUUID, serverUUID)
	return scanToolMapping(row)
}

func (d *DB) ListToolMappings(ctx context.Context, namespaceUUID string) ([]store.ToolMapping, error) {
	rows, err := d.q.QueryContext(ctx, `
		SELECT uuid, namespace_uuid, server_uuid, server_name, tool_name, status,
		       defer_loading, created_at, updated_at
		FROM tool_mappings WHERE namespace_uuid = ? ORDER BY server_name, tool_name`,
		namespaceUUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.ToolMapping
	for rows.Next() {
		m, err := scanToolMappingRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (d *DB) UpdateToolMapping(ctx context.Context, m *store.ToolMapping) error {
	m.UpdatedAt = time.Now().UTC()
	res, err := d.q.ExecContext(ctx, `
		UPDATE tool_mappings
		SET server_name = ?, tool_name = ?, status = ?, defer_loading = ?, updated_at = ?
		WHERE uuid = ?`,
		m.ServerName, m.ToolName, string(m.Status), string(m.DeferLoading),
		formatTime(m.UpdatedAt), m.UUID,
	)
	if err != nil {
		return mapConstraintError(err)
	}
	return checkRowsAffected(res)
}

// UpdateToolDeferLoading is the narrow write §4.H's updateToolDeferLoading
// RPC uses: change only the per-tool defer_loading tri-state.
func (d *DB) UpdateToolDeferLoading(ctx context.Context, namespaceUUID, toolUUID, serverUUID string, deferLoading store.DeferLoading) error {
	res, err := d.q.ExecContext(ctx, `
		UPDATE tool_mappings
		SET defer_loading = ?, updated_at = ?
		WHERE namespace_uuid = ? AND uuid = ? AND server_uuid = ?`,
		string(deferLoading), formatTime(time.Now().UTC()), namespaceUUID, toolUUID, serverUUID,
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (d *DB) DeleteToolMapping(ctx context.Context, uid string) error {
	res, err := d.q.ExecContext(ctx, `DELETE FROM tool_mappings WHERE uuid = ?`, uid)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

// FindToolDeferLoadingOverrides returns only ENABLED/DISABLED entries,
// keyed by the joined public tool name sanitize(serverName)+"__"+toolName
// (spec.md §4.G) — INHERIT rows are excluded entirely, never returned as
// false, so invariant 3 holds by construction at the store boundary too.
func (d *DB) FindToolDeferLoadingOverrides(ctx context.Context, namespaceUUID string) (map[string]bool, error) {
	rows, err := d.q.QueryContext(ctx, `
		SELECT server_name, tool_name, defer_loading
		FROM tool_mappings
		WHERE namespace_uuid = ? AND defer_loading IN ('ENABLED', 'DISABLED')`,
		namespaceUUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var serverName, toolName, defer_ string
		if err := rows.Scan(&serverName, &toolName, &defer_); err != nil {
			return nil, err
		}
		out[toolname.Public(serverName, toolName)] = defer_ == string(store.DeferEnabled)
	}
	return out, rows.Err()
}

func scanToolMapping(row *sql.Row) (*store.ToolMapping, error) {
	var m store.ToolMapping
	var createdAt, updatedAt, status, defer_ string
	err := row.Scan(&m.UUID, &m.NamespaceUUID, &m.ServerUUID, &m.ServerName, &m.ToolName,
		&status, &defer_, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m.Status = store.ToolMappingStatus(status)
	m.DeferLoading = store.DeferLoading(defer_)
	m.CreatedAt = parseTime(createdAt)
	m.UpdatedAt = parseTime(updatedAt)
	return &m, nil
}

func scanToolMappingRow(row rowScanner) (*store.ToolMapping, error) {
	var m store.ToolMapping
	var createdAt, updatedAt, status, defer_ string
	err := row.Scan(&m.UUID, &m.NamespaceUUID, &m.ServerUUID, &m.ServerName, &m.ToolName,
		&status, &defer_, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	m.Status = store.ToolMappingStatus(status)
	m.DeferLoading = store.DeferLoading(defer_)
	m.CreatedAt = parseTime(createdAt)
	m.UpdatedAt = parseTime(updatedAt)
	return &m, nil
}
