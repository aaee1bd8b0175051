package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/revittco/toolmux/internal/store"
)

func (d *DB) CreateEndpoint(ctx context.Context, e *store.Endpoint) error {
	if e.UUID == "" {
		e.UUID = uuid.NewString()
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	e.NormalizeOverrides()

	_, err := d.q.ExecContext(ctx, `
		INSERT INTO endpoints
			(uuid, namespace_uuid, name, override_defer_loading, override_search_method,
			 override_tool_visibility, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.UUID, e.NamespaceUUID, e.Name, string(e.OverrideDeferLoading),
		string(e.OverrideSearchMethod), string(e.OverrideToolVisibility),
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
	)
	return mapConstraintError(err)
}

func (d *DB) FindEndpoint(ctx context.Context, uid string) (*store.Endpoint, error) {
	row := d.q.QueryRowContext(ctx, `
		SELECT uuid, namespace_uuid, name, override_defer_loading, override_search_method,
		       override_tool_visibility, created_at, updated_at
		FROM endpoints WHERE uuid = ?`, uid)
	return scanEndpoint(row)
}

func (d *DB) ListEndpoints(ctx context.Context) ([]store.Endpoint, error) {
	rows, err := d.q.QueryContext(ctx, `
		SELECT uuid, namespace_uuid, name, override_defer_loading, override_search_method,
		       override_tool_visibility, created_at, updated_at
		FROM endpoints ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEndpointRows(rows)
}

// EndpointsByNamespace drives cache invalidation (spec.md §4.G): a write
// to a namespace must invalidate every endpoint bound to it.
func (d *DB) EndpointsByNamespace(ctx context.Context, namespaceUUID string) ([]store.Endpoint, error) {
	rows, err := d.q.QueryContext(ctx, `
		SELECT uuid, namespace_uuid, name, override_defer_loading, override_search_method,
		       override_tool_visibility, created_at, updated_at
		FROM endpoints WHERE namespace_uuid = ? ORDER BY name`, namespaceUUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEndpointRows(rows)
}

func scanEndpointRows(rows *sql.Rows) ([]store.Endpoint, error) {
	var out []store.Endpoint
	for rows.Next() {
		e, err := scanEndpointRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (d *DB) UpdateEndpoint(ctx context.Context, e *store.Endpoint) error {
	e.UpdatedAt = time.Now().UTC()
	e.NormalizeOverrides()

	res, err := d.q.ExecContext(ctx, `
		UPDATE endpoints
		SET name = ?, override_defer_loading = ?, override_search_method = ?,
		    override_tool_visibility = ?, updated_at = ?
		WHERE uuid = ?`,
		e.Name, string(e.OverrideDeferLoading), string(e.OverrideSearchMethod),
		string(e.OverrideToolVisibility), formatTime(e.UpdatedAt), e.UUID,
	)
	if err != nil {
		return mapConstraintError(err)
	}
	return checkRowsAffected(res)
}

func (d *DB) DeleteEndpoint(ctx context.Context, uid string) error {
	res, err := d.q.ExecContext(ctx, `DELETE FROM endpoints WHERE uuid = ?`, uid)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func scanEndpoint(row *sql.Row) (*store.Endpoint, error) {
	var e store.Endpoint
	var createdAt, updatedAt, deferL, searchM, vis string
	err := row.Scan(&e.UUID, &e.NamespaceUUID, &e.Name, &deferL, &searchM, &vis, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	e.OverrideDeferLoading = store.DeferLoading(deferL)
	e.OverrideSearchMethod = store.SearchMethod(searchM)
	e.OverrideToolVisibility = store.ToolVisibility(vis)
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return &e, nil
}

func scanEndpointRow(row rowScanner) (*store.Endpoint, error) {
	var e store.Endpoint
	var createdAt, updatedAt, deferL, searchM, vis string
	err := row.Scan(&e.UUID, &e.NamespaceUUID, &e.Name, &deferL, &searchM, &vis, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	e.OverrideDeferLoading = store.DeferLoading(deferL)
	e.OverrideSearchMethod = store.SearchMethod(searchM)
	e.OverrideToolVisibility = store.ToolVisibility(vis)
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return &e, nil
}
