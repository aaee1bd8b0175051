package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/revittco/toolmux/internal/store"
)

func (d *DB) CreateNamespace(ctx context.Context, n *store.Namespace) error {
	if n.UUID == "" {
		n.UUID = uuid.NewString()
	}
	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now
	if n.DefaultSearchMethod == "" {
		n.DefaultSearchMethod = store.SearchNone
	}
	if n.DefaultToolVisibility == "" {
		n.DefaultToolVisibility = store.VisibilityAll
	}

	_, err := d.q.ExecContext(ctx, `
		INSERT INTO namespaces
			(uuid, name, owner_id, default_defer_loading, default_search_method,
			 default_tool_visibility, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.UUID, n.Name, n.OwnerID, n.DefaultDeferLoading, string(n.DefaultSearchMethod),
		string(n.DefaultToolVisibility), formatTime(n.CreatedAt), formatTime(n.UpdatedAt),
	)
	return mapConstraintError(err)
}

func (d *DB) FindNamespace(ctx context.Context, uid string) (*store.Namespace, error) {
	row := d.q.QueryRowContext(ctx, `
		SELECT uuid, name, owner_id, default_defer_loading, default_search_method,
		       default_tool_visibility, created_at, updated_at
		FROM namespaces WHERE uuid = ?`, uid)
	return scanNamespace(row)
}

func (d *DB) GetNamespaceByName(ctx context.Context, name string) (*store.Namespace, error) {
	row := d.q.QueryRowContext(ctx, `
		SELECT uuid, name, owner_id, default_defer_loading, default_search_method,
		       default_tool_visibility, created_at, updated_at
		FROM namespaces WHERE name = ?`, name)
	return scanNamespace(row)
}

func (d *DB) ListNamespaces(ctx context.Context) ([]store.Namespace, error) {
	rows, err := d.q.QueryContext(ctx, `
		SELECT uuid, name, owner_id, default_defer_loading, default_search_method,
		       default_tool_visibility, created_at, updated_at
		FROM namespaces ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Namespace
	for rows.Next() {
		n, err := scanNamespaceRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

func (d *DB) UpdateNamespace(ctx context.Context, n *store.Namespace) error {
	n.UpdatedAt = time.Now().UTC()
	res, err := d.q.ExecContext(ctx, `
		UPDATE namespaces
		SET name = ?, owner_id = ?, default_defer_loading = ?, default_search_method = ?,
		    default_tool_visibility = ?, updated_at = ?
		WHERE uuid = ?`,
		n.Name, n.OwnerID, n.DefaultDeferLoading, string(n.DefaultSearchMethod),
		string(n.DefaultToolVisibility), formatTime(n.UpdatedAt), n.UUID,
	)
	if err != nil {
		return mapConstraintError(err)
	}
	return checkRowsAffected(res)
}

// DeleteNamespace cascades to ToolSearchConfig, ToolMapping, Endpoint,
// and DownstreamServer rows via ON DELETE CASCADE foreign keys
// (invariant 2).
func (d *DB) DeleteNamespace(ctx context.Context, uid string) error {
	res, err := d.q.ExecContext(ctx, `DELETE FROM namespaces WHERE uuid = ?`, uid)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func scanNamespace(row *sql.Row) (*store.Namespace, error) {
	var n store.Namespace
	var createdAt, updatedAt, searchMethod, visibility string
	err := row.Scan(
		&n.UUID, &n.Name, &n.OwnerID, &n.DefaultDeferLoading, &searchMethod,
		&visibility, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	n.DefaultSearchMethod = store.SearchMethod(searchMethod)
	n.DefaultToolVisibility = store.ToolVisibility(visibility)
	n.CreatedAt = parseTime(createdAt)
	n.UpdatedAt = parseTime(updatedAt)
	return &n, nil
}

func scanNamespaceRow(row rowScanner) (*store.Namespace, error) {
	var n store.Namespace
	var createdAt, updatedAt, searchMethod, visibility string
	err := row.Scan(
		&n.UUID, &n.Name, &n.OwnerID, &n.DefaultDeferLoading, &searchMethod,
		&visibility, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	n.DefaultSearchMethod = store.SearchMethod(searchMethod)
	n.DefaultToolVisibility = store.ToolVisibility(visibility)
	n.CreatedAt = parseTime(createdAt)
	n.UpdatedAt = parseTime(updatedAt)
	return &n, nil
}
