package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/revittco/toolmux/internal/store"
)

func (d *DB) CreateDownstreamServer(ctx context.Context, s *store.DownstreamServer) error {
	if s.UUID == "" {
		s.UUID = uuid.NewString()
	}
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	if s.Transport == "" {
		s.Transport = "stdio"
	}
	args := normalizeJSON(s.Args, "[]")

	_, err := d.q.ExecContext(ctx, `
		INSERT INTO downstream_servers
			(uuid, namespace_uuid, name, transport, command, args, url,
			 idle_timeout_sec, disabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.UUID, s.NamespaceUUID, s.Name, s.Transport, s.Command, args, nullableString(s.URL),
		s.IdleTimeoutSec, s.Disabled, formatTime(s.CreatedAt), formatTime(s.UpdatedAt),
	)
	return mapConstraintError(err)
}

func (d *DB) GetDownstreamServer(ctx context.Context, uid string) (*store.DownstreamServer, error) {
	row := d.q.QueryRowContext(ctx, `
		SELECT uuid, namespace_uuid, name, transport, command, args, url,
		       idle_timeout_sec, disabled, created_at, updated_at
		FROM downstream_servers WHERE uuid = ?`, uid)
	return scanDownstreamServer(row)
}

func (d *DB) ListDownstreamServers(ctx context.Context) ([]store.DownstreamServer, error) {
	rows, err := d.q.QueryContext(ctx, `
		SELECT uuid, namespace_uuid, name, transport, command, args, url,
		       idle_timeout_sec, disabled, created_at, updated_at
		FROM downstream_servers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDownstreamServerRows(rows)
}

func (d *DB) ListDownstreamServersByNamespace(ctx context.Context, namespaceUUID string) ([]store.DownstreamServer, error) {
	rows, err := d.q.QueryContext(ctx, `
		SELECT uuid, namespace_uuid, name, transport, command, args, url,
		       idle_timeout_sec, disabled, created_at, updated_at
		FROM downstream_servers WHERE namespace_uuid = ? ORDER BY name`, namespaceUUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDownstreamServerRows(rows)
}

func scanDownstreamServerRows(rows *sql.Rows) ([]store.DownstreamServer, error) {
	var out []store.DownstreamServer
	for rows.Next() {
		s, err := scanDownstreamServerRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (d *DB) UpdateDownstreamServer(ctx context.Context, s *store.DownstreamServer) error {
	s.UpdatedAt = time.Now().UTC()
	args := normalizeJSON(s.Args, "[]")

	res, err := d.q.ExecContext(ctx, `
		UPDATE downstream_servers
		SET name = ?, transport = ?, command = ?, args = ?, url = ?,
		    idle_timeout_sec = ?, disabled = ?, updated_at = ?
		WHERE uuid = ?`,
		s.Name, s.Transport, s.Command, args, nullableString(s.URL), s.IdleTimeoutSec,
		s.Disabled, formatTime(s.UpdatedAt), s.UUID,
	)
	if err != nil {
		return mapConstraintError(err)
	}
	return checkRowsAffected(res)
}

func (d *DB) DeleteDownstreamServer(ctx context.Context, uid string) error {
	return d.withTx(ctx, func(q queryable) error {
		if _, err := q.ExecContext(ctx,
			`DELETE FROM tool_mappings WHERE server_uuid = ?`, uid); err != nil {
			return err
		}
		res, err := q.ExecContext(ctx, `DELETE FROM downstream_servers WHERE uuid = ?`, uid)
		if err != nil {
			return err
		}
		return checkRowsAffected(res)
	})
}

func scanDownstreamServer(row *sql.Row) (*store.DownstreamServer, error) {
	var s store.DownstreamServer
	var createdAt, updatedAt, args string
	var url sql.NullString
	err := row.Scan(&s.UUID, &s.NamespaceUUID, &s.Name, &s.Transport, &s.Command, &args,
		&url, &s.IdleTimeoutSec, &s.Disabled, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.Args = json.RawMessage(args)
	s.URL = stringPtr(url)
	s.CreatedAt = parseTime(createdAt)
	s.UpdatedAt = parseTime(updatedAt)
	return &s, nil
}

func scanDownstreamServerRow(row rowScanner) (*store.DownstreamServer, error) {
	var s store.DownstreamServer
	var createdAt, updatedAt, args string
	var url sql.NullString
	err := row.Scan(&s.UUID, &s.NamespaceUUID, &s.Name, &s.Transport, &s.Command, &args,
		&url, &s.IdleTimeoutSec, &s.Disabled, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	s.Args = json.RawMessage(args)
	s.URL = stringPtr(url)
	s.CreatedAt = parseTime(createdAt)
	s.UpdatedAt = parseTime(updatedAt)
	return &s, nil
}
