package postgres

import (
	"context"
	"fmt"
	"time"

	"restaurant-system/internal/domain"
)

const connectionColumns = `connection_id, tenant_id, role, user_id, connected_at, expires_at`

func scanConnection(row rowScanner) (*domain.Connection, error) {
	var c domain.Connection
	if err := row.Scan(&c.ConnectionID, &c.TenantID, &c.Role, &c.UserID, &c.ConnectedAt, &c.ExpiresAt); err != nil {
		return nil, err
	}
	c.ConnectedAt = c.ConnectedAt.UTC()
	c.ExpiresAt = c.ExpiresAt.UTC()
	return &c, nil
}

func (s *Store) PutConnection(ctx context.Context, c *domain.Connection) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO connections (`+connectionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (connection_id) DO UPDATE
		SET tenant_id = EXCLUDED.tenant_id, role = EXCLUDED.role, user_id = EXCLUDED.user_id,
		    connected_at = EXCLUDED.connected_at, expires_at = EXCLUDED.expires_at
	`, c.ConnectionID, c.TenantID, c.Role, c.UserID, c.ConnectedAt, c.ExpiresAt)
	if err != nil {
		return fmt.Errorf("postgres: put connection: %w", err)
	}
	return nil
}

func (s *Store) ListConnections(ctx context.Context, tenantID string) ([]domain.Connection, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+connectionColumns+` FROM connections WHERE tenant_id = $1 ORDER BY connection_id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list connections: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Connection, 0)
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan connection: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *Store) FindConnection(ctx context.Context, connectionID string) (*domain.Connection, error) {
	c, err := scanConnection(s.pool.QueryRow(ctx,
		`SELECT `+connectionColumns+` FROM connections WHERE connection_id = $1`, connectionID))
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%s: %w", connectionID, domain.ErrConnectionNotFound)
		}
		return nil, fmt.Errorf("postgres: find connection: %w", err)
	}
	return c, nil
}

func (s *Store) TouchConnection(ctx context.Context, connectionID string, expiresAt time.Time) (*domain.Connection, error) {
	c, err := scanConnection(s.pool.QueryRow(ctx, `
		UPDATE connections SET expires_at = $2
		WHERE connection_id = $1
		RETURNING `+connectionColumns, connectionID, expiresAt))
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%s: %w", connectionID, domain.ErrConnectionNotFound)
		}
		return nil, fmt.Errorf("postgres: touch connection: %w", err)
	}
	return c, nil
}

func (s *Store) DeleteConnection(ctx context.Context, tenantID, connectionID string) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM connections WHERE tenant_id = $1 AND connection_id = $2`, tenantID, connectionID); err != nil {
		return fmt.Errorf("postgres: delete connection: %w", err)
	}
	return nil
}

func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM connections WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete expired connections: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
