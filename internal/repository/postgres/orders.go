package postgres

import (
	"context"
	"fmt"
	"time"

	"restaurant-system/internal/domain"
	"restaurant-system/internal/repository"
)

const orderColumns = `tenant_id, order_id, status, items, customer, notes, total, workflow, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o                        domain.Order
		status                   string
		items, customer, workflw []byte
	)
	if err := row.Scan(&o.TenantID, &o.OrderID, &status, &items, &customer, &o.Notes,
		&o.TotalAmount, &workflw, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	if err := fromJSON(items, &o.Items); err != nil {
		return nil, err
	}
	if err := fromJSON(customer, &o.Customer); err != nil {
		return nil, err
	}
	if err := fromJSON(workflw, &o.Workflow); err != nil {
		return nil, err
	}
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return &o, nil
}

type orderArgs struct {
	items, customer, workflow string
}

func encodeOrder(o *domain.Order) (orderArgs, error) {
	var (
		a   orderArgs
		err error
	)
	if a.items, err = toJSON(o.Items); err != nil {
		return a, err
	}
	if a.customer, err = toJSON(o.Customer); err != nil {
		return a, err
	}
	if a.workflow, err = toJSON(o.Workflow); err != nil {
		return a, err
	}
	return a, nil
}

func (s *Store) PutOrder(ctx context.Context, o *domain.Order) error {
	a, err := encodeOrder(o)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, $6, $7, $8::jsonb, $9, $10)
	`, o.TenantID, o.OrderID, string(o.Status), a.items, a.customer, o.Notes,
		o.TotalAmount, a.workflow, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%s/%s: %w", o.TenantID, o.OrderID, domain.ErrOrderExists)
		}
		return fmt.Errorf("postgres: insert order: %w", err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, tenantID, orderID string) (*domain.Order, error) {
	o, err := scanOrder(s.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE tenant_id = $1 AND order_id = $2`, tenantID, orderID))
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%s/%s: %w", tenantID, orderID, domain.ErrOrderNotFound)
		}
		return nil, fmt.Errorf("postgres: get order: %w", err)
	}
	return o, nil
}

func (s *Store) ListOrders(ctx context.Context, tenantID string, f domain.ListOrdersFilter) ([]domain.Order, error) {
	f = f.Normalize()
	rows, err := s.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE tenant_id = $1 AND ($2 = '' OR left(status, length($2)) = $2)
		ORDER BY created_at DESC, order_id DESC
		LIMIT $3
	`, tenantID, f.Status, f.Limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan order: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// UpdateOrder locks the row, applies mutate to what it read and writes the
// result back in the same transaction.
func (s *Store) UpdateOrder(ctx context.Context, tenantID, orderID string, mutate repository.OrderMutation) (*domain.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := scanOrder(tx.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE tenant_id = $1 AND order_id = $2 FOR UPDATE`, tenantID, orderID))
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%s/%s: %w", tenantID, orderID, domain.ErrOrderNotFound)
		}
		return nil, fmt.Errorf("postgres: lock order: %w", err)
	}

	if err := mutate(o); err != nil {
		return nil, err
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = time.Now().UTC()
	}

	a, err := encodeOrder(o)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = $3, items = $4::jsonb, customer = $5::jsonb, notes = $6,
		    total = $7, workflow = $8::jsonb, updated_at = $9
		WHERE tenant_id = $1 AND order_id = $2
	`, tenantID, orderID, string(o.Status), a.items, a.customer, o.Notes,
		o.TotalAmount, a.workflow, o.UpdatedAt); err != nil {
		return nil, fmt.Errorf("postgres: update order: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("postgres: commit: %w", err)
	}
	return o, nil
}
