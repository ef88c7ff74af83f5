package postgres

import (
	"context"
	"fmt"
	"sort"

	"restaurant-system/internal/domain"
)

const productColumns = `tenant_id, product_id, name, description, price, stock, created_at, updated_at`

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(&p.TenantID, &p.ProductID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func (s *Store) PutProduct(ctx context.Context, p *domain.Product) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tenant_id, product_id) DO UPDATE
		SET name = EXCLUDED.name, description = EXCLUDED.description, price = EXCLUDED.price,
		    stock = EXCLUDED.stock, updated_at = EXCLUDED.updated_at
	`, p.TenantID, p.ProductID, p.Name, p.Description, p.Price, p.Stock, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: put product: %w", err)
	}
	return nil
}

func (s *Store) GetProduct(ctx context.Context, tenantID, productID string) (*domain.Product, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE tenant_id = $1 AND product_id = $2`, tenantID, productID))
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%s: %w", productID, domain.ErrProductNotFound)
		}
		return nil, fmt.Errorf("postgres: get product: %w", err)
	}
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context, tenantID string) ([]domain.Product, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE tenant_id = $1 ORDER BY name, product_id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list products: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan product: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// ReserveStock claims reservationID first, so a concurrent replay of the same
// reservation blocks on the primary key until this transaction ends and then
// reads the stored lines instead of decrementing again. Lines are locked in
// product id order to keep concurrent reservations from deadlocking.
func (s *Store) ReserveStock(ctx context.Context, tenantID, reservationID string, lines []domain.StockRequest) ([]domain.ReservedStock, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		INSERT INTO stock_reservations (tenant_id, reservation_id)
		VALUES ($1, $2)
		ON CONFLICT (tenant_id, reservation_id) DO NOTHING
	`, tenantID, reservationID)
	if err != nil {
		return nil, fmt.Errorf("postgres: claim reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var raw []byte
		if err := tx.QueryRow(ctx,
			`SELECT lines FROM stock_reservations WHERE tenant_id = $1 AND reservation_id = $2`,
			tenantID, reservationID).Scan(&raw); err != nil {
			return nil, fmt.Errorf("postgres: read reservation: %w", err)
		}
		var prev []domain.ReservedStock
		if err := fromJSON(raw, &prev); err != nil {
			return nil, err
		}
		return prev, nil
	}

	sorted := append([]domain.StockRequest(nil), lines...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })

	out := make([]domain.ReservedStock, 0, len(sorted))
	for _, l := range sorted {
		r := domain.ReservedStock{ProductID: l.ProductID, Quantity: l.Quantity}
		err := tx.QueryRow(ctx, `
			UPDATE products
			SET stock = stock - $3, updated_at = NOW()
			WHERE tenant_id = $1 AND product_id = $2 AND stock >= $3
			RETURNING name, price
		`, tenantID, l.ProductID, l.Quantity).Scan(&r.Name, &r.Price)
		if err == nil {
			out = append(out, r)
			continue
		}
		if !isNoRows(err) {
			return nil, fmt.Errorf("postgres: decrement %s: %w", l.ProductID, err)
		}

		var stock int
		err = tx.QueryRow(ctx,
			`SELECT stock FROM products WHERE tenant_id = $1 AND product_id = $2`,
			tenantID, l.ProductID).Scan(&stock)
		switch {
		case isNoRows(err):
			return nil, fmt.Errorf("%s: %w", l.ProductID, domain.ErrProductNotFound)
		case err != nil:
			return nil, fmt.Errorf("postgres: read stock %s: %w", l.ProductID, err)
		default:
			return nil, fmt.Errorf("%s: requested %d, available %d: %w", l.ProductID, l.Quantity, stock, domain.ErrInsufficientStock)
		}
	}

	// keep the caller's line order in the stored snapshot
	byID := make(map[string]domain.ReservedStock, len(out))
	for _, r := range out {
		byID[r.ProductID] = r
	}
	ordered := make([]domain.ReservedStock, 0, len(lines))
	for _, l := range lines {
		ordered = append(ordered, byID[l.ProductID])
	}

	raw, err := toJSON(ordered)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE stock_reservations SET lines = $3::jsonb WHERE tenant_id = $1 AND reservation_id = $2`,
		tenantID, reservationID, raw); err != nil {
		return nil, fmt.Errorf("postgres: record reservation: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("postgres: commit: %w", err)
	}
	return ordered, nil
}
