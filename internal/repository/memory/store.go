package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"restaurant-system/internal/domain"
	"restaurant-system/internal/repository"
)

var (
	_ repository.OrderRepositoryInterface      = (*Store)(nil)
	_ repository.ProductRepositoryInterface    = (*Store)(nil)
	_ repository.ConnectionRepositoryInterface = (*Store)(nil)
)

type key struct{ tenant, id string }

// Store keeps orders, products and connections in maps guarded by one mutex.
// Safe for concurrent use; intended for tests and --store=memory.
type Store struct {
	mu sync.RWMutex

	orders       map[key]*domain.Order
	products     map[key]*domain.Product
	reservations map[key][]domain.ReservedStock
	conns        map[string]*domain.Connection
	byTenant     map[string]map[string]struct{}
}

func New() *Store {
	return &Store{
		orders:       make(map[key]*domain.Order),
		products:     make(map[key]*domain.Product),
		reservations: make(map[key][]domain.ReservedStock),
		conns:        make(map[string]*domain.Connection),
		byTenant:     make(map[string]map[string]struct{}),
	}
}

// Repository exposes the store through the backend-neutral bundle.
func (m *Store) Repository() repository.Repository {
	return repository.Repository{Orders: m, Products: m, Connections: m, Close: func() {}}
}

// ── orders ──

func (m *Store) PutOrder(_ context.Context, o *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{o.TenantID, o.OrderID}
	if _, ok := m.orders[k]; ok {
		return fmt.Errorf("%s/%s: %w", o.TenantID, o.OrderID, domain.ErrOrderExists)
	}
	m.orders[k] = o.Clone()
	return nil
}

func (m *Store) GetOrder(_ context.Context, tenantID, orderID string) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orders[key{tenantID, orderID}]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", tenantID, orderID, domain.ErrOrderNotFound)
	}
	return o.Clone(), nil
}

func (m *Store) ListOrders(_ context.Context, tenantID string, f domain.ListOrdersFilter) ([]domain.Order, error) {
	f = f.Normalize()

	m.mu.RLock()
	out := make([]domain.Order, 0)
	for k, o := range m.orders {
		if k.tenant != tenantID {
			continue
		}
		if f.Status != "" && !strings.HasPrefix(string(o.Status), f.Status) {
			continue
		}
		out = append(out, *o.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].OrderID > out[j].OrderID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *Store) UpdateOrder(_ context.Context, tenantID, orderID string, mutate repository.OrderMutation) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{tenantID, orderID}
	cur, ok := m.orders[k]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", tenantID, orderID, domain.ErrOrderNotFound)
	}
	next := cur.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	m.orders[k] = next
	return next.Clone(), nil
}

// ── products ──

func (m *Store) PutProduct(_ context.Context, p *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *p
	m.products[key{p.TenantID, p.ProductID}] = &cp
	return nil
}

func (m *Store) GetProduct(_ context.Context, tenantID, productID string) (*domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[key{tenantID, productID}]
	if !ok {
		return nil, fmt.Errorf("%s: %w", productID, domain.ErrProductNotFound)
	}
	cp := *p
	return &cp, nil
}

func (m *Store) ListProducts(_ context.Context, tenantID string) ([]domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Product, 0)
	for k, p := range m.products {
		if k.tenant == tenantID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Store) ReserveStock(_ context.Context, tenantID, reservationID string, lines []domain.StockRequest) ([]domain.ReservedStock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rk := key{tenantID, reservationID}
	if prev, ok := m.reservations[rk]; ok {
		return append([]domain.ReservedStock(nil), prev...), nil
	}

	// check every line before mutating anything
	for _, l := range lines {
		p, ok := m.products[key{tenantID, l.ProductID}]
		if !ok {
			return nil, fmt.Errorf("%s: %w", l.ProductID, domain.ErrProductNotFound)
		}
		if p.Stock < l.Quantity {
			return nil, fmt.Errorf("%s: requested %d, available %d: %w", l.ProductID, l.Quantity, p.Stock, domain.ErrInsufficientStock)
		}
	}

	now := time.Now().UTC()
	out := make([]domain.ReservedStock, 0, len(lines))
	for _, l := range lines {
		p := m.products[key{tenantID, l.ProductID}]
		p.Stock -= l.Quantity
		p.UpdatedAt = now
		out = append(out, domain.ReservedStock{ProductID: p.ProductID, Name: p.Name, Price: p.Price, Quantity: l.Quantity})
	}
	m.reservations[rk] = out
	return append([]domain.ReservedStock(nil), out...), nil
}

// ── connections ──

func (m *Store) PutConnection(_ context.Context, c *domain.Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *c
	m.conns[c.ConnectionID] = &cp
	set, ok := m.byTenant[c.TenantID]
	if !ok {
		set = make(map[string]struct{})
		m.byTenant[c.TenantID] = set
	}
	set[c.ConnectionID] = struct{}{}
	return nil
}

func (m *Store) ListConnections(_ context.Context, tenantID string) ([]domain.Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Connection, 0, len(m.byTenant[tenantID]))
	for id := range m.byTenant[tenantID] {
		out = append(out, *m.conns[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConnectionID < out[j].ConnectionID })
	return out, nil
}

func (m *Store) FindConnection(_ context.Context, connectionID string) (*domain.Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.conns[connectionID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", connectionID, domain.ErrConnectionNotFound)
	}
	cp := *c
	return &cp, nil
}

func (m *Store) TouchConnection(_ context.Context, connectionID string, expiresAt time.Time) (*domain.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conns[connectionID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", connectionID, domain.ErrConnectionNotFound)
	}
	c.ExpiresAt = expiresAt
	cp := *c
	return &cp, nil
}

// DeleteConnection is idempotent: removing an unknown connection is not an error.
func (m *Store) DeleteConnection(_ context.Context, tenantID, connectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deleteLocked(tenantID, connectionID)
	return nil
}

func (m *Store) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, c := range m.conns {
		if !c.ExpiresAt.After(now) {
			m.deleteLocked(c.TenantID, id)
			n++
		}
	}
	return n, nil
}

func (m *Store) deleteLocked(tenantID, connectionID string) {
	c, ok := m.conns[connectionID]
	if !ok || c.TenantID != tenantID {
		return
	}
	delete(m.conns, connectionID)
	if set := m.byTenant[tenantID]; set != nil {
		delete(set, connectionID)
		if len(set) == 0 {
			delete(m.byTenant, tenantID)
		}
	}
}
