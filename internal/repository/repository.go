package repository

import (
	"context"
	"time"

	"restaurant-system/internal/domain"
)

// OrderMutation is applied to the current stored order inside one atomic
// update. Returning an error aborts the update and leaves the row untouched.
type OrderMutation func(o *domain.Order) error

type OrderRepositoryInterface interface {
	// PutOrder inserts a new order; ErrOrderExists if the key is taken.
	PutOrder(ctx context.Context, o *domain.Order) error
	GetOrder(ctx context.Context, tenantID, orderID string) (*domain.Order, error)
	ListOrders(ctx context.Context, tenantID string, f domain.ListOrdersFilter) ([]domain.Order, error)
	// UpdateOrder runs mutate against the locked current version of the order
	// and persists the result. Two concurrent updates of the same order never
	// observe the same version.
	UpdateOrder(ctx context.Context, tenantID, orderID string, mutate OrderMutation) (*domain.Order, error)
}

type ProductRepositoryInterface interface {
	PutProduct(ctx context.Context, p *domain.Product) error
	GetProduct(ctx context.Context, tenantID, productID string) (*domain.Product, error)
	ListProducts(ctx context.Context, tenantID string) ([]domain.Product, error)
	// ReserveStock decrements every requested line in one transaction or
	// none of them. A reservation id that was already applied returns the
	// stored snapshot without touching stock again.
	ReserveStock(ctx context.Context, tenantID, reservationID string, lines []domain.StockRequest) ([]domain.ReservedStock, error)
}

type ConnectionRepositoryInterface interface {
	PutConnection(ctx context.Context, c *domain.Connection) error
	ListConnections(ctx context.Context, tenantID string) ([]domain.Connection, error)
	// FindConnection resolves a connection by id alone.
	FindConnection(ctx context.Context, connectionID string) (*domain.Connection, error)
	TouchConnection(ctx context.Context, connectionID string, expiresAt time.Time) (*domain.Connection, error)
	DeleteConnection(ctx context.Context, tenantID, connectionID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// Repository groups the stores one backend provides.
type Repository struct {
	Orders      OrderRepositoryInterface
	Products    ProductRepositoryInterface
	Connections ConnectionRepositoryInterface
	Close       func()
}
