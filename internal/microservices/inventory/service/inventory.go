package service

import (
	"context"
	"fmt"
	"strings"

	"restaurant-system/internal/common/logger"
	"restaurant-system/internal/domain"
	"restaurant-system/internal/repository"
)

type InventoryServiceInterface interface {
	// Reserve decrements stock for every item or for none of them.
	// reservationID makes a retried reservation a no-op.
	Reserve(ctx context.Context, tenantID, reservationID string, items []domain.OrderItemInput) (domain.Reservation, error)
}

type InventoryService struct {
	products repository.ProductRepositoryInterface
	log      *logger.Logger
}

func NewInventoryService(products repository.ProductRepositoryInterface, lg *logger.Logger) InventoryServiceInterface {
	if lg == nil {
		lg = logger.Nop()
	}
	return &InventoryService{products: products, log: lg}
}

func (s *InventoryService) Reserve(ctx context.Context, tenantID, reservationID string, items []domain.OrderItemInput) (domain.Reservation, error) {
	if strings.TrimSpace(tenantID) == "" {
		return domain.Reservation{}, fmt.Errorf("%w: tenantId is required", domain.ErrValidation)
	}
	if strings.TrimSpace(reservationID) == "" {
		return domain.Reservation{}, fmt.Errorf("%w: reservation id is required", domain.ErrValidation)
	}
	if len(items) == 0 {
		return domain.Reservation{}, fmt.Errorf("%w: items are required", domain.ErrValidation)
	}
	if err := domain.ValidateItems(items); err != nil {
		return domain.Reservation{}, err
	}

	lines := mergeLines(items)
	reserved, err := s.products.ReserveStock(ctx, tenantID, reservationID, lines)
	if err != nil {
		s.log.Debug("stock_reservation_rejected", map[string]any{
			"tenant_id": tenantID, "reservation_id": reservationID, "reason": domain.Kind(err),
		})
		return domain.Reservation{}, err
	}

	res := domain.Reservation{Items: make([]domain.LineItem, 0, len(reserved))}
	for _, r := range reserved {
		lt := domain.RoundMoney(r.Price * float64(r.Quantity))
		res.Items = append(res.Items, domain.LineItem{
			ProductID: r.ProductID,
			Name:      r.Name,
			Price:     r.Price,
			Quantity:  r.Quantity,
			LineTotal: lt,
		})
		res.Total += lt
	}
	res.Total = domain.RoundMoney(res.Total)

	s.log.Debug("stock_reserved", map[string]any{
		"tenant_id": tenantID, "reservation_id": reservationID, "lines": len(res.Items), "total": res.Total,
	})
	return res, nil
}

// mergeLines folds repeated product ids into one decrement, keeping first-seen order.
func mergeLines(items []domain.OrderItemInput) []domain.StockRequest {
	idx := make(map[string]int, len(items))
	out := make([]domain.StockRequest, 0, len(items))
	for _, it := range items {
		id := strings.TrimSpace(it.ProductID)
		if i, ok := idx[id]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		idx[id] = len(out)
		out = append(out, domain.StockRequest{ProductID: id, Quantity: it.Quantity})
	}
	return out
}
