package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"restaurant-system/internal/common/logger"
	"restaurant-system/internal/domain"
	inventory "restaurant-system/internal/microservices/inventory/service"
	workflow "restaurant-system/internal/microservices/workflow/service"
	"restaurant-system/internal/repository"
)

// idempotencyNamespace scopes order ids derived from Idempotency-Key headers.
var idempotencyNamespace = uuid.MustParse("6f1c2a8e-3d4b-4c5a-9e7f-0a1b2c3d4e5f")

// WorkflowStarter launches the durable fulfillment of a placed order.
type WorkflowStarter interface {
	Start(ctx context.Context, tenantID, orderID string) error
}

type OrderServiceInterface interface {
	CreateOrder(ctx context.Context, tenantID, idempotencyKey string, req domain.CreateOrderRequest) (domain.CreateOrderResponse, error)
	CompleteStage(ctx context.Context, tenantID, orderID, stage, actor string) (domain.CompleteStageResponse, error)
}

type OrderService struct {
	orders    repository.OrderRepositoryInterface
	inventory inventory.InventoryServiceInterface
	stages    workflow.StageServiceInterface
	publisher workflow.Publisher
	starter   WorkflowStarter
	log       *logger.Logger
	now       func() time.Time
}

func NewOrderService(
	orders repository.OrderRepositoryInterface,
	inv inventory.InventoryServiceInterface,
	stages workflow.StageServiceInterface,
	pub workflow.Publisher,
	starter WorkflowStarter,
	lg *logger.Logger,
) *OrderService {
	if lg == nil {
		lg = logger.Nop()
	}
	return &OrderService{
		orders:    orders,
		inventory: inv,
		stages:    stages,
		publisher: pub,
		starter:   starter,
		log:       lg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// OrderID returns the id a create request will use. With an idempotency key
// the id is stable, so a retried request maps onto the same order and the
// same stock reservation.
func OrderID(tenantID, idempotencyKey string) string {
	if k := strings.TrimSpace(idempotencyKey); k != "" {
		return uuid.NewSHA1(idempotencyNamespace, []byte(tenantID+":"+k)).String()
	}
	return uuid.NewString()
}

// CreateOrder reserves stock for every line, stores the order with all stages
// pending, announces it and starts its fulfillment. Nothing is stored when
// the reservation fails.
func (s *OrderService) CreateOrder(ctx context.Context, tenantID, idempotencyKey string, req domain.CreateOrderRequest) (domain.CreateOrderResponse, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return domain.CreateOrderResponse{}, fmt.Errorf("%w: tenantId is required", domain.ErrValidation)
	}
	if err := req.Validate(); err != nil {
		return domain.CreateOrderResponse{}, err
	}

	orderID := OrderID(tenantID, idempotencyKey)
	res, err := s.inventory.Reserve(ctx, tenantID, orderID, req.Items)
	if err != nil {
		return domain.CreateOrderResponse{}, err
	}

	now := s.now()
	order := &domain.Order{
		TenantID:    tenantID,
		OrderID:     orderID,
		Status:      domain.StatusPlaced,
		Items:       res.Items,
		Customer:    req.Customer,
		Notes:       req.Notes,
		TotalAmount: res.Total,
		Workflow:    domain.NewWorkflow(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.orders.PutOrder(ctx, order); err != nil {
		if !errors.Is(err, domain.ErrOrderExists) {
			return domain.CreateOrderResponse{}, err
		}
		existing, gerr := s.orders.GetOrder(ctx, tenantID, orderID)
		if gerr != nil {
			return domain.CreateOrderResponse{}, gerr
		}
		s.log.InfoCtx(ctx, "order_replayed", map[string]any{"tenant_id": tenantID, "order_id": orderID})
		s.start(ctx, tenantID, orderID)
		return toCreateResponse(existing), nil
	}

	s.log.InfoCtx(ctx, "order_created", map[string]any{
		"tenant_id": tenantID, "order_id": orderID, "total": order.TotalAmount, "items": len(order.Items),
	})

	if s.publisher != nil {
		createdAt := order.CreatedAt
		wf := order.Workflow
		cust := order.Customer
		if _, err := s.publisher.Publish(ctx, tenantID, domain.EventOrderCreated, domain.EventDetail{
			TenantID:  tenantID,
			OrderID:   orderID,
			Status:    domain.StatusPlaced,
			CreatedAt: &createdAt,
			Workflow:  &wf,
			Customer:  &cust,
		}); err != nil {
			s.log.ErrorCtx(ctx, "event_publish_failed", err, map[string]any{
				"type": domain.EventOrderCreated, "tenant_id": tenantID, "order_id": orderID,
			})
		}
	}

	s.start(ctx, tenantID, orderID)
	return toCreateResponse(order), nil
}

// start is best effort: the order is already committed, and a retry with the
// same idempotency key starts the fulfillment again.
func (s *OrderService) start(ctx context.Context, tenantID, orderID string) {
	if s.starter == nil {
		return
	}
	if err := s.starter.Start(ctx, tenantID, orderID); err != nil {
		s.log.ErrorCtx(ctx, "fulfillment_start_failed", err, map[string]any{"tenant_id": tenantID, "order_id": orderID})
	}
}

func toCreateResponse(o *domain.Order) domain.CreateOrderResponse {
	return domain.CreateOrderResponse{
		OrderID:  o.OrderID,
		Status:   o.Status,
		Workflow: o.Workflow,
		Total:    o.TotalAmount,
	}
}

// CompleteStage is the operator path of a stage completion.
func (s *OrderService) CompleteStage(ctx context.Context, tenantID, orderID, stage, actor string) (domain.CompleteStageResponse, error) {
	st, err := domain.ParseStage(stage)
	if err != nil {
		return domain.CompleteStageResponse{}, err
	}
	res, err := s.stages.Complete(ctx, tenantID, orderID, st, actor)
	if err != nil {
		return domain.CompleteStageResponse{}, err
	}
	return domain.CompleteStageResponse{OrderID: orderID, Stage: st, Status: res.Order.Status}, nil
}
