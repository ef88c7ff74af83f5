package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"restaurant-system/internal/domain"
	"restaurant-system/internal/microservices/tracker/models"
	workflow "restaurant-system/internal/microservices/workflow/service"
	"restaurant-system/internal/repository"
)

type TrackerServiceInterface interface {
	GetOrder(ctx context.Context, tenantID, orderID string) (*domain.Order, error)
	GetStatus(ctx context.Context, tenantID, orderID string) (models.StatusView, error)
	GetTimeline(ctx context.Context, tenantID, orderID string) ([]models.TimelineEntry, error)
	ListOrders(ctx context.Context, tenantID string, f domain.ListOrdersFilter) ([]domain.Order, error)
}

type TrackerService struct {
	engine workflow.EngineInterface
	orders repository.OrderRepositoryInterface
}

func NewTrackerService(engine workflow.EngineInterface, orders repository.OrderRepositoryInterface) *TrackerService {
	return &TrackerService{engine: engine, orders: orders}
}

func (s *TrackerService) GetOrder(ctx context.Context, tenantID, orderID string) (*domain.Order, error) {
	return s.engine.Status(ctx, tenantID, orderID)
}

func (s *TrackerService) GetStatus(ctx context.Context, tenantID, orderID string) (models.StatusView, error) {
	o, err := s.engine.Status(ctx, tenantID, orderID)
	if err != nil {
		return models.StatusView{}, err
	}
	v := models.StatusView{
		OrderID:   o.OrderID,
		Status:    o.Status,
		Stages:    make(map[domain.Stage]domain.StageStatus, len(domain.Stages)),
		UpdatedAt: o.UpdatedAt,
	}
	for _, st := range domain.Stages {
		v.Stages[st] = o.Workflow.Stage(st).Status
	}
	return v, nil
}

// GetTimeline rebuilds the history of an order from the timestamps its
// workflow keeps, oldest first.
func (s *TrackerService) GetTimeline(ctx context.Context, tenantID, orderID string) ([]models.TimelineEntry, error) {
	o, err := s.engine.Status(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	events := []models.TimelineEntry{{Event: domain.EventOrderCreated, At: o.CreatedAt}}
	for _, st := range domain.Stages {
		ws := o.Workflow.Stage(st)
		if ws.StartedAt != nil {
			events = append(events, models.TimelineEntry{Event: domain.EventStageStarted, Stage: st, At: *ws.StartedAt})
		}
		if ws.CompletedAt != nil {
			events = append(events, models.TimelineEntry{Event: domain.EventStageCompleted, Stage: st, At: *ws.CompletedAt, Actor: ws.Actor})
		}
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].At.Before(events[j].At) })
	return events, nil
}

func (s *TrackerService) ListOrders(ctx context.Context, tenantID string, f domain.ListOrdersFilter) ([]domain.Order, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, fmt.Errorf("%w: tenantId is required", domain.ErrValidation)
	}
	return s.orders.ListOrders(ctx, tenantID, f.Normalize())
}
