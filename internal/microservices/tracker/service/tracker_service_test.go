package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"restaurant-system/internal/domain"
	workflow "restaurant-system/internal/microservices/workflow/service"
	"restaurant-system/internal/repository/memory"
)

func newTracker(t *testing.T) (*TrackerService, workflow.EngineInterface) {
	t.Helper()
	store := memory.New()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := store.PutOrder(context.Background(), &domain.Order{
		TenantID: "t1", OrderID: "o1", Status: domain.StatusPlaced,
		Workflow: domain.NewWorkflow(), CreatedAt: base, UpdatedAt: base,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	tick := base
	clock := func() time.Time {
		tick = tick.Add(time.Minute)
		return tick
	}
	engine := workflow.NewEngine(store, nil, workflow.WithClock(clock))
	return NewTrackerService(engine, store), engine
}

func TestGetStatusAndTimeline(t *testing.T) {
	t.Parallel()

	svc, engine := newTracker(t)
	ctx := context.Background()
	if _, err := engine.ClaimStage(ctx, "t1", "o1", domain.StageKitchen, "tok", "chef"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := engine.CompleteStage(ctx, "t1", "o1", domain.StageKitchen, "chef"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	v, err := svc.GetStatus(ctx, "t1", "o1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if v.Status != domain.StatusKitchenDone || v.Stages[domain.StageKitchen] != domain.StageCompleted || v.Stages[domain.StagePackaging] != domain.StagePending {
		t.Fatalf("unexpected status view %+v", v)
	}

	events, err := svc.GetTimeline(ctx, "t1", "o1")
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	want := []string{domain.EventOrderCreated, domain.EventStageStarted, domain.EventStageCompleted}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %+v", len(want), events)
	}
	for i, ev := range want {
		if events[i].Event != ev {
			t.Fatalf("event %d: expected %s, got %s", i, ev, events[i].Event)
		}
		if i > 0 && events[i].At.Before(events[i-1].At) {
			t.Fatalf("timeline not ordered: %+v", events)
		}
	}
	if events[2].Actor != "chef" || events[2].Stage != domain.StageKitchen {
		t.Fatalf("unexpected completion entry %+v", events[2])
	}
}

func TestTracker_Errors(t *testing.T) {
	t.Parallel()

	svc, _ := newTracker(t)
	ctx := context.Background()

	if _, err := svc.GetOrder(ctx, "t2", "o1"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("other tenant must not see the order, got %v", err)
	}
	if _, err := svc.ListOrders(ctx, " ", domain.ListOrdersFilter{}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	orders, err := svc.ListOrders(ctx, "t1", domain.ListOrdersFilter{Status: "placed"})
	if err != nil || len(orders) != 1 {
		t.Fatalf("expected one placed order, got %v %v", orders, err)
	}
}
