package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"restaurant-system/internal/domain"
	"restaurant-system/internal/repository"
	"restaurant-system/internal/repository/memory"
)

func seedOrder(t *testing.T, s *memory.Store, tenant, id string) {
	t.Helper()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := s.PutOrder(context.Background(), &domain.Order{
		TenantID: tenant, OrderID: id, Status: domain.StatusPlaced,
		Workflow: domain.NewWorkflow(), CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("seed order: %v", err)
	}
}

// steppingClock returns a strictly increasing time on every call.
func steppingClock() func() time.Time {
	var n atomic.Int64
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return base.Add(time.Duration(n.Add(1)) * time.Second) }
}

func TestEngine_ClaimTwiceKeepsStartedAt(t *testing.T) {
	t.Parallel()

	store := memory.New()
	seedOrder(t, store, "t1", "o1")
	eng := NewEngine(store, nil, WithClock(steppingClock()))
	ctx := context.Background()

	first, err := eng.ClaimStage(ctx, "t1", "o1", domain.StageKitchen, "tok-a", "cook-a")
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	second, err := eng.ClaimStage(ctx, "t1", "o1", domain.StageKitchen, "tok-b", "cook-b")
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if !first.StartedAt.Equal(second.StartedAt) {
		t.Fatalf("startedAt changed: %v -> %v", first.StartedAt, second.StartedAt)
	}

	o, _ := eng.Status(ctx, "t1", "o1")
	ks := o.Workflow.Kitchen
	if ks.TaskToken != "tok-b" || ks.Actor != "cook-b" || ks.Status != domain.StageInProgress {
		t.Fatalf("unexpected kitchen stage: %+v", ks)
	}
	if o.Status != domain.StatusKitchenInProgress {
		t.Fatalf("expected kitchen_in_progress, got %q", o.Status)
	}
}

func TestEngine_CompleteTwice(t *testing.T) {
	t.Parallel()

	store := memory.New()
	seedOrder(t, store, "t1", "o1")
	eng := NewEngine(store, nil, WithClock(steppingClock()))
	ctx := context.Background()

	if _, err := eng.ClaimStage(ctx, "t1", "o1", domain.StageKitchen, "t1-token", "kitchen"); err != nil {
		t.Fatalf("claim: %v", err)
	}

	res, err := eng.CompleteStage(ctx, "t1", "o1", domain.StageKitchen, "operator")
	if err != nil {
		t.Fatalf("first complete: %v", err)
	}
	if res.Token != "t1-token" {
		t.Fatalf("expected token t1-token, got %q", res.Token)
	}
	before, _ := eng.Status(ctx, "t1", "o1")

	_, err = eng.CompleteStage(ctx, "t1", "o1", domain.StageKitchen, "operator-2")
	if !errors.Is(err, domain.ErrStageNotPending) {
		t.Fatalf("expected ErrStageNotPending, got %v", err)
	}
	after, _ := eng.Status(ctx, "t1", "o1")
	if !after.UpdatedAt.Equal(before.UpdatedAt) || after.Workflow.Kitchen.Actor != "operator" {
		t.Fatalf("second completion changed state: %+v", after.Workflow.Kitchen)
	}
}

func TestEngine_CompleteNeverClaimed(t *testing.T) {
	t.Parallel()

	store := memory.New()
	seedOrder(t, store, "t1", "o1")
	eng := NewEngine(store, nil)

	_, err := eng.CompleteStage(context.Background(), "t1", "o1", domain.StagePackaging, "op")
	if !errors.Is(err, domain.ErrStageNotPending) {
		t.Fatalf("expected ErrStageNotPending, got %v", err)
	}
	_, err = eng.CompleteStage(context.Background(), "t1", "missing", domain.StagePackaging, "op")
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestEngine_ConcurrentCompleteExactlyOnce(t *testing.T) {
	t.Parallel()

	store := memory.New()
	eng := NewEngine(store, nil)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("o%d", i)
		seedOrder(t, store, "t1", id)
		if _, err := eng.ClaimStage(ctx, "t1", id, domain.StageDelivery, "tok-"+id, "courier"); err != nil {
			t.Fatalf("claim: %v", err)
		}

		var (
			wg        sync.WaitGroup
			wins      atomic.Int32
			conflicts atomic.Int32
		)
		for w := 0; w < 16; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := eng.CompleteStage(ctx, "t1", id, domain.StageDelivery, "courier")
				switch {
				case err == nil:
					wins.Add(1)
				case errors.Is(err, domain.ErrStageNotPending):
					conflicts.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		if wins.Load() != 1 || conflicts.Load() != 15 {
			t.Fatalf("%s: expected 1 win and 15 conflicts, got %d and %d", id, wins.Load(), conflicts.Load())
		}
	}
}

func TestEngine_StrictOrdering(t *testing.T) {
	t.Parallel()

	store := memory.New()
	seedOrder(t, store, "t1", "o1")
	eng := NewEngine(store, nil, WithStrictOrdering(true))
	ctx := context.Background()

	_, err := eng.ClaimStage(ctx, "t1", "o1", domain.StageDelivery, "tok", "courier")
	if !errors.Is(err, domain.ErrStageOutOfOrder) {
		t.Fatalf("expected ErrStageOutOfOrder, got %v", err)
	}

	for _, st := range domain.Stages {
		if _, err := eng.ClaimStage(ctx, "t1", "o1", st, "tok-"+string(st), string(st)); err != nil {
			t.Fatalf("claim %s: %v", st, err)
		}
		if _, err := eng.CompleteStage(ctx, "t1", "o1", st, string(st)); err != nil {
			t.Fatalf("complete %s: %v", st, err)
		}
	}
	o, _ := eng.Status(ctx, "t1", "o1")
	if o.Status != domain.StatusDelivered {
		t.Fatalf("expected delivered, got %q", o.Status)
	}
}

func TestEngine_Validation(t *testing.T) {
	t.Parallel()

	eng := NewEngine(memory.New(), nil)
	ctx := context.Background()

	if _, err := eng.ClaimStage(ctx, "", "o1", domain.StageKitchen, "tok", "a"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty tenant, got %v", err)
	}
	if _, err := eng.ClaimStage(ctx, "t1", "o1", domain.StageKitchen, "", "a"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty token, got %v", err)
	}
}

// corruptingRepo reports a successful update but hands back an order whose
// stage still carries a token.
type corruptingRepo struct {
	repository.OrderRepositoryInterface
}

func (r corruptingRepo) UpdateOrder(ctx context.Context, tenantID, orderID string, mutate repository.OrderMutation) (*domain.Order, error) {
	o, err := r.OrderRepositoryInterface.UpdateOrder(ctx, tenantID, orderID, mutate)
	if err != nil {
		return nil, err
	}
	o.Workflow.Kitchen.TaskToken = "leaked"
	return o, nil
}

func TestEngine_InvariantViolation(t *testing.T) {
	t.Parallel()

	store := memory.New()
	seedOrder(t, store, "t1", "o1")
	ctx := context.Background()
	if _, err := NewEngine(store, nil).ClaimStage(ctx, "t1", "o1", domain.StageKitchen, "tok", "cook"); err != nil {
		t.Fatalf("claim: %v", err)
	}

	eng := NewEngine(corruptingRepo{store}, nil)
	_, err := eng.CompleteStage(ctx, "t1", "o1", domain.StageKitchen, "op")
	if !errors.Is(err, domain.ErrInvariantViolation) {
		t.Fatalf("expected ErrInvariantViolation, got %v", err)
	}
	if domain.HTTPStatus(err) != 500 {
		t.Fatalf("expected 500, got %d", domain.HTTPStatus(err))
	}
}
