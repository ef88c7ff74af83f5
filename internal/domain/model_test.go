package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func newOrder() *Order {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &Order{
		TenantID:  "t1",
		OrderID:   "o1",
		Status:    StatusPlaced,
		Workflow:  NewWorkflow(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestParseStage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Stage
		wantErr bool
	}{
		{in: "kitchen", want: StageKitchen},
		{in: " Packaging ", want: StagePackaging},
		{in: "DELIVERY", want: StageDelivery},
		{in: "grill", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := ParseStage(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidStage) {
					t.Fatalf("expected ErrInvalidStage, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestStageLabels(t *testing.T) {
	t.Parallel()

	want := map[Stage][2]OrderStatus{
		StageKitchen:   {StatusKitchenInProgress, StatusKitchenDone},
		StagePackaging: {StatusPackagingInProgress, StatusPackagingDone},
		StageDelivery:  {StatusDeliveryInProgress, StatusDelivered},
	}
	for st, labels := range want {
		if got := st.InProgressStatus(); got != labels[0] {
			t.Errorf("%s in progress: expected %q, got %q", st, labels[0], got)
		}
		if got := st.DoneStatus(); got != labels[1] {
			t.Errorf("%s done: expected %q, got %q", st, labels[1], got)
		}
	}
	if _, ok := StageKitchen.Previous(); ok {
		t.Fatal("kitchen must not have a previous stage")
	}
	if prev, _ := StageDelivery.Previous(); prev != StagePackaging {
		t.Fatalf("expected packaging before delivery, got %q", prev)
	}
}

func TestClaimStage_KeepsFirstStartedAt(t *testing.T) {
	t.Parallel()

	o := newOrder()
	first := time.Date(2024, 5, 1, 12, 1, 0, 0, time.UTC)
	second := first.Add(time.Minute)

	if err := o.ClaimStage(StageKitchen, "t1", "cook-a", first, false); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if err := o.ClaimStage(StageKitchen, "t2", "cook-b", second, false); err != nil {
		t.Fatalf("second claim: %v", err)
	}

	ws := o.Workflow.Kitchen
	if !ws.StartedAt.Equal(first) {
		t.Fatalf("expected startedAt %v, got %v", first, ws.StartedAt)
	}
	if ws.TaskToken != "t2" || ws.Actor != "cook-b" {
		t.Fatalf("expected latest token/actor, got %q/%q", ws.TaskToken, ws.Actor)
	}
	if o.Status != StatusKitchenInProgress || ws.Status != StageInProgress {
		t.Fatalf("unexpected status %q / %q", o.Status, ws.Status)
	}
	if !o.UpdatedAt.Equal(second) {
		t.Fatalf("expected updatedAt bumped to %v, got %v", second, o.UpdatedAt)
	}
}

func TestCompleteStage_GuardedByToken(t *testing.T) {
	t.Parallel()

	o := newOrder()
	at := time.Date(2024, 5, 1, 12, 5, 0, 0, time.UTC)

	if _, err := o.CompleteStage(StageKitchen, "op", at); !errors.Is(err, ErrStageNotPending) {
		t.Fatalf("expected ErrStageNotPending before claim, got %v", err)
	}

	if err := o.ClaimStage(StageKitchen, "tok", "cook", at, false); err != nil {
		t.Fatalf("claim: %v", err)
	}
	token, err := o.CompleteStage(StageKitchen, "op", at.Add(time.Minute))
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if token != "tok" {
		t.Fatalf("expected cleared token %q, got %q", "tok", token)
	}
	ws := o.Workflow.Kitchen
	if ws.Status != StageCompleted || ws.TaskToken != "" || ws.CompletedAt == nil {
		t.Fatalf("unexpected stage after completion: %+v", ws)
	}
	if o.Status != StatusKitchenDone {
		t.Fatalf("expected kitchen_done, got %q", o.Status)
	}

	if _, err := o.CompleteStage(StageKitchen, "op", at.Add(2*time.Minute)); !errors.Is(err, ErrStageNotPending) {
		t.Fatalf("expected ErrStageNotPending on second completion, got %v", err)
	}
	err = o.ClaimStage(StageKitchen, "tok2", "cook", at, false)
	if !errors.Is(err, ErrStageCompleted) || !IsConflict(err) {
		t.Fatalf("expected completed stage to reject claim, got %v", err)
	}
	if o.Workflow.Kitchen.TaskToken != "" {
		t.Fatalf("rejected claim must not store its token, got %q", o.Workflow.Kitchen.TaskToken)
	}
}

func TestClaimStage_StrictOrdering(t *testing.T) {
	t.Parallel()

	o := newOrder()
	at := time.Now().UTC()

	if err := o.ClaimStage(StagePackaging, "p", "packer", at, true); !errors.Is(err, ErrStageOutOfOrder) {
		t.Fatalf("expected ErrStageOutOfOrder, got %v", err)
	}
	if o.Workflow.Packaging.Status != StagePending {
		t.Fatalf("rejected claim must not mutate the stage")
	}
	if err := o.ClaimStage(StagePackaging, "p", "packer", at, false); err != nil {
		t.Fatalf("non-strict claim should be accepted: %v", err)
	}
}

func TestOrderClone_IsDeep(t *testing.T) {
	t.Parallel()

	o := newOrder()
	o.Items = []LineItem{{ProductID: "p1", Quantity: 1}}
	at := time.Now().UTC()
	if err := o.ClaimStage(StageKitchen, "tok", "cook", at, false); err != nil {
		t.Fatalf("claim: %v", err)
	}

	c := o.Clone()
	c.Items[0].Quantity = 9
	*c.Workflow.Kitchen.StartedAt = at.Add(time.Hour)
	c.Workflow.Kitchen.TaskToken = "other"

	if o.Items[0].Quantity != 1 || !o.Workflow.Kitchen.StartedAt.Equal(at) || o.Workflow.Kitchen.TaskToken != "tok" {
		t.Fatal("clone shares state with the original")
	}
}

func TestCreateOrderRequestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     CreateOrderRequest
		wantErr bool
	}{
		{name: "ok", req: CreateOrderRequest{Items: []OrderItemInput{{ProductID: "p1", Quantity: 2}}, Customer: Customer{Name: "Ana"}}},
		{name: "no_items", req: CreateOrderRequest{Customer: Customer{Name: "Ana"}}, wantErr: true},
		{name: "no_customer", req: CreateOrderRequest{Items: []OrderItemInput{{ProductID: "p1", Quantity: 1}}}, wantErr: true},
		{name: "zero_quantity", req: CreateOrderRequest{Items: []OrderItemInput{{ProductID: "p1"}}, Customer: Customer{Name: "Ana"}}, wantErr: true},
		{name: "missing_product", req: CreateOrderRequest{Items: []OrderItemInput{{Quantity: 1}}, Customer: Customer{Name: "Ana"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.req.Validate()
			if tt.wantErr && !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestKindAndHTTPStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantKind   string
		wantStatus int
	}{
		{name: "nil", err: nil, wantKind: "", wantStatus: http.StatusOK},
		{name: "validation", err: fmt.Errorf("%w: x", ErrValidation), wantKind: "validation_error", wantStatus: http.StatusBadRequest},
		{name: "stage", err: ErrInvalidStage, wantKind: "invalid_stage", wantStatus: http.StatusBadRequest},
		{name: "stock", err: ErrInsufficientStock, wantKind: "insufficient_stock", wantStatus: http.StatusBadRequest},
		{name: "product", err: fmt.Errorf("p9: %w", ErrProductNotFound), wantKind: "product_not_found", wantStatus: http.StatusNotFound},
		{name: "order", err: ErrOrderNotFound, wantKind: "order_not_found", wantStatus: http.StatusNotFound},
		{name: "conflict", err: fmt.Errorf("wrapped: %w", ErrStageNotPending), wantKind: "stage_not_pending", wantStatus: http.StatusConflict},
		{name: "invariant", err: ErrInvariantViolation, wantKind: "invariant_violation", wantStatus: http.StatusInternalServerError},
		{name: "deadline", err: context.DeadlineExceeded, wantKind: "timeout", wantStatus: http.StatusGatewayTimeout},
		{name: "unknown", err: errors.New("boom"), wantKind: "internal", wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Kind(tt.err); got != tt.wantKind {
				t.Fatalf("kind: expected %q, got %q", tt.wantKind, got)
			}
			if got := HTTPStatus(tt.err); got != tt.wantStatus {
				t.Fatalf("status: expected %d, got %d", tt.wantStatus, got)
			}
		})
	}
}
