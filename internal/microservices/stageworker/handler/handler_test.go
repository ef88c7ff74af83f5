package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"restaurant-system/internal/callback"
	"restaurant-system/internal/domain"
	"restaurant-system/internal/microservices/stageworker/service"
	workflow "restaurant-system/internal/microservices/workflow/service"
	"restaurant-system/internal/repository/memory"
)

func TestTrigger(t *testing.T) {
	t.Parallel()

	store := memory.New()
	now := time.Now().UTC()
	if err := store.PutOrder(context.Background(), &domain.Order{
		TenantID: "t1", OrderID: "o1", Status: domain.StatusPlaced,
		Workflow: domain.NewWorkflow(), CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	stages := workflow.NewStageService(workflow.NewEngine(store, nil), callback.NewAdapter(callback.NewLogEngine(nil), nil), nil, nil)
	mux := http.NewServeMux()
	NewStageHandler(service.NewStageWorker(stages, nil, "http", 1, true)).Register(mux)

	body := `{"messages":[{"tenantId":"t1","orderId":"o1","taskToken":"tok"},"oops"]}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stages/kitchen/messages", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Processed []domain.StageOutcome `json:"processed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Processed) != 2 || resp.Processed[0].Status != domain.OutcomeCompleted || resp.Processed[1].Status != domain.OutcomeSkipped {
		t.Fatalf("unexpected outcomes %+v", resp.Processed)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stages/dessert/messages", strings.NewReader(`{"messages":[]}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown stage, got %d", rec.Code)
	}
}
