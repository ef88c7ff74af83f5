package handler

import (
	"encoding/json"
	"net/http"

	"restaurant-system/internal/common/httpx"
	"restaurant-system/internal/domain"
	"restaurant-system/internal/microservices/stageworker/service"
)

type StageHandler struct {
	worker service.StageWorkerInterface
}

func NewStageHandler(worker service.StageWorkerInterface) *StageHandler {
	return &StageHandler{worker: worker}
}

func (h *StageHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /stages/{stage}/messages", h.Trigger)
}

type triggerRequest struct {
	Messages []json.RawMessage `json:"messages"`
}

type triggerResponse struct {
	Processed []domain.StageOutcome `json:"processed"`
}

// Trigger runs a batch of stage messages synchronously and reports one
// outcome per message.
func (h *StageHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	stage, err := domain.ParseStage(r.PathValue("stage"))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	var req triggerRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteProblem(w, http.StatusBadRequest, "validation_error", "invalid JSON body")
		return
	}
	bodies := make([][]byte, len(req.Messages))
	for i, m := range req.Messages {
		bodies[i] = m
	}
	httpx.WriteJSON(w, http.StatusOK, triggerResponse{Processed: h.worker.HandleBatch(r.Context(), stage, bodies)})
}
