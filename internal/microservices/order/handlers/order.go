package handlers

import (
	"net/http"

	"restaurant-system/internal/common/httpx"
	"restaurant-system/internal/domain"
	"restaurant-system/internal/microservices/order/service"
)

type OrderHandler struct {
	service service.OrderServiceInterface
}

func NewOrderHandler(s service.OrderServiceInterface) *OrderHandler {
	return &OrderHandler{service: s}
}

func (oh *OrderHandler) AddOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateOrderRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteProblem(w, http.StatusBadRequest, "validation_error", "invalid JSON body")
		return
	}

	resp, err := oh.service.CreateOrder(r.Context(), httpx.TenantID(r), r.Header.Get("Idempotency-Key"), req)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, resp)
}

func (oh *OrderHandler) CompleteStage(w http.ResponseWriter, r *http.Request) {
	resp, err := oh.service.CompleteStage(r.Context(),
		httpx.TenantID(r), r.PathValue("orderId"), r.PathValue("stage"), Actor(r))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
