package handler

import (
	"net/http"

	"restaurant-system/internal/common/httpx"
	"restaurant-system/internal/domain"
	"restaurant-system/internal/microservices/tracker/service"
)

type TrackerHandler struct {
	service service.TrackerServiceInterface
}

func NewTrackerHandler(svc service.TrackerServiceInterface) *TrackerHandler {
	return &TrackerHandler{service: svc}
}

func (h *TrackerHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.GetOrder(r.Context(), httpx.TenantID(r), r.PathValue("orderId"))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, o)
}

func (h *TrackerHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.GetStatus(r.Context(), httpx.TenantID(r), r.PathValue("orderId"))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, v)
}

func (h *TrackerHandler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("orderId")
	events, err := h.service.GetTimeline(r.Context(), httpx.TenantID(r), id)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"orderId": id, "events": events})
}

// ListOrders: ?status= is a prefix filter, ?limit= defaults to 50 (max 200).
func (h *TrackerHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.service.ListOrders(r.Context(), httpx.TenantID(r), domain.ListOrdersFilter{
		Status: q.Get("status"),
		Limit:  httpx.AtoiDefault(q.Get("limit"), domain.DefaultListLimit),
	})
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	if items == nil {
		items = []domain.Order{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}
