package handler

import "net/http"

// Register adds the read API to mux.
func Register(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("GET /orders", h.TrackerHandler.ListOrders)
	mux.HandleFunc("GET /tenants/{tenantId}/orders", h.TrackerHandler.ListOrders)
	mux.HandleFunc("GET /tenants/{tenantId}/orders/{orderId}", h.TrackerHandler.GetOrder)
	mux.HandleFunc("GET /tenants/{tenantId}/orders/{orderId}/status", h.TrackerHandler.GetStatus)
	mux.HandleFunc("GET /tenants/{tenantId}/orders/{orderId}/timeline", h.TrackerHandler.GetTimeline)
}

// Router is the standalone mux of the tracking service.
func Router(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	Register(mux, h)
	return mux
}
