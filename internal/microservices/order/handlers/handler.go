package handlers

import (
	"net/http"
	"strings"

	"restaurant-system/internal/microservices/order/service"
)

type Handler struct {
	OrderHandler   *OrderHandler
	ProductHandler *ProductHandler
}

func New(orders service.OrderServiceInterface, products service.ProductServiceInterface) *Handler {
	return &Handler{
		OrderHandler:   NewOrderHandler(orders),
		ProductHandler: NewProductHandler(products),
	}
}

// Register adds the write API. Every tenant scoped route also exists without
// the {tenantId} segment, in which case the tenant comes from X-Tenant-Id.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /orders", h.OrderHandler.AddOrder)
	mux.HandleFunc("POST /tenants/{tenantId}/orders", h.OrderHandler.AddOrder)
	mux.HandleFunc("POST /tenants/{tenantId}/orders/{orderId}/stages/{stage}/complete", h.OrderHandler.CompleteStage)

	mux.HandleFunc("POST /products", h.ProductHandler.AddProduct)
	mux.HandleFunc("POST /tenants/{tenantId}/products", h.ProductHandler.AddProduct)
	mux.HandleFunc("GET /products", h.ProductHandler.ListProducts)
	mux.HandleFunc("GET /tenants/{tenantId}/products", h.ProductHandler.ListProducts)
}

// Actor identifies the operator completing a stage.
func Actor(r *http.Request) string {
	if a := strings.TrimSpace(r.Header.Get("X-User-Id")); a != "" {
		return a
	}
	if a := strings.TrimSpace(r.Header.Get("X-Role")); a != "" {
		return a
	}
	return "operator"
}
