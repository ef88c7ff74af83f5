package handlers

import (
	"net/http"

	"restaurant-system/internal/common/httpx"
	"restaurant-system/internal/domain"
	"restaurant-system/internal/microservices/order/service"
)

type ProductHandler struct {
	service service.ProductServiceInterface
}

func NewProductHandler(s service.ProductServiceInterface) *ProductHandler {
	return &ProductHandler{service: s}
}

func (ph *ProductHandler) AddProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateProductRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteProblem(w, http.StatusBadRequest, "validation_error", "invalid JSON body")
		return
	}
	resp, err := ph.service.CreateProduct(r.Context(), httpx.TenantID(r), req)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, resp)
}

func (ph *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	items, err := ph.service.ListProducts(r.Context(), httpx.TenantID(r))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	if items == nil {
		items = []domain.Product{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}
