package order

import (
	"net/http"

	"restaurant-system/internal/common/logger"
	inventory "restaurant-system/internal/microservices/inventory/service"
	"restaurant-system/internal/microservices/order/handlers"
	"restaurant-system/internal/microservices/order/service"
	workflow "restaurant-system/internal/microservices/workflow/service"
	"restaurant-system/internal/repository"
)

// Register builds the order and product services over repo and adds their
// routes to mux. starter may be nil when no execution engine is configured.
func Register(
	mux *http.ServeMux,
	repo repository.Repository,
	stages workflow.StageServiceInterface,
	pub workflow.Publisher,
	starter service.WorkflowStarter,
	lg *logger.Logger,
) *handlers.Handler {
	inv := inventory.NewInventoryService(repo.Products, lg)
	orders := service.NewOrderService(repo.Orders, inv, stages, pub, starter, lg)
	products := service.NewProductService(repo.Products, lg)

	h := handlers.New(orders, products)
	h.Register(mux)
	return h
}
