package tracker

import (
	"context"
	"net/http"

	"restaurant-system/internal/common/httpx"
	"restaurant-system/internal/common/logger"
	"restaurant-system/internal/microservices/tracker/handler"
	"restaurant-system/internal/microservices/tracker/service"
	workflow "restaurant-system/internal/microservices/workflow/service"
	"restaurant-system/internal/repository"
)

// Register adds the read API over orders to mux.
func Register(mux *http.ServeMux, orders repository.OrderRepositoryInterface, engine workflow.EngineInterface) {
	svc := service.NewTrackerService(engine, orders)
	handler.Register(mux, handler.New(svc))
}

// Start serves the read API on addr until ctx is done.
func Start(ctx context.Context, addr string, orders repository.OrderRepositoryInterface, engine workflow.EngineInterface, lg *logger.Logger, mws ...httpx.Middleware) error {
	mux := handler.Router(handler.New(service.NewTrackerService(engine, orders)))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	lg.Info("tracking_listening", map[string]any{"addr": addr})
	return httpx.New(addr, httpx.Chain(mux, mws...)).Run(ctx)
}
