package gateway

import (
	"context"
	"net/http"
	"time"

	"restaurant-system/internal/common/logger"
	"restaurant-system/internal/microservices/gateway/handler"
	"restaurant-system/internal/microservices/gateway/service"
	notificator "restaurant-system/internal/microservices/notificator/service"
	"restaurant-system/internal/repository"
)

// Gateway owns the connection registry, the local socket hub and the
// fan-out that pushes events through both.
type Gateway struct {
	Registry *service.RegistryService
	Hub      *service.Hub
	Fanout   *notificator.FanoutService

	handler *handler.ConnectionHandler
	log     *logger.Logger
}

func New(conns repository.ConnectionRepositoryInterface, sink notificator.Sink, ttl time.Duration, pushConcurrency int, lg *logger.Logger) *Gateway {
	if lg == nil {
		lg = logger.Nop()
	}
	reg := service.NewRegistryService(conns, lg, ttl)
	hub := service.NewHub(reg, lg)
	fan := notificator.NewFanoutService(reg, hub, sink, lg, pushConcurrency)
	return &Gateway{
		Registry: reg,
		Hub:      hub,
		Fanout:   fan,
		handler:  handler.NewConnectionHandler(reg, hub, fan),
		log:      lg,
	}
}

func (g *Gateway) Register(mux *http.ServeMux) {
	g.handler.Register(mux)
}

// Run reaps expired connections until ctx is done and then closes every
// live socket.
func (g *Gateway) Run(ctx context.Context, reaperInterval time.Duration) error {
	defer g.Hub.CloseAll()
	g.log.Info("reaper_started", map[string]any{"interval": reaperInterval.String()})
	return g.Registry.RunReaper(ctx, reaperInterval)
}
