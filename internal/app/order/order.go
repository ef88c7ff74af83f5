package order

import (
	"context"
	"net/http"
	"strconv"

	"golang.org/x/sync/errgroup"

	"restaurant-system/internal/app/bootstrap"
	"restaurant-system/internal/common/config"
	"restaurant-system/internal/common/httpx"
	"restaurant-system/internal/common/logger"
	"restaurant-system/internal/microservices/gateway"
	orders "restaurant-system/internal/microservices/order"
	stagehandler "restaurant-system/internal/microservices/stageworker/handler"
	stageworker "restaurant-system/internal/microservices/stageworker/service"
	"restaurant-system/internal/microservices/tracker"
	workflow "restaurant-system/internal/microservices/workflow/service"
)

// Service is the order process: order intake, stage transitions, the read
// API and subscriber connections behind one listener.
type Service struct {
	Handler http.Handler
	Gateway *gateway.Gateway
}

// New wires every component over the open backends in d.
func New(d *bootstrap.Deps, lg *logger.Logger) *Service {
	if lg == nil {
		lg = logger.Nop()
	}
	cfg := d.Config
	gw := gateway.New(d.Repo.Connections, d.Sink(), cfg.WebSocket.TTL(), cfg.WebSocket.PushConcurrency, lg)

	engine := workflow.NewEngine(d.Repo.Orders, lg, workflow.WithStrictOrdering(cfg.Worker.StrictOrdering))
	stages := workflow.NewStageService(engine, d.Callback(), gw.Fanout, lg)
	worker := stageworker.NewStageWorker(stages, lg, cfg.Worker.Name, cfg.Worker.Prefetch, cfg.Worker.AutoComplete)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", d.HealthHandler)
	orders.Register(mux, d.Repo, stages, gw.Fanout, d.Starter(), lg)
	tracker.Register(mux, d.Repo.Orders, engine)
	gw.Register(mux)
	stagehandler.NewStageHandler(worker).Register(mux)

	h := httpx.Chain(mux,
		httpx.Tracing("order-service"),
		httpx.RequestLog(lg),
		httpx.MaxConcurrent(int64(cfg.HTTP.MaxConcurrent)),
	)
	return &Service{Handler: h, Gateway: gw}
}

// Run serves the order process until ctx is done.
func Run(ctx context.Context, cfg config.App, lg *logger.Logger) error {
	d, err := bootstrap.Open(ctx, cfg, bootstrap.NeedsFor(cfg.Runtime), lg)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := d.DeclareTopology(); err != nil {
		return err
	}

	svc := New(d, lg)
	addr := ":" + strconv.Itoa(cfg.HTTP.Port)
	lg.Info("service_started", map[string]any{"addr": addr, "max_concurrent": cfg.HTTP.MaxConcurrent, "store": cfg.Runtime.Store, "sink": cfg.Runtime.Sink})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpx.New(addr, svc.Handler).Run(gctx) })
	g.Go(func() error { return svc.Gateway.Run(gctx, cfg.WebSocket.ReaperInterval()) })
	return g.Wait()
}
