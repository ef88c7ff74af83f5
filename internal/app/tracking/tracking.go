package tracking

import (
	"context"
	"strconv"

	"restaurant-system/internal/app/bootstrap"
	"restaurant-system/internal/common/config"
	"restaurant-system/internal/common/httpx"
	"restaurant-system/internal/common/logger"
	"restaurant-system/internal/microservices/tracker"
	workflow "restaurant-system/internal/microservices/workflow/service"
)

// Run serves the read-only order API until ctx is done. It only needs the store.
func Run(ctx context.Context, cfg config.App, lg *logger.Logger) error {
	d, err := bootstrap.Open(ctx, cfg, bootstrap.Need{Store: true}, lg)
	if err != nil {
		return err
	}
	defer d.Close()

	engine := workflow.NewEngine(d.Repo.Orders, lg)
	addr := ":" + strconv.Itoa(cfg.HTTP.Port)
	return tracker.Start(ctx, addr, d.Repo.Orders, engine, lg,
		httpx.Tracing("tracking-service"),
		httpx.RequestLog(lg),
		httpx.MaxConcurrent(int64(cfg.HTTP.MaxConcurrent)),
	)
}
