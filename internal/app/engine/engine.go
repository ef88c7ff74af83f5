package engine

import (
	"context"

	"restaurant-system/internal/app/bootstrap"
	"restaurant-system/internal/common/config"
	"restaurant-system/internal/common/logger"
	"restaurant-system/internal/microservices/fulfillment"
)

// Run hosts the fulfillment workflow and its dispatch activity on the
// configured task queue until ctx is done.
func Run(ctx context.Context, cfg config.App, lg *logger.Logger) error {
	d, err := bootstrap.Open(ctx, cfg, bootstrap.Need{Rabbit: true, Temporal: true}, lg)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := d.DeclareTopology(); err != nil {
		return err
	}

	w := fulfillment.NewWorker(d.Temporal, cfg.Temporal.TaskQueue, fulfillment.NewActivities(d.Rabbit, lg))
	lg.Info("service_started", map[string]any{"task_queue": cfg.Temporal.TaskQueue, "namespace": cfg.Temporal.Namespace})
	return fulfillment.RunWorker(ctx, w)
}
