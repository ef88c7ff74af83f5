package stageworker

import (
	"context"
	"errors"

	"restaurant-system/internal/app/bootstrap"
	"restaurant-system/internal/common/config"
	"restaurant-system/internal/common/logger"
	"restaurant-system/internal/domain"
	notificator "restaurant-system/internal/microservices/notificator/service"
	consumers "restaurant-system/internal/microservices/stageworker"
	"restaurant-system/internal/microservices/stageworker/service"
	workflow "restaurant-system/internal/microservices/workflow/service"
)

// Run consumes the stage queues listed in stages (all stages when empty)
// until ctx is done.
func Run(ctx context.Context, cfg config.App, stages []domain.Stage, lg *logger.Logger) error {
	need := bootstrap.NeedsFor(cfg.Runtime)
	need.Rabbit = true
	d, err := bootstrap.Open(ctx, cfg, need, lg)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := d.DeclareTopology(); err != nil {
		return err
	}

	if len(stages) == 0 {
		stages = domain.Stages
	}
	engine := workflow.NewEngine(d.Repo.Orders, lg, workflow.WithStrictOrdering(cfg.Worker.StrictOrdering))
	svc := workflow.NewStageService(engine, d.Callback(), notificator.NewSinkPublisher(d.Sink()), lg)
	worker := service.NewStageWorker(svc, lg, cfg.Worker.Name, cfg.Worker.Prefetch, cfg.Worker.AutoComplete)

	lg.Info("service_started", map[string]any{"worker": worker.WorkerName, "stages": stages, "auto_complete": worker.AutoComplete})
	if err := consumers.Start(ctx, d.Rabbit, worker, stages, lg); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// ParseStages turns a comma-separated list into stages, rejecting unknown names.
func ParseStages(list []string) ([]domain.Stage, error) {
	out := make([]domain.Stage, 0, len(list))
	for _, s := range list {
		st, err := domain.ParseStage(s)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}
