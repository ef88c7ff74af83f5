package stageworker

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"restaurant-system/internal/common/logger"
	"restaurant-system/internal/connections/rabbitmq"
	"restaurant-system/internal/domain"
	"restaurant-system/internal/microservices/stageworker/service"
)

// Start consumes every stage queue on its own channel until ctx is done.
// The first consumer to fail stops the others.
func Start(ctx context.Context, rmqClient *rabbitmq.Client, worker *service.StageWorker, stages []domain.Stage, lg *logger.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, st := range stages {
		ch, err := rmqClient.NewChannel()
		if err != nil {
			return fmt.Errorf("open channel for %s: %w", st, err)
		}
		g.Go(func() error {
			defer ch.Close()
			if err := worker.Consume(gctx, ch, st, rabbitmq.StageQueue(string(st))); err != nil {
				lg.Error("stage_consumer_stopped", err, map[string]any{"stage": st})
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
