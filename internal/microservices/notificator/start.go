package notificator

import (
	"context"

	"restaurant-system/internal/common/logger"
	"restaurant-system/internal/connections/rabbitmq"
	"restaurant-system/internal/microservices/notificator/service"
)

// Start runs the notifications subscriber until ctx is done.
func Start(ctx context.Context, rmqClient *rabbitmq.Client, lg *logger.Logger) error {
	svc := service.NewSubscriberService(rmqClient.Channel(), lg)
	if err := svc.Run(ctx); err != nil {
		lg.Error("subscriber_stopped", err, nil)
		return err
	}
	return nil
}
