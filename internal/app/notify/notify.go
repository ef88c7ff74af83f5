package notify

import (
	"context"

	"restaurant-system/internal/app/bootstrap"
	"restaurant-system/internal/common/config"
	"restaurant-system/internal/common/logger"
	"restaurant-system/internal/microservices/notificator"
)

// Run prints every notification published to the fanout exchange.
func Run(ctx context.Context, cfg config.App, lg *logger.Logger) error {
	d, err := bootstrap.Open(ctx, cfg, bootstrap.Need{Rabbit: true}, lg)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := d.DeclareTopology(); err != nil {
		return err
	}
	return notificator.Start(ctx, d.Rabbit, lg)
}
