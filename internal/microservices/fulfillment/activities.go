package fulfillment

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.temporal.io/sdk/activity"

	"restaurant-system/internal/callback"
	"restaurant-system/internal/common/logger"
	"restaurant-system/internal/common/tracing"
	"restaurant-system/internal/connections/rabbitmq"
	"restaurant-system/internal/domain"
)

// Publisher is the confirm-mode publish of rabbitmq.Client.
type Publisher interface {
	Publish(ctx context.Context, exchange, key string, body []byte, headers amqp.Table, contentType string, persistent bool) error
}

type Activities struct {
	publisher Publisher
	log       *logger.Logger
}

func NewActivities(pub Publisher, lg *logger.Logger) *Activities {
	if lg == nil {
		lg = logger.Nop()
	}
	return &Activities{publisher: pub, log: lg}
}

// DispatchStage queues the stage for a worker and leaves the activity open;
// it is completed by the callback adapter using the queued token.
func (a *Activities) DispatchStage(ctx context.Context, req StageRequest) (StageResult, error) {
	info := activity.GetInfo(ctx)
	if err := a.dispatch(ctx, info.TaskToken, req); err != nil {
		return StageResult{}, err
	}
	return StageResult{}, activity.ErrResultPending
}

func (a *Activities) dispatch(ctx context.Context, rawToken []byte, req StageRequest) error {
	body, err := json.Marshal(domain.StageMessage{
		TenantID:  req.TenantID,
		OrderID:   req.OrderID,
		TaskToken: callback.EncodeToken(rawToken),
	})
	if err != nil {
		return fmt.Errorf("marshal stage message: %w", err)
	}

	queue := rabbitmq.StageQueue(string(req.Stage))
	headers := tracing.InjectAMQP(ctx, amqp.Table{"x-tenant-id": req.TenantID})
	if err := a.publisher.Publish(ctx, "", queue, body, headers, "application/json", true); err != nil {
		a.log.Error("stage_dispatch_failed", err, map[string]any{"order_id": req.OrderID, "stage": req.Stage})
		return fmt.Errorf("publish to %s: %w", queue, err)
	}
	a.log.Info("stage_dispatched", map[string]any{
		"tenant_id": req.TenantID, "order_id": req.OrderID, "stage": req.Stage, "queue": queue,
	})
	return nil
}
