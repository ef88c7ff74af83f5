package service

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"restaurant-system/internal/common/logger"
	"restaurant-system/internal/common/tracing"
	"restaurant-system/internal/connections/rabbitmq"
	"restaurant-system/internal/domain"
)

const NotificationsQueue = "notifications_queue"

// SubscriberService consumes the notifications fanout and logs every event.
// It is the reference consumer of RabbitSink.
type SubscriberService struct {
	ch    *amqp.Channel
	queue string
	log   *logger.Logger

	// Handle, when set, receives every decoded notification.
	Handle func(ctx context.Context, n domain.Notification)
}

func NewSubscriberService(ch *amqp.Channel, lg *logger.Logger) *SubscriberService {
	if lg == nil {
		lg = logger.Nop()
	}
	return &SubscriberService{ch: ch, queue: NotificationsQueue, log: lg}
}

func (s *SubscriberService) Run(ctx context.Context) error {
	if err := s.ch.ExchangeDeclare(rabbitmq.NotificationsExchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", rabbitmq.NotificationsExchange, err)
	}
	if _, err := s.ch.QueueDeclare(s.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", s.queue, err)
	}
	if err := s.ch.QueueBind(s.queue, "", rabbitmq.NotificationsExchange, false, nil); err != nil {
		return fmt.Errorf("bind %s: %w", s.queue, err)
	}

	msgs, err := s.ch.Consume(s.queue, "notificator", true, false, false, false, nil)
	if err != nil {
		return err
	}
	s.log.Info("subscriber_started", map[string]any{"queue": s.queue})

	for {
		select {
		case <-ctx.Done():
			_ = s.ch.Cancel("notificator", false)
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("notifications consumer closed")
			}
			s.handle(tracing.ExtractAMQP(ctx, d.Headers), d.Body)
		}
	}
}

func (s *SubscriberService) handle(ctx context.Context, body []byte) {
	var n domain.Notification
	if err := json.Unmarshal(body, &n); err != nil {
		s.log.Error("notification_decode_failed", err, nil)
		return
	}
	s.log.InfoCtx(ctx, "notification_received", map[string]any{
		"subject":   n.Subject,
		"type":      n.Event.Type,
		"tenant_id": n.Event.Detail.TenantID,
		"order_id":  n.Event.Detail.OrderID,
		"status":    n.Event.Detail.Status,
	})
	if s.Handle != nil {
		s.Handle(ctx, n)
	}
}
