package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/twmb/franz-go/pkg/kgo"

	"restaurant-system/internal/common/logger"
	"restaurant-system/internal/common/tracing"
	"restaurant-system/internal/connections/rabbitmq"
	"restaurant-system/internal/domain"
)

// AMQPPublisher is satisfied by rabbitmq.Client (publisher confirms).
type AMQPPublisher interface {
	Publish(ctx context.Context, exchange, key string, body []byte, headers amqp.Table, contentType string, persistent bool) error
}

// RabbitSink publishes notifications to the fanout exchange.
type RabbitSink struct {
	pub      AMQPPublisher
	exchange string
}

func NewRabbitSink(pub AMQPPublisher) *RabbitSink {
	return &RabbitSink{pub: pub, exchange: rabbitmq.NotificationsExchange}
}

func (s *RabbitSink) Notify(ctx context.Context, n domain.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	headers := tracing.InjectAMQP(ctx, amqp.Table{
		"x-source":     "order-service",
		"x-event-type": n.Event.Type,
		"x-tenant-id":  n.Event.Detail.TenantID,
		"x-subject":    n.Subject,
	})
	return s.pub.Publish(ctx, s.exchange, "", body, headers, "application/json", true)
}

// KafkaProducer is satisfied by *kgo.Client.
type KafkaProducer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaSink writes one record per notification keyed by tenant, so a
// tenant's events stay ordered within a partition.
type KafkaSink struct {
	client KafkaProducer
	topic  string
}

func NewKafkaSink(client KafkaProducer, topic string) *KafkaSink {
	return &KafkaSink{client: client, topic: topic}
}

func (s *KafkaSink) Notify(ctx context.Context, n domain.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	headers := append(tracing.KafkaHeaders(ctx),
		kgo.RecordHeader{Key: "event-type", Value: []byte(n.Event.Type)},
		kgo.RecordHeader{Key: "subject", Value: []byte(n.Subject)},
	)
	rec := &kgo.Record{
		Topic:   s.topic,
		Key:     []byte(n.Event.Detail.TenantID),
		Value:   body,
		Headers: headers,
	}
	if err := s.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("kafka produce to %s: %w", s.topic, err)
	}
	return nil
}

// MultiSink forwards to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Notify(ctx context.Context, n domain.Notification) error {
	var errs []error
	for _, s := range m {
		if err := s.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink only logs notifications; it backs --sink=none.
type LogSink struct {
	log *logger.Logger
}

func NewLogSink(lg *logger.Logger) *LogSink {
	if lg == nil {
		lg = logger.Nop()
	}
	return &LogSink{log: lg}
}

func (s *LogSink) Notify(_ context.Context, n domain.Notification) error {
	s.log.Info("notification", map[string]any{"subject": n.Subject, "message": n.Message})
	return nil
}

// SinkPublisher forwards events to the sink only. Processes without a local
// socket hub use it so they never prune connections another process owns.
type SinkPublisher struct {
	sink Sink
}

func NewSinkPublisher(sink Sink) *SinkPublisher {
	return &SinkPublisher{sink: sink}
}

func (p *SinkPublisher) Publish(ctx context.Context, tenantID, eventType string, detail domain.EventDetail) (domain.FanoutResult, error) {
	detail.TenantID = tenantID
	if p.sink == nil {
		return domain.FanoutResult{}, nil
	}
	err := p.sink.Notify(ctx, domain.NewNotification(domain.Event{Type: eventType, Detail: detail}))
	if err != nil {
		return domain.FanoutResult{}, fmt.Errorf("notify sink: %w", err)
	}
	return domain.FanoutResult{}, nil
}
