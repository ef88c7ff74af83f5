package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"restaurant-system/internal/common/logger"
	"restaurant-system/internal/domain"
)

// Registry is the view of the connection registry the fan-out needs.
type Registry interface {
	ListActive(ctx context.Context, tenantID string) ([]domain.Connection, error)
	Remove(ctx context.Context, tenantID, connectionID string) error
}

// Pusher delivers a payload to one live connection and reports the outcome
// as a value: Delivered, Gone, NotHeld or DeliveryFailed.
type Pusher interface {
	Push(ctx context.Context, conn domain.Connection, payload []byte) domain.DeliveryResult
}

// Sink is the external notification channel; it receives every event once.
type Sink interface {
	Notify(ctx context.Context, n domain.Notification) error
}

type FanoutServiceInterface interface {
	Publish(ctx context.Context, tenantID, eventType string, detail domain.EventDetail) (domain.FanoutResult, error)
}

type FanoutService struct {
	registry Registry
	pusher   Pusher
	sink     Sink
	log      *logger.Logger
	limit    int

	tracer    trace.Tracer
	delivered metric.Int64Counter
	pruned    metric.Int64Counter
	failed    metric.Int64Counter
}

const defaultPushConcurrency = 16

func NewFanoutService(reg Registry, pusher Pusher, sink Sink, lg *logger.Logger, concurrency int) *FanoutService {
	if lg == nil {
		lg = logger.Nop()
	}
	if concurrency <= 0 {
		concurrency = defaultPushConcurrency
	}
	s := &FanoutService{
		registry: reg,
		pusher:   pusher,
		sink:     sink,
		log:      lg,
		limit:    concurrency,
		tracer:   otel.Tracer("notificator"),
	}

	meter := otel.Meter("notificator")
	var err error
	if s.delivered, err = meter.Int64Counter("fanout.delivered", metric.WithDescription("events pushed to live connections")); err != nil {
		lg.Error("metric_init_failed", err, map[string]any{"metric": "fanout.delivered"})
	}
	if s.pruned, err = meter.Int64Counter("fanout.pruned", metric.WithDescription("connections removed after a gone delivery")); err != nil {
		lg.Error("metric_init_failed", err, map[string]any{"metric": "fanout.pruned"})
	}
	if s.failed, err = meter.Int64Counter("fanout.failed", metric.WithDescription("push attempts that failed without gone")); err != nil {
		lg.Error("metric_init_failed", err, map[string]any{"metric": "fanout.failed"})
	}
	return s
}

// Publish pushes the event to every registered connection of the tenant,
// removes the ones reported gone once all pushes are done, and forwards the
// event to the sink exactly once. Per-connection errors end up in
// FanoutResult.Errors and never abort the pass.
func (s *FanoutService) Publish(ctx context.Context, tenantID, eventType string, detail domain.EventDetail) (domain.FanoutResult, error) {
	ctx, span := s.tracer.Start(ctx, "notificator.publish", trace.WithAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("event.type", eventType),
	))
	defer span.End()

	var res domain.FanoutResult
	detail.TenantID = tenantID
	ev := domain.Event{Type: eventType, Detail: detail}

	conns, err := s.registry.ListActive(ctx, tenantID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, fmt.Errorf("list connections of %s: %w", tenantID, err)
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return res, fmt.Errorf("marshal event: %w", err)
	}

	results := make([]domain.DeliveryResult, len(conns))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit)
	for i, c := range conns {
		g.Go(func() error {
			results[i] = s.pusher.Push(gctx, c, payload)
			return nil
		})
	}
	_ = g.Wait()

	var gone []domain.Connection
	for i, r := range results {
		switch r.Status {
		case domain.Delivered:
			res.Delivered++
		case domain.Gone:
			gone = append(gone, conns[i])
		case domain.NotHeld:
			res.Skipped++
		default:
			err := r.Err
			if err == nil {
				err = errors.New("delivery failed")
			}
			res.Errors = append(res.Errors, fmt.Errorf("connection %s: %w", conns[i].ConnectionID, err))
		}
	}

	for _, c := range gone {
		if err := s.registry.Remove(ctx, c.TenantID, c.ConnectionID); err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("prune %s: %w", c.ConnectionID, err))
			continue
		}
		res.Pruned++
		s.log.Debug("connection_pruned", map[string]any{"tenant_id": tenantID, "connection_id": c.ConnectionID})
	}

	var sinkErr error
	if s.sink != nil {
		if sinkErr = s.sink.Notify(ctx, domain.NewNotification(ev)); sinkErr != nil {
			span.RecordError(sinkErr)
			span.SetStatus(codes.Error, sinkErr.Error())
			sinkErr = fmt.Errorf("notify sink: %w", sinkErr)
		}
	}

	s.record(ctx, tenantID, res)
	span.SetAttributes(
		attribute.Int("fanout.connections", len(conns)),
		attribute.Int("fanout.delivered", res.Delivered),
		attribute.Int("fanout.pruned", res.Pruned),
	)
	for _, e := range res.Errors {
		s.log.Error("push_failed", e, map[string]any{"tenant_id": tenantID, "type": eventType})
	}
	s.log.Debug("event_fanned_out", map[string]any{
		"tenant_id": tenantID, "type": eventType, "order_id": detail.OrderID,
		"delivered": res.Delivered, "stale": res.Pruned, "skipped": res.Skipped, "errors": len(res.Errors),
	})
	return res, sinkErr
}

func (s *FanoutService) record(ctx context.Context, tenantID string, res domain.FanoutResult) {
	attrs := metric.WithAttributes(attribute.String("tenant.id", tenantID))
	if s.delivered != nil {
		s.delivered.Add(ctx, int64(res.Delivered), attrs)
	}
	if s.pruned != nil {
		s.pruned.Add(ctx, int64(res.Pruned), attrs)
	}
	if s.failed != nil {
		s.failed.Add(ctx, int64(len(res.Errors)), attrs)
	}
}
